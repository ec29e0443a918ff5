// Package speech turns utterances into PCM with a local or remote speech
// synthesizer and plays them through the shared playback engine.
//
// A Synthesizer renders one piece of text. The Provider implements
// readaloud.SpeechEngineProvider on top of it: it splits long utterances,
// converts every rendering to the sink format, applies the speed the
// synthesizer could not apply natively and caches the result.
package speech
