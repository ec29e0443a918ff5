// Package playback implements the read aloud engine contract on top of an
// item loader and a PCM sink. Audio clip and speech backends differ only in
// how they turn an item index into PCM; scheduling, preloading, pausing and
// completion reporting live here.
package playback
