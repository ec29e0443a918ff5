// Package audio turns audio resources into PCM and plays PCM buffers.
//
// The oto player is the output sink shared by every engine of a session.
// Clips are decoded with beep, trimmed to their temporal interval and
// resampled to the sink format.
package audio
