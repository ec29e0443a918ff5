// Package queue provides the unbounded mailbox that serializes commands and
// engine events into the playback loop. Producers never block; a single
// consumer pops messages in order, with priority messages first.
package queue
