// Package cache stores synthesized speech so that an utterance is rendered
// once per voice and prosody. It has an in-memory LRU tier and a persistent
// zstd compressed disk tier.
package cache
