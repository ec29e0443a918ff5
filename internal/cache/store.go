package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Store coordinates the memory and disk tiers. Disk hits are promoted to
// memory; writes reach memory synchronously and disk in the background.
type Store struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config

	mu     sync.Mutex
	closed bool
	writes sync.WaitGroup

	stop    chan struct{}
	cleaner sync.WaitGroup
}

// Summary aggregates both tiers.
type Summary struct {
	Memory Stats
	Disk   Stats
	Dir    string
}

// Open creates a store. config.Dir must be set.
func Open(config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, errors.New("cache directory is not set")
	}

	disk, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	s := &Store{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		config: config,
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 && config.TTL > 0 {
		s.cleaner.Add(1)
		go s.cleanupLoop()
	}
	return s, nil
}

// Get looks key up in memory, then on disk.
func (s *Store) Get(key Key) ([]byte, bool) {
	k := key.String()
	if data, ok := s.memory.Get(k); ok {
		return data, true
	}
	if data, ok := s.disk.Get(k); ok {
		_ = s.memory.Put(k, data)
		return data, true
	}
	return nil, false
}

// Put stores value under key.
func (s *Store) Put(key Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	k := key.String()
	if err := s.memory.Put(k, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := s.disk.Put(k, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			log.Warn("disk cache write failed", "key", k, "err", err)
		}
	}()
	return nil
}

// Delete removes key from both tiers.
func (s *Store) Delete(key Key) {
	k := key.String()
	s.memory.Delete(k)
	s.disk.Delete(k)
}

// Flush waits for pending disk writes.
func (s *Store) Flush() {
	s.writes.Wait()
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	s.Flush()
	s.memory.Clear()
	if err := s.disk.Clear(); err != nil {
		return fmt.Errorf("disk clear: %w", err)
	}
	return nil
}

// Prune removes entries older than the configured TTL and returns how many
// disk entries were removed.
func (s *Store) Prune() int {
	if s.config.TTL <= 0 {
		return 0
	}
	s.memory.Prune(s.config.TTL)
	return s.disk.RemoveOlderThan(time.Now().Add(-s.config.TTL))
}

// Summary returns the metrics of both tiers.
func (s *Store) Summary() Summary {
	return Summary{
		Memory: s.memory.Stats(),
		Disk:   s.disk.Stats(),
		Dir:    s.config.Dir,
	}
}

// Close stops cleanup, waits for writes and saves the disk index.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	s.cleaner.Wait()
	s.writes.Wait()

	if err := s.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

func (s *Store) cleanupLoop() {
	defer s.cleaner.Done()
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.Prune(); removed > 0 {
				log.Debug("cache cleanup", "removed", removed)
			}
		case <-s.stop:
			return
		}
	}
}
