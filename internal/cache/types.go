package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the tier capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrClosed is returned by a store after Close
	ErrClosed = errors.New("cache is closed")
)

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds tier metrics.
type Stats struct {
	Capacity  int64
	Size      int64
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64

	LastAccess time.Time
	LastEvict  time.Time
}

// HitRate returns hits / (hits + misses), or zero without lookups.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Entry describes a cached item.
type Entry struct {
	Key        string
	Size       int64
	Created    time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Config sizes the tiers.
type Config struct {
	MemoryCapacity   int64         `yaml:"memory_capacity" mapstructure:"memory_capacity" env:"MEMORY_CAPACITY"`
	DiskCapacity     int64         `yaml:"disk_capacity" mapstructure:"disk_capacity" env:"DISK_CAPACITY"`
	Dir              string        `yaml:"dir" mapstructure:"dir" env:"DIR"`
	CompressionLevel int           `yaml:"compression_level" mapstructure:"compression_level" env:"COMPRESSION_LEVEL"`
	TTL              time.Duration `yaml:"ttl" mapstructure:"ttl" env:"TTL"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval" env:"CLEANUP_INTERVAL"`
}

// DefaultConfig returns the default cache configuration. Dir is left empty
// and filled in by the caller.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024,
		DiskCapacity:     1024 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Validate checks capacities and the compression level.
func (c Config) Validate() error {
	if c.MemoryCapacity < 0 || c.DiskCapacity < 0 {
		return errors.New("cache capacities must not be negative")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression level must be between 0 and 22, got %d", c.CompressionLevel)
	}
	return nil
}

// Key identifies a synthesized utterance.
type Key struct {
	Engine   string
	Voice    string
	Language string
	Text     string
	Speed    float64
	Pitch    float64
}

// String returns the hashed form of k used by the tiers.
func (k Key) String() string {
	data := fmt.Sprintf("%s|%s|%s|%.2f|%.2f|%s", k.Engine, k.Voice, k.Language, k.Speed, k.Pitch, k.Text)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
