package sophia

import (
	"time"

	"github.com/ostafen/sophia/store"
	"github.com/ostafen/sophia/store/badger"
	"github.com/rs/zerolog"
)

const DefaultEngine = badger.EngineName

// Config contains sophia configuration parameters
type Config struct {
	Engine            string
	CreateIfMissing   bool
	ReadWrite         bool
	InMemory          bool
	GCReclaimInterval time.Duration
	GCDiscardRatio    float64
	Logger            zerolog.Logger
}

func defaultConfig() *Config {
	return &Config{
		Engine:            DefaultEngine,
		CreateIfMissing:   true,
		ReadWrite:         true,
		InMemory:          false,
		GCReclaimInterval: badger.GCReclaimIntervalDefault,
		GCDiscardRatio:    badger.GCDiscardRatioDefault,
		Logger:            zerolog.Nop(),
	}
}

func (c *Config) applyOptions(opts []Option) (*Config, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Config) flags() store.Flags {
	var flags store.Flags
	if c.CreateIfMissing {
		flags |= store.FlagCreate
	}
	if c.ReadWrite {
		flags |= store.FlagReadWrite
	}
	return flags
}

func (c *Config) settings() store.Settings {
	return store.Settings{
		InMemory:          c.InMemory,
		GCReclaimInterval: c.GCReclaimInterval,
		GCDiscardRatio:    c.GCDiscardRatio,
		Logger:            c.Logger,
	}
}

// Option is a function that takes a config struct and modifies it
type Option func(c *Config) error

// WithEngine selects the storage engine by its registered name: "badger"
// (the default), "bbolt", "pebble", "leveldb" or "mem".
func WithEngine(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return &ArgumentError{Msg: "engine name must not be empty"}
		}
		c.Engine = name
		return nil
	}
}

// CreateIfMissing controls whether Open creates the storage directory.
func CreateIfMissing(enable bool) Option {
	return func(c *Config) error {
		c.CreateIfMissing = enable
		return nil
	}
}

// ReadWrite opens the database for writing; disable it for read-only use.
func ReadWrite(enable bool) Option {
	return func(c *Config) error {
		c.ReadWrite = enable
		return nil
	}
}

// InMemoryMode allows to enable/disable in-memory mode.
func InMemoryMode(enable bool) Option {
	return func(c *Config) error {
		c.InMemory = enable
		return nil
	}
}

func WithGCReclaimInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return &ArgumentError{Msg: "gc reclaim interval must be positive"}
		}
		c.GCReclaimInterval = interval
		return nil
	}
}

func WithGCDiscardRatio(ratio float64) Option {
	return func(c *Config) error {
		if ratio <= 0 || ratio >= 1 {
			return &ArgumentError{Msg: "gc discard ratio must be in (0, 1)"}
		}
		c.GCDiscardRatio = ratio
		return nil
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}
