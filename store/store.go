package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownEngine = errors.New("unknown storage engine")
	ErrEnvBusy       = errors.New("environment has an open database")
	ErrEnvDestroyed  = errors.New("environment destroyed")
	ErrNotConfigured = errors.New("storage directory not configured")
	ErrTxActive      = errors.New("transaction already active")
	ErrNoTx          = errors.New("no active transaction")
	ErrNotDir        = errors.New("not a directory")
	ErrReadOnly      = errors.New("database is read-only")
)

// Flags control how Configure treats the storage directory.
type Flags uint8

const (
	FlagCreate Flags = 1 << iota
	FlagReadWrite
)

func (f Flags) Create() bool    { return f&FlagCreate != 0 }
func (f Flags) ReadWrite() bool { return f&FlagReadWrite != 0 }

// Settings carries the engine tuning knobs that are not part of the
// directory configuration.
type Settings struct {
	InMemory          bool
	GCReclaimInterval time.Duration
	GCDiscardRatio    float64
	Logger            zerolog.Logger
}

// Environment is the engine configuration object. A database can only be
// opened after the storage directory has been configured, and the
// environment must outlive the database opened from it.
type Environment interface {
	Configure(dir string, flags Flags) error
	Open() (Database, error)
	Destroy() error
}

// Database is an opened engine database. Point operations and cursors run
// inside the active transaction, if any.
type Database interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Cursor(reverse bool) (Cursor, error)

	Begin() error
	Commit() error
	Rollback() error

	Destroy() error
}

// Cursor walks the database in key order, or in reverse key order.
// Seek positions on the first key >= key when moving forward and on the
// last key <= key when moving backward. Next on a cursor that is not
// Valid does nothing.
type Cursor interface {
	Rewind()
	Seek(key []byte)
	Next()
	Valid() bool
	Item() (Item, error)
	Err() error
	Close() error
}

type Item struct {
	Key, Value []byte
}

// Factory builds a fresh, unconfigured environment.
type Factory func(s Settings) (Environment, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register makes an engine available by name. It panics if the name is
// taken, like database/sql.Register.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if f == nil {
		panic("store: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("store: Register called twice for engine " + name)
	}
	drivers[name] = f
}

// Engines returns the sorted names of the registered engines.
func Engines() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewEnvironment(engine string, s Settings) (Environment, error) {
	driversMu.RLock()
	f, ok := drivers[engine]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
	return f(s)
}

const defaultPermDir = 0755

// PrepareDir creates dir when FlagCreate is set, otherwise it checks that
// dir already exists.
func PrepareDir(dir string, flags Flags) error {
	if flags.Create() && flags.ReadWrite() {
		return os.MkdirAll(dir, defaultPermDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dir, ErrNotDir)
	}
	return nil
}

// CopyBytes returns a copy of b which is never nil, so that a present but
// empty value can be told apart from a missing one.
func CopyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Successor returns the smallest key strictly greater than key.
func Successor(key []byte) []byte {
	s := make([]byte, len(key)+1)
	copy(s, key)
	return s
}
