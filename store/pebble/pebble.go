package pebble

import (
	"errors"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ostafen/sophia/internal/logging"
	"github.com/ostafen/sophia/store"
)

const EngineName = "pebble"

func init() {
	store.Register(EngineName, New)
}

type pebbleEnv struct {
	settings   store.Settings
	dir        string
	flags      store.Flags
	configured bool
	destroyed  bool

	db *pebbleStore
}

// New returns an unconfigured pebble environment. In memory mode the
// database lives on a vfs.MemFS which is dropped on close.
func New(s store.Settings) (store.Environment, error) {
	return &pebbleEnv{settings: s}, nil
}

func (env *pebbleEnv) Configure(dir string, flags store.Flags) error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}

	if !env.settings.InMemory {
		if err := store.PrepareDir(dir, flags); err != nil {
			return err
		}
	}

	env.dir = dir
	env.flags = flags
	env.configured = true
	return nil
}

func (env *pebbleEnv) options() *pebble.Options {
	opts := &pebble.Options{
		Logger:           logging.NewEngine(env.settings.Logger, EngineName),
		ReadOnly:         !env.flags.ReadWrite(),
		ErrorIfNotExists: !env.flags.Create(),
	}
	if env.settings.InMemory {
		opts.FS = vfs.NewMem()
		opts.ReadOnly = false
		opts.ErrorIfNotExists = false
	}
	return opts
}

func (env *pebbleEnv) Open() (store.Database, error) {
	if env.destroyed {
		return nil, store.ErrEnvDestroyed
	}
	if !env.configured {
		return nil, store.ErrNotConfigured
	}
	if env.db != nil {
		return nil, store.ErrEnvBusy
	}

	db, err := pebble.Open(env.dir, env.options())
	if err != nil {
		return nil, err
	}

	env.db = &pebbleStore{env: env, db: db}
	return env.db, nil
}

func (env *pebbleEnv) Destroy() error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}
	if env.db != nil {
		return store.ErrEnvBusy
	}
	env.destroyed = true
	return nil
}

// pebbleStore runs a transaction as an indexed batch: reads and cursors
// observe its pending writes, Commit applies it atomically.
type pebbleStore struct {
	env   *pebbleEnv
	db    *pebble.DB
	batch *pebble.Batch
}

func (s *pebbleStore) Get(key []byte) ([]byte, bool, error) {
	var (
		value  []byte
		closer io.Closer
		err    error
	)

	if s.batch != nil {
		value, closer, err = s.batch.Get(key)
	} else {
		value, closer, err = s.db.Get(key)
	}

	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	return store.CopyBytes(value), true, nil
}

func (s *pebbleStore) Set(key, value []byte) error {
	if s.batch != nil {
		return s.batch.Set(key, value, nil)
	}
	return s.db.Set(key, value, pebble.Sync)
}

func (s *pebbleStore) Delete(key []byte) error {
	if s.batch != nil {
		return s.batch.Delete(key, nil)
	}
	return s.db.Delete(key, pebble.Sync)
}

func (s *pebbleStore) Begin() error {
	if s.batch != nil {
		return store.ErrTxActive
	}
	s.batch = s.db.NewIndexedBatch()
	return nil
}

func (s *pebbleStore) Commit() error {
	if s.batch == nil {
		return store.ErrNoTx
	}

	batch := s.batch
	s.batch = nil

	if err := batch.Commit(pebble.Sync); err != nil {
		_ = batch.Close()
		return err
	}
	return batch.Close()
}

func (s *pebbleStore) Rollback() error {
	if s.batch == nil {
		return store.ErrNoTx
	}

	batch := s.batch
	s.batch = nil
	return batch.Close()
}

func (s *pebbleStore) Cursor(reverse bool) (store.Cursor, error) {
	var (
		iter *pebble.Iterator
		err  error
	)

	if s.batch != nil {
		iter, err = s.batch.NewIter(nil)
	} else {
		iter, err = s.db.NewIter(nil)
	}
	if err != nil {
		return nil, err
	}
	return &pebbleCursor{iter: iter, reverse: reverse}, nil
}

func (s *pebbleStore) Destroy() error {
	if s.batch != nil {
		_ = s.batch.Close()
		s.batch = nil
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	s.env.db = nil
	return nil
}

type pebbleCursor struct {
	iter    *pebble.Iterator
	reverse bool
}

func (c *pebbleCursor) Rewind() {
	if c.reverse {
		c.iter.Last()
	} else {
		c.iter.First()
	}
}

func (c *pebbleCursor) Seek(key []byte) {
	if c.reverse {
		c.iter.SeekLT(store.Successor(key))
	} else {
		c.iter.SeekGE(key)
	}
}

func (c *pebbleCursor) Next() {
	if !c.iter.Valid() {
		return
	}
	if c.reverse {
		c.iter.Prev()
	} else {
		c.iter.Next()
	}
}

func (c *pebbleCursor) Valid() bool {
	return c.iter.Valid()
}

func (c *pebbleCursor) Item() (store.Item, error) {
	value, err := c.iter.ValueAndErr()
	if err != nil {
		return store.Item{}, err
	}
	return store.Item{
		Key:   store.CopyBytes(c.iter.Key()),
		Value: store.CopyBytes(value),
	}, nil
}

func (c *pebbleCursor) Err() error {
	return c.iter.Error()
}

func (c *pebbleCursor) Close() error {
	return c.iter.Close()
}
