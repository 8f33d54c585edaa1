package bbolt

import (
	"bytes"
	"errors"
	"path/filepath"
	"time"

	"github.com/ostafen/sophia/store"
	"go.etcd.io/bbolt"
)

const EngineName = "bbolt"

const (
	dbFileName = "data.db"
	rootBucket = "root"

	openTimeout = time.Second
)

var ErrInMemoryUnsupported = errors.New("bbolt: in-memory mode is not supported")

func init() {
	store.Register(EngineName, New)
}

type boltEnv struct {
	dir        string
	flags      store.Flags
	configured bool
	destroyed  bool

	db *boltStore
}

// New returns an unconfigured bbolt environment. All pairs live in a
// single root bucket of one database file inside the configured directory.
func New(s store.Settings) (store.Environment, error) {
	if s.InMemory {
		return nil, ErrInMemoryUnsupported
	}
	return &boltEnv{}, nil
}

func (env *boltEnv) Configure(dir string, flags store.Flags) error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}
	if err := store.PrepareDir(dir, flags); err != nil {
		return err
	}

	env.dir = dir
	env.flags = flags
	env.configured = true
	return nil
}

func (env *boltEnv) Open() (store.Database, error) {
	if env.destroyed {
		return nil, store.ErrEnvDestroyed
	}
	if !env.configured {
		return nil, store.ErrNotConfigured
	}
	if env.db != nil {
		return nil, store.ErrEnvBusy
	}

	opts := &bbolt.Options{
		Timeout:  openTimeout,
		ReadOnly: !env.flags.ReadWrite(),
	}

	db, err := bbolt.Open(filepath.Join(env.dir, dbFileName), 0666, opts)
	if err != nil {
		return nil, err
	}

	s := &boltStore{env: env, db: db}
	if !opts.ReadOnly {
		if err := s.createRootBucketIfNotExists(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	env.db = s
	return s, nil
}

func (env *boltEnv) Destroy() error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}
	if env.db != nil {
		return store.ErrEnvBusy
	}
	env.destroyed = true
	return nil
}

type boltStore struct {
	env *boltEnv
	db  *bbolt.DB
	tx  *bbolt.Tx
}

func (s *boltStore) createRootBucketIfNotExists() error {
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.CreateBucketIfNotExists([]byte(rootBucket))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func bucket(tx *bbolt.Tx) *bbolt.Bucket {
	return tx.Bucket([]byte(rootBucket))
}

func (s *boltStore) view(fn func(tx *bbolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.View(fn)
}

func (s *boltStore) update(fn func(tx *bbolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.Update(fn)
}

func (s *boltStore) Get(key []byte) ([]byte, bool, error) {
	var value []byte

	err := s.view(func(tx *bbolt.Tx) error {
		b := bucket(tx)
		if b == nil {
			return nil
		}

		if v := b.Get(key); v != nil {
			value = store.CopyBytes(v)
		}
		return nil
	})
	return value, value != nil, err
}

func (s *boltStore) Set(key, value []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		return bucket(tx).Put(key, value)
	})
}

func (s *boltStore) Delete(key []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		return bucket(tx).Delete(key)
	})
}

func (s *boltStore) Begin() error {
	if s.tx != nil {
		return store.ErrTxActive
	}

	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *boltStore) Commit() error {
	if s.tx == nil {
		return store.ErrNoTx
	}

	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

func (s *boltStore) Rollback() error {
	if s.tx == nil {
		return store.ErrNoTx
	}

	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}

func (s *boltStore) Cursor(reverse bool) (store.Cursor, error) {
	tx, owned := s.tx, false
	if tx == nil {
		var err error
		if tx, err = s.db.Begin(false); err != nil {
			return nil, err
		}
		owned = true
	}

	c := &boltCursor{tx: tx, owned: owned, reverse: reverse}
	if b := bucket(tx); b != nil {
		c.Cursor = b.Cursor()
	}
	return c, nil
}

func (s *boltStore) Destroy() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	s.env.db = nil
	return nil
}

type boltCursor struct {
	*bbolt.Cursor
	tx      *bbolt.Tx
	owned   bool
	reverse bool

	key, value []byte
}

func (c *boltCursor) set(key, value []byte) {
	c.key, c.value = key, value
}

func (c *boltCursor) Rewind() {
	if c.Cursor == nil {
		return
	}

	if c.reverse {
		c.set(c.Cursor.Last())
	} else {
		c.set(c.Cursor.First())
	}
}

// Seek lands on the first key >= seek; a reverse cursor then steps back
// unless it hit seek exactly.
func (c *boltCursor) Seek(seek []byte) {
	if c.Cursor == nil {
		return
	}

	key, value := c.Cursor.Seek(seek)
	if c.reverse {
		if key == nil {
			key, value = c.Cursor.Last()
		} else if !bytes.Equal(key, seek) {
			key, value = c.Cursor.Prev()
		}
	}
	c.set(key, value)
}

func (c *boltCursor) Next() {
	if c.Cursor == nil || c.key == nil {
		return
	}

	if c.reverse {
		c.set(c.Cursor.Prev())
	} else {
		c.set(c.Cursor.Next())
	}
}

func (c *boltCursor) Valid() bool {
	return c.key != nil
}

func (c *boltCursor) Item() (store.Item, error) {
	return store.Item{
		Key:   store.CopyBytes(c.key),
		Value: store.CopyBytes(c.value),
	}, nil
}

func (c *boltCursor) Err() error {
	return nil
}

func (c *boltCursor) Close() error {
	if c.owned {
		return c.tx.Rollback()
	}
	return nil
}
