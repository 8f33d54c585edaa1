package leveldb

import (
	"errors"

	"github.com/ostafen/sophia/store"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const EngineName = "leveldb"

func init() {
	store.Register(EngineName, New)
}

type levelEnv struct {
	inMemory   bool
	dir        string
	flags      store.Flags
	configured bool
	destroyed  bool

	db *levelStore
}

// New returns an unconfigured LevelDB environment.
func New(s store.Settings) (store.Environment, error) {
	return &levelEnv{inMemory: s.InMemory}, nil
}

func (env *levelEnv) Configure(dir string, flags store.Flags) error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}

	if !env.inMemory {
		if err := store.PrepareDir(dir, flags); err != nil {
			return err
		}
	}

	env.dir = dir
	env.flags = flags
	env.configured = true
	return nil
}

func (env *levelEnv) Open() (store.Database, error) {
	if env.destroyed {
		return nil, store.ErrEnvDestroyed
	}
	if !env.configured {
		return nil, store.ErrNotConfigured
	}
	if env.db != nil {
		return nil, store.ErrEnvBusy
	}

	var (
		db  *leveldb.DB
		err error
	)

	if env.inMemory {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(env.dir, &opt.Options{
			ReadOnly:       !env.flags.ReadWrite(),
			ErrorIfMissing: !env.flags.Create(),
		})
	}
	if err != nil {
		return nil, err
	}

	env.db = &levelStore{env: env, db: db}
	return env.db, nil
}

func (env *levelEnv) Destroy() error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}
	if env.db != nil {
		return store.ErrEnvBusy
	}
	env.destroyed = true
	return nil
}

// reader is the read side shared by *leveldb.DB and *leveldb.Transaction.
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

type levelStore struct {
	env *levelEnv
	db  *leveldb.DB
	tr  *leveldb.Transaction
}

func (s *levelStore) reader() reader {
	if s.tr != nil {
		return s.tr
	}
	return s.db
}

func (s *levelStore) Get(key []byte) ([]byte, bool, error) {
	value, err := s.reader().Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return store.CopyBytes(value), true, nil
}

func (s *levelStore) Set(key, value []byte) error {
	if s.tr != nil {
		return s.tr.Put(key, value, nil)
	}
	return s.db.Put(key, value, nil)
}

func (s *levelStore) Delete(key []byte) error {
	if s.tr != nil {
		return s.tr.Delete(key, nil)
	}
	return s.db.Delete(key, nil)
}

func (s *levelStore) Begin() error {
	if s.tr != nil {
		return store.ErrTxActive
	}

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	s.tr = tr
	return nil
}

func (s *levelStore) Commit() error {
	if s.tr == nil {
		return store.ErrNoTx
	}

	tr := s.tr
	s.tr = nil
	if err := tr.Commit(); err != nil {
		tr.Discard()
		return err
	}
	return nil
}

func (s *levelStore) Rollback() error {
	if s.tr == nil {
		return store.ErrNoTx
	}

	s.tr.Discard()
	s.tr = nil
	return nil
}

func (s *levelStore) Cursor(reverse bool) (store.Cursor, error) {
	return &levelCursor{it: s.reader().NewIterator(nil, nil), reverse: reverse}, nil
}

func (s *levelStore) Destroy() error {
	if s.tr != nil {
		s.tr.Discard()
		s.tr = nil
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	s.env.db = nil
	return nil
}

type levelCursor struct {
	it      iterator.Iterator
	reverse bool
}

func (c *levelCursor) Rewind() {
	if c.reverse {
		c.it.Last()
	} else {
		c.it.First()
	}
}

func (c *levelCursor) Seek(key []byte) {
	if !c.reverse {
		c.it.Seek(key)
		return
	}

	// last key <= key is the one right before the first key > key
	if c.it.Seek(store.Successor(key)) {
		c.it.Prev()
	} else if c.it.Error() == nil {
		c.it.Last()
	}
}

// Next leaves an exhausted cursor alone: goleveldb would restart it.
func (c *levelCursor) Next() {
	if !c.it.Valid() {
		return
	}
	if c.reverse {
		c.it.Prev()
	} else {
		c.it.Next()
	}
}

func (c *levelCursor) Valid() bool {
	return c.it.Valid()
}

func (c *levelCursor) Item() (store.Item, error) {
	return store.Item{
		Key:   store.CopyBytes(c.it.Key()),
		Value: store.CopyBytes(c.it.Value()),
	}, nil
}

func (c *levelCursor) Err() error {
	return c.it.Error()
}

func (c *levelCursor) Close() error {
	c.it.Release()
	return nil
}
