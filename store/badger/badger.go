package badger

import (
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ostafen/sophia/internal/logging"
	"github.com/ostafen/sophia/store"
	"github.com/rs/zerolog"
)

const EngineName = "badger"

const (
	GCReclaimIntervalDefault = time.Minute * 5
	GCDiscardRatioDefault    = 0.5
)

func init() {
	store.Register(EngineName, New)
}

type badgerEnv struct {
	settings   store.Settings
	dir        string
	flags      store.Flags
	configured bool
	destroyed  bool

	db *badgerStore
}

// New returns an unconfigured badger environment.
func New(s store.Settings) (store.Environment, error) {
	if s.GCReclaimInterval <= 0 {
		s.GCReclaimInterval = GCReclaimIntervalDefault
	}
	if s.GCDiscardRatio <= 0 || s.GCDiscardRatio >= 1 {
		s.GCDiscardRatio = GCDiscardRatioDefault
	}
	return &badgerEnv{settings: s}, nil
}

func (env *badgerEnv) Configure(dir string, flags store.Flags) error {
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

func (env *badgerEnv) options() badger.Options {
	opts := badger.DefaultOptions(env.dir).
		WithLogger(logging.NewEngine(env.settings.Logger, EngineName))

	if env.settings.InMemory {
		return opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	return opts.WithReadOnly(!env.flags.ReadWrite())
}

func (env *badgerEnv) Open() (store.Database, error) {
	if env.destroyed {
		return nil, store.ErrEnvDestroyed
	}
	if !env.configured {
		return nil, store.ErrNotConfigured
	}
	if env.db != nil {
		return nil, store.ErrEnvBusy
	}

	db, err := badger.Open(env.options())
	if err != nil {
		return nil, err
	}

	dataStore := &badgerStore{
		env:            env,
		db:             db,
		log:            env.settings.Logger,
		chQuit:         make(chan struct{}, 1),
		gcInterval:     env.settings.GCReclaimInterval,
		gcDiscardRatio: env.settings.GCDiscardRatio,
	}

	if env.flags.ReadWrite() && !env.settings.InMemory {
		dataStore.startGC()
	}
	env.db = dataStore
	return dataStore, nil
}

func (env *badgerEnv) Destroy() error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}
	if env.db != nil {
		return store.ErrEnvBusy
	}
	env.destroyed = true
	return nil
}

type badgerStore struct {
	env *badgerEnv
	db  *badger.DB
	txn *badger.Txn
	log zerolog.Logger

	chWg     sync.WaitGroup
	chQuit   chan struct{}
	gcOn     bool
	stopOnce sync.Once

	gcInterval     time.Duration
	gcDiscardRatio float64
}

func (s *badgerStore) view(fn func(txn *badger.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.View(fn)
}

func (s *badgerStore) update(fn func(txn *badger.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.db.Update(fn)
}

func getItemValue(item *badger.Item) ([]byte, error) {
	var value []byte
	err := item.Value(func(val []byte) error {
		value = store.CopyBytes(val)
		return nil
	})
	return value, err
}

func (s *badgerStore) Get(key []byte) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)

	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		value, err = getItemValue(item)
		found = err == nil
		return err
	})
	return value, found, err
}

func (s *badgerStore) Set(key, value []byte) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) Delete(key []byte) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) Begin() error {
	if s.txn != nil {
		return store.ErrTxActive
	}
	s.txn = s.db.NewTransaction(true)
	return nil
}

func (s *badgerStore) Commit() error {
	if s.txn == nil {
		return store.ErrNoTx
	}

	txn := s.txn
	s.txn = nil
	return txn.Commit()
}

func (s *badgerStore) Rollback() error {
	if s.txn == nil {
		return store.ErrNoTx
	}

	s.txn.Discard()
	s.txn = nil
	return nil
}

func (s *badgerStore) Cursor(reverse bool) (store.Cursor, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse

	txn, owned := s.txn, false
	if txn == nil {
		txn, owned = s.db.NewTransaction(false), true
	}
	return &badgerCursor{txn: txn, owned: owned, it: txn.NewIterator(opts)}, nil
}

func (s *badgerStore) Destroy() error {
	if s.txn != nil {
		s.txn.Discard()
		s.txn = nil
	}

	s.stopGC()
	if err := s.db.Close(); err != nil {
		return err
	}
	s.env.db = nil
	return nil
}

func (s *badgerStore) startGC() {
	s.gcOn = true
	s.chWg.Add(1)

	go func() {
		defer s.chWg.Done()

		ticker := time.NewTicker(s.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.chQuit:
				return

			case <-ticker.C:
				err := s.db.RunValueLogGC(s.gcDiscardRatio)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					s.log.Warn().Err(err).Str("engine", EngineName).Msg("value log gc failed")
				}
			}
		}
	}()
}

func (s *badgerStore) stopGC() {
	if !s.gcOn {
		return
	}

	s.stopOnce.Do(func() {
		s.chQuit <- struct{}{}
		s.chWg.Wait()
		close(s.chQuit)
	})
}

type badgerCursor struct {
	txn   *badger.Txn
	owned bool
	it    *badger.Iterator
}

func (cursor *badgerCursor) Rewind() {
	cursor.it.Rewind()
}

func (cursor *badgerCursor) Seek(key []byte) {
	cursor.it.Seek(key)
}

// Next on an exhausted iterator would dereference its nil item.
func (cursor *badgerCursor) Next() {
	if cursor.it.Valid() {
		cursor.it.Next()
	}
}

func (cursor *badgerCursor) Valid() bool {
	return cursor.it.Valid()
}

func (cursor *badgerCursor) Item() (store.Item, error) {
	item := cursor.it.Item()

	value, err := getItemValue(item)
	return store.Item{Key: item.KeyCopy(nil), Value: value}, err
}

func (cursor *badgerCursor) Err() error {
	return nil
}

func (cursor *badgerCursor) Close() error {
	cursor.it.Close()
	if cursor.owned {
		cursor.txn.Discard()
	}
	return nil
}
