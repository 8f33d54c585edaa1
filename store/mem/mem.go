// Package mem is an in-process engine backed by a copy-on-write B-tree.
// Databases configured on the same directory share their contents for
// the lifetime of the process, which makes reopening behave as it would
// on disk.
package mem

import (
	"bytes"
	"errors"
	"sync"

	"github.com/google/btree"
	"github.com/ostafen/sophia/store"
)

const EngineName = "mem"

const degree = 32

var ErrNoDatabase = errors.New("mem: no database at directory")

func init() {
	store.Register(EngineName, New)
}

type entry struct {
	key, value []byte
}

func (e entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(entry).key) < 0
}

type dataset struct {
	mu   sync.Mutex
	tree *btree.BTree
}

var (
	datasetsMu sync.Mutex
	datasets   = make(map[string]*dataset)
)

func datasetFor(dir string, create bool) *dataset {
	datasetsMu.Lock()
	defer datasetsMu.Unlock()

	d, ok := datasets[dir]
	if !ok && create {
		d = &dataset{tree: btree.New(degree)}
		datasets[dir] = d
	}
	return d
}

// Drop forgets the contents kept for dir.
func Drop(dir string) {
	datasetsMu.Lock()
	defer datasetsMu.Unlock()

	delete(datasets, dir)
}

type memEnv struct {
	dir        string
	flags      store.Flags
	configured bool
	destroyed  bool

	db *memStore
}

func New(_ store.Settings) (store.Environment, error) {
	return &memEnv{}, nil
}

func (env *memEnv) Configure(dir string, flags store.Flags) error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}

	env.dir = dir
	env.flags = flags
	env.configured = true
	return nil
}

func (env *memEnv) Open() (store.Database, error) {
	if env.destroyed {
		return nil, store.ErrEnvDestroyed
	}
	if !env.configured {
		return nil, store.ErrNotConfigured
	}
	if env.db != nil {
		return nil, store.ErrEnvBusy
	}

	data := datasetFor(env.dir, env.flags.Create() && env.flags.ReadWrite())
	if data == nil {
		return nil, ErrNoDatabase
	}

	env.db = &memStore{env: env, data: data, readOnly: !env.flags.ReadWrite()}
	return env.db, nil
}

func (env *memEnv) Destroy() error {
	if env.destroyed {
		return store.ErrEnvDestroyed
	}
	if env.db != nil {
		return store.ErrEnvBusy
	}
	env.destroyed = true
	return nil
}

// memStore writes straight into the shared tree, or into a private clone
// of it while a transaction is active.
type memStore struct {
	env      *memEnv
	data     *dataset
	tx       *btree.BTree
	readOnly bool
}

func (s *memStore) run(fn func(tree *btree.BTree)) {
	if s.tx != nil {
		fn(s.tx)
		return
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	fn(s.data.tree)
}

func (s *memStore) Get(key []byte) ([]byte, bool, error) {
	var item btree.Item
	s.run(func(tree *btree.BTree) {
		item = tree.Get(entry{key: key})
	})

	if item == nil {
		return nil, false, nil
	}
	return store.CopyBytes(item.(entry).value), true, nil
}

func (s *memStore) Set(key, value []byte) error {
	if s.readOnly {
		return store.ErrReadOnly
	}

	e := entry{key: store.CopyBytes(key), value: store.CopyBytes(value)}
	s.run(func(tree *btree.BTree) {
		tree.ReplaceOrInsert(e)
	})
	return nil
}

func (s *memStore) Delete(key []byte) error {
	if s.readOnly {
		return store.ErrReadOnly
	}

	s.run(func(tree *btree.BTree) {
		tree.Delete(entry{key: key})
	})
	return nil
}

func (s *memStore) Begin() error {
	if s.readOnly {
		return store.ErrReadOnly
	}
	if s.tx != nil {
		return store.ErrTxActive
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.tx = s.data.tree.Clone()
	return nil
}

func (s *memStore) Commit() error {
	if s.tx == nil {
		return store.ErrNoTx
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.tree = s.tx
	s.tx = nil
	return nil
}

func (s *memStore) Rollback() error {
	if s.tx == nil {
		return store.ErrNoTx
	}
	s.tx = nil
	return nil
}

// Cursor iterates over a snapshot taken at creation time.
func (s *memStore) Cursor(reverse bool) (store.Cursor, error) {
	var snapshot *btree.BTree
	s.run(func(tree *btree.BTree) {
		snapshot = tree.Clone()
	})
	return &memCursor{tree: snapshot, reverse: reverse}, nil
}

func (s *memStore) Destroy() error {
	s.tx = nil
	s.env.db = nil
	return nil
}

type memCursor struct {
	tree    *btree.BTree
	reverse bool
	cur     *entry
}

func (c *memCursor) set(item btree.Item) {
	if item == nil {
		c.cur = nil
		return
	}
	e := item.(entry)
	c.cur = &e
}

func (c *memCursor) Rewind() {
	if c.reverse {
		c.set(c.tree.Max())
	} else {
		c.set(c.tree.Min())
	}
}

func (c *memCursor) Seek(key []byte) {
	c.seek(key, true)
}

func (c *memCursor) Next() {
	if c.cur != nil {
		c.seek(c.cur.key, false)
	}
}

func (c *memCursor) seek(key []byte, inclusive bool) {
	c.cur = nil
	visit := func(item btree.Item) bool {
		if !inclusive && bytes.Equal(item.(entry).key, key) {
			return true
		}
		c.set(item)
		return false
	}

	if c.reverse {
		c.tree.DescendLessOrEqual(entry{key: key}, visit)
	} else {
		c.tree.AscendGreaterOrEqual(entry{key: key}, visit)
	}
}

func (c *memCursor) Valid() bool {
	return c.cur != nil
}

func (c *memCursor) Item() (store.Item, error) {
	return store.Item{
		Key:   store.CopyBytes(c.cur.key),
		Value: store.CopyBytes(c.cur.value),
	}, nil
}

func (c *memCursor) Err() error {
	return nil
}

func (c *memCursor) Close() error {
	c.tree = nil
	c.cur = nil
	return nil
}
