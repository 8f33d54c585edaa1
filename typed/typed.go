// Package typed stores Go values in a sophia database. Each Map is a
// named keyspace: its keys are encoded with orderedcode behind the map
// name, so scans return them in their natural order, and its values are
// encoded with msgpack.
package typed

import (
	"bytes"
	"errors"

	"github.com/google/orderedcode"
	"github.com/ostafen/sophia"
)

var ErrEmptyName = errors.New("typed: map name must not be empty")

type Map[K Key, V any] struct {
	db     *sophia.DB
	name   string
	prefix []byte
}

// New returns the map called name inside db. Maps with different names
// never see each other's keys.
func New[K Key, V any](db *sophia.DB, name string) (*Map[K, V], error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	prefix, err := orderedcode.Append(nil, name)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{db: db, name: name, prefix: prefix}, nil
}

func (m *Map[K, V]) Name() string {
	return m.name
}

func (m *Map[K, V]) key(key K) ([]byte, error) {
	buf := make([]byte, len(m.prefix), len(m.prefix)+16)
	copy(buf, m.prefix)
	return appendKey(buf, key)
}

func (m *Map[K, V]) Put(key K, value V) error {
	k, err := m.key(key)
	if err != nil {
		return err
	}

	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	return m.db.Set(k, data)
}

func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var value V

	k, err := m.key(key)
	if err != nil {
		return value, false, err
	}

	data, found, err := m.db.Lookup(k)
	if err != nil || !found {
		return value, false, err
	}

	err = decodeValue(data, &value)
	return value, err == nil, err
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) (bool, error) {
	k, err := m.key(key)
	if err != nil {
		return false, err
	}

	prev, err := m.db.Delete(k)
	return prev != nil, err
}

// Each calls fn for the pairs of the map in ascending key order until fn
// returns false.
func (m *Map[K, V]) Each(fn func(key K, value V) bool) (err error) {
	c, err := m.db.Scan(sophia.GTE, m.prefix)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()

	for c.Next() {
		if !bytes.HasPrefix(c.Key(), m.prefix) {
			return nil
		}

		key, err := parseKey[K](c.Key()[len(m.prefix):])
		if err != nil {
			return err
		}

		var value V
		if err := decodeValue(c.Value(), &value); err != nil {
			return err
		}

		if !fn(key, value) {
			return nil
		}
	}
	return c.Err()
}

func (m *Map[K, V]) Len() (int, error) {
	n := 0
	err := m.Each(func(_ K, _ V) bool {
		n++
		return true
	})
	return n, err
}
