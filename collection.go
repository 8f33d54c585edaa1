package sophia

import (
	"bytes"
	"sort"
	"strconv"
)

// The helpers below are built on point operations and full ascending
// scans only, so they behave the same on every engine.

// Len counts the pairs in the database by walking all of them.
func (db *DB) Len() (int, error) {
	n := 0
	err := db.scan(Ascending, nil, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

// Size is an alias of Len.
func (db *DB) Size() (int, error) {
	return db.Len()
}

func (db *DB) Empty() (bool, error) {
	empty := true
	err := db.scan(Ascending, nil, func(_, _ []byte) bool {
		empty = false
		return false
	})
	return empty, err
}

// Keys returns every key in ascending order.
func (db *DB) Keys() ([][]byte, error) {
	keys := make([][]byte, 0)
	err := db.EachKey(Ascending, func(key []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, err
}

// Values returns every value, in the ascending order of their keys.
func (db *DB) Values() ([][]byte, error) {
	values := make([][]byte, 0)
	err := db.EachValue(Ascending, func(value []byte) bool {
		values = append(values, value)
		return true
	})
	return values, err
}

// HasKey probes the first key >= key and reports whether it is key. A
// greater key found by the probe does not count, so HasKey is false for
// a key that was just deleted.
func (db *DB) HasKey(key []byte) (bool, error) {
	found := false
	err := db.scan(GTE, key, func(k, _ []byte) bool {
		found = bytes.Equal(k, key)
		return false
	})
	return found, err
}

// HasValue reports whether some key holds value. It is a linear scan.
func (db *DB) HasValue(value []byte) (bool, error) {
	key, err := db.Key(value)
	return key != nil, err
}

// Key returns the first key, in ascending order, whose value is value, or
// nil if there is none. It is a linear scan.
func (db *DB) Key(value []byte) ([]byte, error) {
	var key []byte
	err := db.scan(Ascending, nil, func(k, v []byte) bool {
		if bytes.Equal(v, value) {
			key = k
			return false
		}
		return true
	})
	return key, err
}

// ValuesAt returns the values of keys, with nil for the missing ones.
func (db *DB) ValuesAt(keys ...[]byte) ([][]byte, error) {
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, err := db.Get(key)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Clear deletes every pair. Keys are collected first and then deleted one
// at a time.
func (db *DB) Clear() error {
	keys, err := db.Keys()
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := db.remove(key); err != nil {
			return err
		}
	}
	return nil
}

func validatePairs(pairs []Pair) error {
	for i, p := range pairs {
		if p.Key == nil {
			return &ArgumentError{Msg: "pair must be [key, value]: missing key at position " + strconv.Itoa(i)}
		}
	}
	return nil
}

// Update stores every pair. Pairs are validated before anything is
// written.
func (db *DB) Update(pairs ...Pair) error {
	if err := validatePairs(pairs); err != nil {
		return err
	}

	for _, p := range pairs {
		if err := db.Set(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Replace clears the database and stores pairs.
func (db *DB) Replace(pairs ...Pair) error {
	if err := validatePairs(pairs); err != nil {
		return err
	}

	if err := db.Clear(); err != nil {
		return err
	}
	return db.Update(pairs...)
}

// EachPair calls fn for each pair in the given order until fn returns
// false. The cursor is released before EachPair returns.
func (db *DB) EachPair(order ScanOrder, fn func(key, value []byte) bool) error {
	return db.scan(order, nil, fn)
}

func (db *DB) EachKey(order ScanOrder, fn func(key []byte) bool) error {
	return db.scan(order, nil, func(key, _ []byte) bool {
		return fn(key)
	})
}

func (db *DB) EachValue(order ScanOrder, fn func(value []byte) bool) error {
	return db.scan(order, nil, func(_, value []byte) bool {
		return fn(value)
	})
}

// MapPairs turns m into pairs sorted by key.
func MapPairs[V ~string | ~[]byte](m map[string]V) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{Key: []byte(k), Value: []byte(v)})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	return pairs
}
