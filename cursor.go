package sophia

import (
	"bytes"
	"fmt"

	"github.com/ostafen/sophia/store"
)

// ScanOrder selects the direction of a scan and whether it includes the
// boundary key.
type ScanOrder int

const (
	GT ScanOrder = iota
	GTE
	LT
	LTE
)

const (
	Ascending  = GT
	Descending = LT
)

func (o ScanOrder) String() string {
	switch o {
	case GT:
		return "GT"
	case GTE:
		return "GTE"
	case LT:
		return "LT"
	case LTE:
		return "LTE"
	}
	return fmt.Sprintf("ScanOrder(%d)", int(o))
}

func (o ScanOrder) valid() bool {
	return o >= GT && o <= LTE
}

func (o ScanOrder) reverse() bool {
	return o == LT || o == LTE
}

func (o ScanOrder) inclusive() bool {
	return o == GTE || o == LTE
}

// Pair is a key together with its value.
type Pair struct {
	Key, Value []byte
}

// Cursor yields the pairs of a DB in the order given to Scan, starting
// from the boundary key if one was given. A Cursor must always be closed.
//
//	c, err := db.Scan(sophia.GTE, []byte("b"))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	for c.Next() {
//		fmt.Println(string(c.Key()), string(c.Value()))
//	}
//	return c.Err()
type Cursor struct {
	cursor   store.Cursor
	order    ScanOrder
	boundary []byte

	started bool
	done    bool
	closed  bool
	item    store.Item
	err     error
}

// Scan opens a cursor. An empty boundary means the whole database.
func (db *DB) Scan(order ScanOrder, boundary []byte) (*Cursor, error) {
	if !order.valid() {
		return nil, &ArgumentError{Msg: "invalid scan order " + order.String()}
	}

	database, err := db.database()
	if err != nil {
		return nil, err
	}

	cursor, err := database.Cursor(order.reverse())
	if err != nil {
		return nil, translate("cursor", err)
	}

	c := &Cursor{cursor: cursor, order: order}
	if len(boundary) > 0 {
		c.boundary = store.CopyBytes(boundary)
	}
	return c, nil
}

// Next moves to the next pair. It returns false once the cursor is
// exhausted, closed or failed, and keeps returning false after that.
func (c *Cursor) Next() bool {
	if c.closed || c.done || c.err != nil {
		return false
	}

	if !c.started {
		c.started = true
		if !c.position() {
			return false
		}
	} else {
		c.cursor.Next()
	}
	return c.load()
}

func (c *Cursor) position() bool {
	if c.boundary == nil {
		c.cursor.Rewind()
		return true
	}

	c.cursor.Seek(c.boundary)
	if c.order.inclusive() || !c.cursor.Valid() {
		return true
	}

	item, err := c.cursor.Item()
	if err != nil {
		c.err = translate("cursor", err)
		return false
	}
	if bytes.Equal(item.Key, c.boundary) {
		c.cursor.Next()
	}
	return true
}

func (c *Cursor) load() bool {
	if err := c.cursor.Err(); err != nil {
		c.err = translate("cursor", err)
		return false
	}
	if !c.cursor.Valid() {
		c.done = true
		c.item = store.Item{}
		return false
	}

	item, err := c.cursor.Item()
	if err != nil {
		c.err = translate("cursor", err)
		return false
	}
	c.item = item
	return true
}

func (c *Cursor) Key() []byte {
	return c.item.Key
}

func (c *Cursor) Value() []byte {
	return c.item.Value
}

func (c *Cursor) Pair() Pair {
	return Pair{Key: c.item.Key, Value: c.item.Value}
}

// Err returns the engine error that stopped the iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the engine cursor. Only the first call does anything.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.item = store.Item{}
	return translate("close cursor", c.cursor.Close())
}

// scan feeds fn with the pairs of a new cursor until fn returns false,
// and closes the cursor however the loop ends.
func (db *DB) scan(order ScanOrder, boundary []byte, fn func(key, value []byte) bool) (err error) {
	c, err := db.Scan(order, boundary)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()

	for c.Next() {
		if !fn(c.Key(), c.Value()) {
			return nil
		}
	}
	return c.Err()
}
