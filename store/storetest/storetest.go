// Package storetest holds the behaviour every store driver has to agree
// on. Driver packages run it from their own tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/ostafen/sophia/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Suite describes the driver under test.
type Suite struct {
	New      store.Factory
	Settings store.Settings

	// Persistent drivers keep their data across environments and check
	// the storage directory on Configure.
	Persistent bool
}

const rw = store.FlagCreate | store.FlagReadWrite

func (s Suite) settings() store.Settings {
	settings := s.Settings
	settings.Logger = zerolog.Nop()
	return settings
}

func (s Suite) newEnv(t *testing.T) store.Environment {
	env, err := s.New(s.settings())
	require.NoError(t, err)
	return env
}

func (s Suite) open(t *testing.T, dir string, flags store.Flags) (store.Environment, store.Database) {
	env := s.newEnv(t)
	require.NoError(t, env.Configure(dir, flags))

	db, err := env.Open()
	require.NoError(t, err)
	return env, db
}

func teardown(t *testing.T, env store.Environment, db store.Database) {
	require.NoError(t, db.Destroy())
	require.NoError(t, env.Destroy())
}

// Run executes the whole suite.
func Run(t *testing.T, s Suite) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db store.Database)
	}{
		{name: "basic_set_get", fn: testBasicSetGet},
		{name: "delete", fn: testDelete},
		{name: "empty_value", fn: testEmptyValue},
		{name: "forward_order", fn: testForwardOrder},
		{name: "reverse_order", fn: testReverseOrder},
		{name: "forward_seek", fn: testForwardSeek},
		{name: "reverse_seek", fn: testReverseSeek},
		{name: "empty_cursor", fn: testEmptyCursor},
		{name: "exhausted_cursor_stays_exhausted", fn: testExhaustedCursor},
		{name: "tx_commit", fn: testTxCommit},
		{name: "tx_rollback", fn: testTxRollback},
		{name: "tx_cursor_sees_pending", fn: testTxCursor},
		{name: "tx_state_errors", fn: testTxStateErrors},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, db := s.open(t, t.TempDir(), rw)
			defer teardown(t, env, db)

			tc.fn(t, db)
		})
	}

	t.Run("open_unconfigured", func(t *testing.T) {
		env := s.newEnv(t)
		_, err := env.Open()
		assert.ErrorIs(t, err, store.ErrNotConfigured)
		require.NoError(t, env.Destroy())
	})

	t.Run("destroy_busy_environment", func(t *testing.T) {
		env, db := s.open(t, t.TempDir(), rw)

		assert.ErrorIs(t, env.Destroy(), store.ErrEnvBusy)
		teardown(t, env, db)
	})

	if !s.Persistent {
		return
	}

	t.Run("reopen_keeps_data", func(t *testing.T) {
		dir := t.TempDir()

		env, db := s.open(t, dir, rw)
		require.NoError(t, db.Set([]byte("k"), []byte("v")))
		teardown(t, env, db)

		env, db = s.open(t, dir, rw)
		defer teardown(t, env, db)

		value, found, err := db.Get([]byte("k"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("v"), value)
	})

	t.Run("read_only", func(t *testing.T) {
		dir := t.TempDir()

		env, db := s.open(t, dir, rw)
		require.NoError(t, db.Set([]byte("k"), []byte("v")))
		teardown(t, env, db)

		env, db = s.open(t, dir, 0)
		defer teardown(t, env, db)

		value, found, err := db.Get([]byte("k"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("v"), value)

		assert.Error(t, db.Set([]byte("k2"), []byte("v2")))
	})

	t.Run("missing_dir_without_create", func(t *testing.T) {
		env := s.newEnv(t)
		err := env.Configure(filepath.Join(t.TempDir(), "missing"), store.FlagReadWrite)
		assert.Error(t, err)
		require.NoError(t, env.Destroy())
	})
}

func put(t *testing.T, db store.Database, pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		require.NoError(t, db.Set([]byte(pairs[i]), []byte(pairs[i+1])))
	}
}

func collect(t *testing.T, c store.Cursor) []string {
	var keys []string
	for ; c.Valid(); c.Next() {
		item, err := c.Item()
		require.NoError(t, err)
		keys = append(keys, string(item.Key))
	}
	require.NoError(t, c.Err())
	return keys
}

func testBasicSetGet(t *testing.T, db store.Database) {
	key, value := []byte("test-key"), []byte("test-value")
	require.NoError(t, db.Set(key, value))

	got, found, err := db.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, value, got)

	_, found, err = db.Get([]byte("non-existent"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Set(key, []byte("overwritten")))
	got, _, err = db.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("overwritten"), got)
}

func testDelete(t *testing.T, db store.Database) {
	put(t, db, "delete-test", "to-be-deleted")
	require.NoError(t, db.Delete([]byte("delete-test")))

	_, found, err := db.Get([]byte("delete-test"))
	require.NoError(t, err)
	assert.False(t, found)

	// deleting a missing key is not an error
	assert.NoError(t, db.Delete([]byte("non-existent")))
}

func testEmptyValue(t *testing.T, db store.Database) {
	require.NoError(t, db.Set([]byte("k"), []byte{}))

	value, found, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.NotNil(t, value)
	assert.Len(t, value, 0)
}

func testForwardOrder(t *testing.T, db store.Database) {
	put(t, db, "c", "3", "a", "1", "e", "5", "b", "2", "d", "4")

	c, err := db.Cursor(false)
	require.NoError(t, err)
	defer c.Close()

	c.Rewind()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, collect(t, c))
}

func testReverseOrder(t *testing.T, db store.Database) {
	put(t, db, "c", "3", "a", "1", "e", "5", "b", "2", "d", "4")

	c, err := db.Cursor(true)
	require.NoError(t, err)
	defer c.Close()

	c.Rewind()
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, collect(t, c))
}

func testForwardSeek(t *testing.T, db store.Database) {
	put(t, db, "b", "2", "d", "4", "f", "6")

	tests := []struct {
		seek string
		want []string
	}{
		{seek: "a", want: []string{"b", "d", "f"}},
		{seek: "d", want: []string{"d", "f"}},
		{seek: "dd", want: []string{"f"}},
		{seek: "g", want: nil},
	}

	for _, tc := range tests {
		c, err := db.Cursor(false)
		require.NoError(t, err)

		c.Seek([]byte(tc.seek))
		assert.Equal(t, tc.want, collect(t, c), "seek %q", tc.seek)
		require.NoError(t, c.Close())
	}
}

func testReverseSeek(t *testing.T, db store.Database) {
	put(t, db, "b", "2", "d", "4", "f", "6")

	tests := []struct {
		seek string
		want []string
	}{
		{seek: "g", want: []string{"f", "d", "b"}},
		{seek: "d", want: []string{"d", "b"}},
		{seek: "dd", want: []string{"d", "b"}},
		{seek: "a", want: nil},
	}

	for _, tc := range tests {
		c, err := db.Cursor(true)
		require.NoError(t, err)

		c.Seek([]byte(tc.seek))
		assert.Equal(t, tc.want, collect(t, c), "seek %q", tc.seek)
		require.NoError(t, c.Close())
	}
}

func testEmptyCursor(t *testing.T, db store.Database) {
	for _, reverse := range []bool{false, true} {
		c, err := db.Cursor(reverse)
		require.NoError(t, err)

		c.Rewind()
		assert.False(t, c.Valid())
		require.NoError(t, c.Close())
	}
}

func testExhaustedCursor(t *testing.T, db store.Database) {
	for _, reverse := range []bool{false, true} {
		c, err := db.Cursor(reverse)
		require.NoError(t, err)

		// empty database
		c.Rewind()
		require.NotPanics(t, func() {
			c.Next()
			c.Next()
		})
		assert.False(t, c.Valid())
		require.NoError(t, c.Close())
	}

	put(t, db, "a", "1")

	for _, reverse := range []bool{false, true} {
		c, err := db.Cursor(reverse)
		require.NoError(t, err)

		c.Rewind()
		require.True(t, c.Valid())

		require.NotPanics(t, func() {
			for i := 0; i < 3; i++ {
				c.Next()
			}
		})
		assert.False(t, c.Valid())
		require.NoError(t, c.Close())
	}
}

func testTxCommit(t *testing.T, db store.Database) {
	require.NoError(t, db.Begin())
	put(t, db, "k", "v")

	value, found, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, db.Commit())

	value, found, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func testTxRollback(t *testing.T, db store.Database) {
	put(t, db, "a", "1", "b", "2")

	require.NoError(t, db.Begin())
	put(t, db, "a", "changed", "c", "3")
	require.NoError(t, db.Delete([]byte("b")))
	require.NoError(t, db.Rollback())

	value, found, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("1"), value)

	_, found, err = db.Get([]byte("b"))
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = db.Get([]byte("c"))
	require.NoError(t, err)
	assert.False(t, found)
}

func testTxCursor(t *testing.T, db store.Database) {
	put(t, db, "a", "1")

	require.NoError(t, db.Begin())
	defer db.Rollback() //nolint:errcheck

	put(t, db, "b", "2")

	c, err := db.Cursor(false)
	require.NoError(t, err)
	defer c.Close()

	c.Rewind()
	assert.Equal(t, []string{"a", "b"}, collect(t, c))
}

func testTxStateErrors(t *testing.T, db store.Database) {
	assert.ErrorIs(t, db.Commit(), store.ErrNoTx)
	assert.ErrorIs(t, db.Rollback(), store.ErrNoTx)

	require.NoError(t, db.Begin())
	assert.ErrorIs(t, db.Begin(), store.ErrTxActive)
	require.NoError(t, db.Rollback())

	assert.ErrorIs(t, db.Rollback(), store.ErrNoTx)
}
