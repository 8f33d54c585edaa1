package sophia

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ostafen/sophia/store"
	"github.com/ostafen/sophia/store/badger"
	"github.com/ostafen/sophia/store/bbolt"
	"github.com/ostafen/sophia/store/leveldb"
	"github.com/ostafen/sophia/store/mem"
	"github.com/ostafen/sophia/store/pebble"
	"github.com/stretchr/testify/require"
)

var testEngines = []string{
	mem.EngineName,
	badger.EngineName,
	bbolt.EngineName,
	pebble.EngineName,
	leveldb.EngineName,
}

func runSophiaTest(t *testing.T, test func(t *testing.T, db *DB), opts ...Option) {
	for _, engine := range testEngines {
		t.Run(engine, func(t *testing.T) {
			options := append([]Option{WithEngine(engine)}, opts...)

			db, err := Open(t.TempDir(), options...)
			require.NoError(t, err)
			defer func() {
				require.NoError(t, db.Close())
			}()

			test(t, db)
		})
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, WithEngine(mem.EngineName))
	require.NoError(t, err)
	require.False(t, db.Closed())
	require.Equal(t, mem.EngineName, db.Engine())

	absDir, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.Equal(t, absDir, db.Path())

	require.NoError(t, db.Close())
	require.True(t, db.Closed())
	require.NoError(t, db.Close())
}

func TestOpenDefaultEngine(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, DefaultEngine, db.Engine())
	require.NoError(t, db.Set([]byte("hello"), []byte("sophia")))

	value, err := db.Get([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("sophia"), value)
}

func TestClosedDB(t *testing.T) {
	db, err := Open(t.TempDir(), WithEngine(mem.EngineName))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	key := []byte("key")

	_, err = db.Get(key)
	require.ErrorIs(t, err, ErrClosed)

	_, _, err = db.Lookup(key)
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, db.Set(key, key), ErrClosed)

	_, err = db.Delete(key)
	require.ErrorIs(t, err, ErrClosed)

	_, err = db.Scan(GTE, key)
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, db.Transaction(func(db *DB) error { return nil }), ErrClosed)

	_, err = db.Len()
	require.ErrorIs(t, err, ErrClosed)

	_, err = db.HasKey(key)
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, db.Clear(), ErrClosed)
	require.ErrorIs(t, db.Update(Pair{Key: key, Value: key}), ErrClosed)
}

func TestNilDB(t *testing.T) {
	var db *DB

	require.True(t, db.Closed())
	require.NoError(t, db.Close())

	_, err := db.Get([]byte("key"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpenInvalidOptions(t *testing.T) {
	_, err := Open(t.TempDir(), WithEngine(""))

	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
}

func TestOpenUnknownEngine(t *testing.T) {
	_, err := Open(t.TempDir(), WithEngine("unknown"))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "create environment", openErr.Op)
	require.ErrorIs(t, err, store.ErrUnknownEngine)
}

func TestOpenMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	_, err := Open(dir, WithEngine(badger.EngineName), CreateIfMissing(false))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "configure directory", openErr.Op)
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Open(dir, WithEngine(mem.EngineName), CreateIfMissing(false))
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "open database", openErr.Op)
	require.ErrorIs(t, err, mem.ErrNoDatabase)
}

func TestOpenFailureReleasesEnvironment(t *testing.T) {
	faults := useFaults(t)
	faults.open = errors.New("cannot open")

	_, err := Open(t.TempDir(), WithEngine(faultyEngine))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "open database", openErr.Op)
	require.ErrorIs(t, err, faults.open)
	require.Equal(t, 1, faults.envDestroyed)
}

func TestConfigureFailureReleasesEnvironment(t *testing.T) {
	faults := useFaults(t)
	faults.configure = errors.New("bad directory")

	_, err := Open(t.TempDir(), WithEngine(faultyEngine))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "configure directory", openErr.Op)
	require.ErrorIs(t, err, faults.configure)
	require.Equal(t, 1, faults.envDestroyed)
}

func TestCloseFailureCanBeRetried(t *testing.T) {
	faults := useFaults(t)

	db, err := Open(t.TempDir(), WithEngine(faultyEngine))
	require.NoError(t, err)

	faults.destroyDB = errors.New("busy")

	err = db.Close()
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, "close database", engineErr.Op)
	require.Equal(t, "busy", engineErr.Message)
	require.False(t, db.Closed())

	faults.destroyDB = nil
	require.NoError(t, db.Close())
	require.True(t, db.Closed())
	require.Equal(t, 1, faults.envDestroyed)
}

func TestCloseEnvironmentFailure(t *testing.T) {
	faults := useFaults(t)

	db, err := Open(t.TempDir(), WithEngine(faultyEngine))
	require.NoError(t, err)

	faults.destroyEnv = errors.New("env busy")

	var engineErr *EngineError
	require.ErrorAs(t, db.Close(), &engineErr)
	require.Equal(t, "close environment", engineErr.Op)

	// the database half is gone, so the handle is already unusable
	require.True(t, db.Closed())
	_, err = db.Get([]byte("key"))
	require.ErrorIs(t, err, ErrClosed)

	faults.destroyEnv = nil
	require.NoError(t, db.Close())
}

func TestGetSetDelete(t *testing.T) {
	runSophiaTest(t, func(t *testing.T, db *DB) {
		key := []byte(gofakeit.UUID())
		value := []byte(gofakeit.Sentence(5))

		got, err := db.Get(key)
		require.NoError(t, err)
		require.Nil(t, got)

		require.NoError(t, db.Set(key, value))

		got, err = db.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, got)

		prev, err := db.Delete(key)
		require.NoError(t, err)
		require.Equal(t, value, prev)

		prev, err = db.Delete(key)
		require.NoError(t, err)
		require.Nil(t, prev)

		got, err = db.Get(key)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestEmptyValue(t *testing.T) {
	runSophiaTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set([]byte("empty"), []byte{}))

		value, found, err := db.Lookup([]byte("empty"))
		require.NoError(t, err)
		require.True(t, found)
		require.NotNil(t, value)
		require.Len(t, value, 0)
	})
}

func TestFetch(t *testing.T) {
	runSophiaTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set([]byte("a"), []byte("1")))

		value, err := db.Fetch([]byte("a"), []byte("default"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), value)

		value, err = db.Fetch([]byte("b"), []byte("default"))
		require.NoError(t, err)
		require.Equal(t, []byte("default"), value)

		calls := 0
		compute := func(key []byte) ([]byte, error) {
			calls++
			return append([]byte("computed-"), key...), nil
		}

		value, err = db.FetchFunc([]byte("a"), compute)
		require.NoError(t, err)
		require.Equal(t, []byte("1"), value)
		require.Equal(t, 0, calls)

		value, err = db.FetchFunc([]byte("b"), compute)
		require.NoError(t, err)
		require.Equal(t, []byte("computed-b"), value)
		require.Equal(t, 1, calls)

		// nothing is stored by FetchFunc
		has, err := db.HasKey([]byte("b"))
		require.NoError(t, err)
		require.False(t, has)
	})
}

func TestReopenKeepsData(t *testing.T) {
	for _, engine := range testEngines {
		t.Run(engine, func(t *testing.T) {
			dir := t.TempDir()

			db, err := Open(dir, WithEngine(engine))
			require.NoError(t, err)
			require.NoError(t, db.Set([]byte("persistent"), []byte("yes")))
			require.NoError(t, db.Close())

			db, err = Open(dir, WithEngine(engine), CreateIfMissing(false))
			require.NoError(t, err)
			defer db.Close()

			value, err := db.Get([]byte("persistent"))
			require.NoError(t, err)
			require.Equal(t, []byte("yes"), value)
		})
	}
}

func TestReadOnly(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, WithEngine(mem.EngineName))
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("a"), []byte("1")))
	require.NoError(t, db.Close())

	db, err = Open(dir, WithEngine(mem.EngineName), ReadWrite(false))
	require.NoError(t, err)
	defer db.Close()

	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	err = db.Set([]byte("b"), []byte("2"))

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, "set", engineErr.Op)
	require.Equal(t, store.ErrReadOnly.Error(), engineErr.Message)
	require.ErrorIs(t, err, store.ErrReadOnly)
}

func TestUse(t *testing.T) {
	dir := t.TempDir()

	var used *DB
	err := Use(dir, func(db *DB) error {
		used = db
		return db.Set([]byte("a"), []byte("1"))
	}, WithEngine(mem.EngineName))
	require.NoError(t, err)
	require.True(t, used.Closed())

	err = Use(dir, func(db *DB) error {
		value, err := db.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), value)
		return nil
	}, WithEngine(mem.EngineName))
	require.NoError(t, err)
}

func TestUseNilFunc(t *testing.T) {
	var argErr *ArgumentError
	require.ErrorAs(t, Use(t.TempDir(), nil), &argErr)
}

func TestUseReturnsBodyError(t *testing.T) {
	bodyErr := errors.New("body failed")

	var used *DB
	err := Use(t.TempDir(), func(db *DB) error {
		used = db
		return bodyErr
	}, WithEngine(mem.EngineName))
	require.Equal(t, bodyErr, err)
	require.True(t, used.Closed())
}

func TestUseClosesOnPanic(t *testing.T) {
	var used *DB

	require.PanicsWithValue(t, "boom", func() {
		_ = Use(t.TempDir(), func(db *DB) error {
			used = db
			panic("boom")
		}, WithEngine(mem.EngineName))
	})
	require.True(t, used.Closed())
}

func TestUseCloseError(t *testing.T) {
	faults := useFaults(t)

	err := Use(t.TempDir(), func(db *DB) error {
		faults.destroyDB = errors.New("close failed")
		return nil
	}, WithEngine(faultyEngine))

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Equal(t, "close database", engineErr.Op)

	// a failing body wins over a failing close
	bodyErr := errors.New("body failed")
	err = Use(t.TempDir(), func(db *DB) error {
		return bodyErr
	}, WithEngine(faultyEngine))
	require.Equal(t, bodyErr, err)
}
