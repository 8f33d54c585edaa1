package sophia

import (
	"bytes"
	"testing"
	"time"

	"github.com/ostafen/sophia/store"
	"github.com/ostafen/sophia/store/badger"
	"github.com/ostafen/sophia/store/mem"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()

	require.Equal(t, badger.EngineName, c.Engine)
	require.True(t, c.CreateIfMissing)
	require.True(t, c.ReadWrite)
	require.False(t, c.InMemory)
	require.Equal(t, store.FlagCreate|store.FlagReadWrite, c.flags())
	require.Equal(t, badger.GCReclaimIntervalDefault, c.settings().GCReclaimInterval)
}

func TestOptions(t *testing.T) {
	c, err := defaultConfig().applyOptions([]Option{
		WithEngine(mem.EngineName),
		CreateIfMissing(false),
		ReadWrite(false),
		InMemoryMode(true),
		WithGCReclaimInterval(time.Minute),
		WithGCDiscardRatio(0.7),
	})
	require.NoError(t, err)

	require.Equal(t, mem.EngineName, c.Engine)
	require.Equal(t, store.Flags(0), c.flags())

	s := c.settings()
	require.True(t, s.InMemory)
	require.Equal(t, time.Minute, s.GCReclaimInterval)
	require.Equal(t, 0.7, s.GCDiscardRatio)
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty_engine", WithEngine("")},
		{"zero_interval", WithGCReclaimInterval(0)},
		{"negative_interval", WithGCReclaimInterval(-time.Second)},
		{"zero_ratio", WithGCDiscardRatio(0)},
		{"ratio_one", WithGCDiscardRatio(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := defaultConfig().applyOptions([]Option{tt.opt})

			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
		})
	}
}

func TestInMemoryBadger(t *testing.T) {
	db, err := Open(t.TempDir(), InMemoryMode(true))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set([]byte("k"), []byte("v")))

	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	db, err := Open(t.TempDir(), WithEngine(mem.EngineName), WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, db.Transaction(func(db *DB) error {
		return db.Set([]byte("a"), []byte("1"))
	}))
	require.NoError(t, db.Close())

	out := buf.String()
	require.Contains(t, out, `"component":"sophia"`)
	require.Contains(t, out, "database opened")
	require.Contains(t, out, "transaction committed")
	require.Contains(t, out, `"tx":`)
	require.Contains(t, out, "database closed")
}
