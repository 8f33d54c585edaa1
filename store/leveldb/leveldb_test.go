package leveldb

import (
	"testing"

	"github.com/ostafen/sophia/store"
	"github.com/ostafen/sophia/store/storetest"
)

func TestLevelDBStore(t *testing.T) {
	storetest.Run(t, storetest.Suite{New: New, Persistent: true})
}

func TestLevelDBStoreInMemory(t *testing.T) {
	storetest.Run(t, storetest.Suite{
		New:      New,
		Settings: store.Settings{InMemory: true},
	})
}
