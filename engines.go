package sophia

// Every bundled engine registers itself with the store package.
import (
	_ "github.com/ostafen/sophia/store/badger"
	_ "github.com/ostafen/sophia/store/bbolt"
	_ "github.com/ostafen/sophia/store/leveldb"
	_ "github.com/ostafen/sophia/store/mem"
	_ "github.com/ostafen/sophia/store/pebble"
)
