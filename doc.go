// Package sophia is an ordered key-value map stored in a directory by an
// embedded engine.
//
// A DB owns the engine environment and the database opened from it. Keys
// and values are byte slices and keys are kept in byte order, so a DB can
// be scanned from any key in both directions:
//
//	db, err := sophia.Open("data")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	if err := db.Set([]byte("a"), []byte("1")); err != nil {
//		return err
//	}
//
//	err = db.EachPair(sophia.Ascending, func(key, value []byte) bool {
//		fmt.Printf("%s=%s\n", key, value)
//		return true
//	})
//
// Writes can be grouped with Transaction, which commits when its function
// returns nil and rolls back otherwise. Every operation on a closed DB
// fails with ErrClosed; engine failures are reported as *EngineError.
//
// The engine is chosen with WithEngine. badger is the default; bbolt,
// pebble, leveldb and mem are also available.
package sophia
