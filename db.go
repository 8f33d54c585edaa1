package sophia

import (
	"path/filepath"

	"github.com/ostafen/sophia/store"
	"github.com/rs/zerolog"
)

// DB owns an engine environment and the database opened from it. Both are
// set while the DB is open and both are nil once it has been closed.
//
// A DB is not safe for concurrent use. Cursors and transactions borrow it
// and must be finished before Close is called.
type DB struct {
	path   string
	engine string
	env    store.Environment
	db     store.Database
	log    zerolog.Logger
}

// Open opens (or creates) the database stored in the directory at path.
func Open(path string, opts ...Option) (*DB, error) {
	conf, err := defaultConfig().applyOptions(opts)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &OpenError{Path: path, Op: "resolve path", Err: err}
	}

	log := conf.Logger.With().Str("component", "sophia").Str("path", absPath).Logger()

	env, err := store.NewEnvironment(conf.Engine, conf.settings())
	if err != nil {
		return nil, &OpenError{Path: absPath, Op: "create environment", Err: err}
	}

	if err := env.Configure(absPath, conf.flags()); err != nil {
		return nil, abandon(env, log, &OpenError{Path: absPath, Op: "configure directory", Err: err})
	}

	database, err := env.Open()
	if err != nil {
		return nil, abandon(env, log, &OpenError{Path: absPath, Op: "open database", Err: err})
	}

	log.Debug().Str("engine", conf.Engine).Msg("database opened")

	return &DB{
		path:   absPath,
		engine: conf.Engine,
		env:    env,
		db:     database,
		log:    log,
	}, nil
}

// abandon releases an environment whose database could not be opened. The
// open error is what the caller sees.
func abandon(env store.Environment, log zerolog.Logger, err *OpenError) error {
	if derr := env.Destroy(); derr != nil {
		log.Warn().Err(derr).Msg("failed to release environment after open error")
	}
	return err
}

// Use opens the database at path, passes it to fn and closes it when fn
// returns, panics included. A close failure is returned only when fn
// succeeded; otherwise it is logged and fn's error is returned.
func Use(path string, fn func(db *DB) error, opts ...Option) (err error) {
	if fn == nil {
		return &ArgumentError{Msg: "must supply a function to Use"}
	}

	db, err := Open(path, opts...)
	if err != nil {
		return err
	}

	returned := false
	defer func() {
		cerr := db.Close()
		if cerr == nil {
			return
		}

		if !returned || err != nil {
			db.log.Warn().Err(cerr).Msg("suppressed close error")
			return
		}
		err = cerr
	}()

	err = fn(db)
	returned = true
	return err
}

// database is the validity check every operation starts with.
func (db *DB) database() (store.Database, error) {
	if db == nil || db.env == nil || db.db == nil {
		return nil, ErrClosed
	}
	return db.db, nil
}

// Path returns the absolute path of the storage directory.
func (db *DB) Path() string {
	return db.path
}

// Engine returns the name of the storage engine in use.
func (db *DB) Engine() string {
	return db.engine
}

// Closed reports whether the DB can no longer be used.
func (db *DB) Closed() bool {
	_, err := db.database()
	return err != nil
}

// Close destroys the database and then the environment. Calling Close on
// a closed DB does nothing. If a destroy fails, the half that could not
// be released stays set and a later Close retries it.
func (db *DB) Close() error {
	if db == nil || (db.env == nil && db.db == nil) {
		return nil
	}

	if db.db != nil {
		if err := db.db.Destroy(); err != nil {
			return translate("close database", err)
		}
		db.db = nil
	}

	if db.env != nil {
		if err := db.env.Destroy(); err != nil {
			return translate("close environment", err)
		}
		db.env = nil
	}

	db.log.Debug().Msg("database closed")
	return nil
}

// Lookup returns the value stored under key and whether it was found.
func (db *DB) Lookup(key []byte) ([]byte, bool, error) {
	database, err := db.database()
	if err != nil {
		return nil, false, err
	}

	value, found, err := database.Get(key)
	if err != nil {
		return nil, false, translate("get", err)
	}
	return value, found, nil
}

// Get returns the value stored under key, or nil if there is none.
func (db *DB) Get(key []byte) ([]byte, error) {
	value, _, err := db.Lookup(key)
	return value, err
}

// Fetch is like Get but returns def when key is missing.
func (db *DB) Fetch(key, def []byte) ([]byte, error) {
	value, found, err := db.Lookup(key)
	if err != nil || found {
		return value, err
	}
	return def, nil
}

// FetchFunc is like Get but computes the result with fn when key is
// missing. Nothing is stored.
func (db *DB) FetchFunc(key []byte, fn func(key []byte) ([]byte, error)) ([]byte, error) {
	value, found, err := db.Lookup(key)
	if err != nil || found || fn == nil {
		return value, err
	}
	return fn(key)
}

func (db *DB) Set(key, value []byte) error {
	database, err := db.database()
	if err != nil {
		return err
	}
	return translate("set", database.Set(key, value))
}

// Delete removes key and returns the value it had, or nil. The read and
// the delete are two separate engine calls.
func (db *DB) Delete(key []byte) ([]byte, error) {
	prev, err := db.Get(key)
	if err != nil {
		return nil, err
	}

	if err := db.remove(key); err != nil {
		return nil, err
	}
	return prev, nil
}

func (db *DB) remove(key []byte) error {
	database, err := db.database()
	if err != nil {
		return err
	}
	return translate("delete", database.Delete(key))
}
