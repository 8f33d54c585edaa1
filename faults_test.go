package sophia

import (
	"testing"

	"github.com/ostafen/sophia/store"
	"github.com/ostafen/sophia/store/mem"
)

// faultyEngine wraps the mem engine and fails the calls configured in
// faults. It also counts releases so tests can check that nothing leaks.
const faultyEngine = "faulty"

type faultSet struct {
	configure   error
	open        error
	destroyEnv  error
	destroyDB   error
	begin       error
	commit      error
	rollback    error
	cursorClose error

	envDestroyed  int
	cursorsOpened int
	cursorsClosed int
	rollbacks     int
	commits       int
}

var faults = &faultSet{}

func init() {
	store.Register(faultyEngine, func(s store.Settings) (store.Environment, error) {
		env, err := mem.New(s)
		if err != nil {
			return nil, err
		}
		return &faultyEnv{Environment: env}, nil
	})
}

// useFaults installs a fresh fault set for the duration of the test.
func useFaults(t *testing.T) *faultSet {
	faults = &faultSet{}
	t.Cleanup(func() {
		faults = &faultSet{}
	})
	return faults
}

type faultyEnv struct {
	store.Environment
}

func (e *faultyEnv) Configure(dir string, flags store.Flags) error {
	if faults.configure != nil {
		return faults.configure
	}
	return e.Environment.Configure(dir, flags)
}

func (e *faultyEnv) Open() (store.Database, error) {
	if faults.open != nil {
		return nil, faults.open
	}

	db, err := e.Environment.Open()
	if err != nil {
		return nil, err
	}
	return &faultyDB{Database: db}, nil
}

func (e *faultyEnv) Destroy() error {
	if faults.destroyEnv != nil {
		return faults.destroyEnv
	}
	faults.envDestroyed++
	return e.Environment.Destroy()
}

type faultyDB struct {
	store.Database
}

func (d *faultyDB) Destroy() error {
	if faults.destroyDB != nil {
		return faults.destroyDB
	}
	return d.Database.Destroy()
}

func (d *faultyDB) Begin() error {
	if faults.begin != nil {
		return faults.begin
	}
	return d.Database.Begin()
}

func (d *faultyDB) Commit() error {
	if faults.commit != nil {
		return faults.commit
	}
	faults.commits++
	return d.Database.Commit()
}

func (d *faultyDB) Rollback() error {
	if faults.rollback != nil {
		return faults.rollback
	}
	faults.rollbacks++
	return d.Database.Rollback()
}

func (d *faultyDB) Cursor(reverse bool) (store.Cursor, error) {
	c, err := d.Database.Cursor(reverse)
	if err != nil {
		return nil, err
	}
	faults.cursorsOpened++
	return &faultyCursor{Cursor: c}, nil
}

type faultyCursor struct {
	store.Cursor
}

func (c *faultyCursor) Close() error {
	faults.cursorsClosed++
	if faults.cursorClose != nil {
		return faults.cursorClose
	}
	return c.Cursor.Close()
}
