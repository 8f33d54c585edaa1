package sophia

import (
	"github.com/gofrs/uuid/v5"
)

// Transaction runs fn inside a transaction. The transaction is committed
// if fn returns nil and rolled back if fn returns an error or panics.
//
// The error returned by fn is passed through unchanged. If the rollback
// fails too, a *RollbackError carrying both errors is returned instead.
// A failed commit is returned as an *EngineError: the outcome of the
// transaction is then unknown.
//
// Only one transaction can be active on a DB at a time.
func (db *DB) Transaction(fn func(db *DB) error) error {
	if fn == nil {
		return ErrNoBody
	}

	_, err := InTransaction(db, func(db *DB) (struct{}, error) {
		return struct{}{}, fn(db)
	})
	return err
}

// InTransaction is Transaction for functions that produce a result. The
// result is discarded unless the transaction commits.
func InTransaction[R any](db *DB, fn func(db *DB) (R, error)) (R, error) {
	var zero R

	if fn == nil {
		return zero, ErrNoBody
	}

	database, err := db.database()
	if err != nil {
		return zero, err
	}

	if err := database.Begin(); err != nil {
		return zero, translate("begin", err)
	}

	log := db.log.With().Str("tx", uuid.Must(uuid.NewV4()).String()).Logger()
	log.Debug().Msg("transaction started")

	returned := false
	defer func() {
		if returned {
			return
		}

		// fn panicked: undo its writes and let the panic go on
		if rerr := database.Rollback(); rerr != nil {
			log.Error().Err(rerr).Msg("rollback after panic failed")
			return
		}
		log.Debug().Msg("transaction rolled back after panic")
	}()

	result, err := fn(db)
	returned = true

	if err != nil {
		if rerr := database.Rollback(); rerr != nil {
			return zero, &RollbackError{Err: err, RollbackErr: translate("rollback", rerr)}
		}
		log.Debug().Err(err).Msg("transaction rolled back")
		return zero, err
	}

	if err := database.Commit(); err != nil {
		return zero, translate("commit", err)
	}

	log.Debug().Msg("transaction committed")
	return result, nil
}
