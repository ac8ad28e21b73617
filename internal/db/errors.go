package db

import (
	"errors"
	"fmt"
)

// PersistenceError reports a failed storage operation. It is fatal to a sync
// run: the page being written is rolled back, earlier pages stay committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persist wraps err as a PersistenceError, leaving nil and ErrNotFound as they are.
func persist(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
