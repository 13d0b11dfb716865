package harvest

import (
	"errors"
	"fmt"
)

// ErrEmptyProfile marks a page that rendered without an identifying name.
// It is retryable: the page may simply not have finished loading.
var ErrEmptyProfile = errors.New("profile has no name")

// RecoverableError wraps a transient failure eligible for another attempt.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("recoverable: %v", e.Err)
}

func (e *RecoverableError) Unwrap() error { return e.Err }

// Recoverable marks err as retryable. A nil err stays nil.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &RecoverableError{Err: err}
}

// IsRecoverable reports whether err is eligible for a retry. Only failures
// explicitly classified by the fetch collaborator (or the empty-profile
// sentinel) qualify; everything else is terminal for the target.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var re *RecoverableError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, ErrEmptyProfile)
}
