// Package safe converts panics at step boundaries into ordinary errors.
//
// Governance steps must never take the caller down. Each step returns an
// error in the usual way; Do and Value additionally turn a panic inside the
// step into a *PanicError so one broken step degrades into a recorded
// warning instead of aborting the run.
package safe

import "fmt"

// PanicError wraps a recovered panic value.
type PanicError struct {
	Step  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Step, e.Value)
}

// Do runs fn and returns its error, or a *PanicError if fn panicked.
func Do(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Step: step, Value: r}
		}
	}()
	return fn()
}

// Value runs fn and returns its result. On error or panic it returns
// fallback together with the error.
func Value[T any](step string, fallback T, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = fallback, &PanicError{Step: step, Value: r}
		}
	}()
	v, err := fn()
	if err != nil {
		return fallback, err
	}
	return v, nil
}
