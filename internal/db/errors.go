package db

import "fmt"

// ConnError wraps failures to reach or authenticate against a database. The
// tool layer surfaces it as an error payload so the model can react; it never
// kills the process.
type ConnError struct {
	Target string
	Err    error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }
