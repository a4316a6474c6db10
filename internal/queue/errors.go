package queue

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a missing record directory or metadata file.
var ErrNotFound = errors.New("post record not found")

// ParseError marks a malformed metadata file or an unexpected entry in a
// queue directory. Enumeration treats it as fatal; the queue roots are owned
// by this program and anything unrecognized in them means operator error.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }
