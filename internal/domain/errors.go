package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the request boundary can map them.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindUpstream      ErrorKind = "upstream"
	KindToolNotFound  ErrorKind = "tool_not_found"
	KindToolArguments ErrorKind = "tool_arguments"
	KindStorage       ErrorKind = "storage"
	KindConfiguration ErrorKind = "configuration"
)

// Error carries a kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error. The format follows fmt.Errorf, so %w
// keeps the wrapped chain.
func Errorf(kind ErrorKind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err unless it already carries a kind.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outermost kind in err's chain, or "" when unclassified.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err was classified with kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsUpstream reports whether err is reported to callers as an upstream
// service failure. Missing credentials surface the same way.
func IsUpstream(err error) bool {
	k := KindOf(err)
	return k == KindUpstream || k == KindConfiguration
}
