package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrStaleValue is returned when a value is read after the arena that backs it was reset.
var ErrStaleValue = errors.New("value read after its record was released")

// ErrorKind classifies a QueryError.
type ErrorKind int

const (
	KindInvalidQuery ErrorKind = iota
	KindNoParserProvides
	KindFieldDoesNotExist
	KindCyclicField
	KindIO
	KindArenaOverflow
	KindStaleValue
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidQuery:
		return "invalid_query"
	case KindNoParserProvides:
		return "no_parser_provides"
	case KindFieldDoesNotExist:
		return "field_does_not_exist"
	case KindCyclicField:
		return "cyclic_field"
	case KindIO:
		return "io"
	case KindArenaOverflow:
		return "arena_overflow"
	case KindStaleValue:
		return "stale_value"
	default:
		return "unknown"
	}
}

// QueryError aborts a whole query. Path names the field that caused it, if any.
type QueryError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *QueryError) Error() string {
	switch e.Kind {
	case KindNoParserProvides:
		return fmt.Sprintf("no parser provides field `%s`", e.Path)
	case KindFieldDoesNotExist:
		return fmt.Sprintf("field `%s` does not exist", e.Path)
	case KindCyclicField:
		return fmt.Sprintf("field `%s` is derived from itself", e.Path)
	}
	msg := e.Kind.String()
	switch e.Kind {
	case KindInvalidQuery:
		msg = "invalid query"
	case KindIO:
		msg = "I/O error"
	case KindArenaOverflow:
		msg = "record too large"
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" at `%s`", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Cause() error { return e.Err }

func queryError(kind ErrorKind, path string, err error) *QueryError {
	return &QueryError{Kind: kind, Path: path, Err: err}
}

func invalidQuery(path, format string, args ...interface{}) *QueryError {
	return queryError(KindInvalidQuery, path, errors.Errorf(format, args...))
}

// IOError wraps err, raised while reading path, as a QueryError.
func IOError(path string, err error) error {
	return queryError(KindIO, path, err)
}

// KindOf returns the kind of the QueryError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return 0, false
}
