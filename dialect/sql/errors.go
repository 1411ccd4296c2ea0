package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ConnErrorKind classifies a failed connection attempt.
type ConnErrorKind uint8

// Connection error kinds. Unrecognized driver codes fall through to
// ConnGeneric; classification itself never fails.
const (
	ConnGeneric ConnErrorKind = iota
	ConnRefused
	ConnAccessDenied
	ConnHostNotFound
	ConnHostUnreachable
	ConnInvalid
	// ConnPoolExhausted marks a pool acquisition that timed out waiting
	// for a free slot. The endpoint itself may be healthy.
	ConnPoolExhausted
)

var connKindNames = map[ConnErrorKind]string{
	ConnGeneric:         "connection error",
	ConnRefused:         "connection refused",
	ConnAccessDenied:    "access denied",
	ConnHostNotFound:    "host not found",
	ConnHostUnreachable: "host unreachable",
	ConnInvalid:         "invalid connection",
	ConnPoolExhausted:   "connection pool exhausted",
}

// ConnectionError is a typed, fatal error of a connection attempt. It is
// never retried internally.
type ConnectionError struct {
	Kind  ConnErrorKind
	cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("sql: %s: %v", connKindNames[e.Kind], e.cause)
}

// Unwrap returns the underlying driver error.
func (e *ConnectionError) Unwrap() error { return e.cause }

// IsConnectionError returns true if the error is a ConnectionError.
func IsConnectionError(err error) bool {
	var e *ConnectionError
	return errors.As(err, &e)
}

// UniqueConstraintError is a structured uniqueness violation. Fields maps
// each logical field of the violated key to the offending value parsed
// from the driver message.
type UniqueConstraintError struct {
	// Constraint is the name of the violated unique key.
	Constraint string
	// Fields maps field names to the offending values.
	Fields map[string]string
	cause  error
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("sql: unique constraint %q violated: %v", e.Constraint, e.cause)
}

// Unwrap returns the underlying driver error.
func (e *UniqueConstraintError) Unwrap() error { return e.cause }

// IsUniqueConstraintError returns true if the error is a uniqueness violation.
func IsUniqueConstraintError(err error) bool {
	var e *UniqueConstraintError
	return errors.As(err, &e)
}

// ForeignKeyConstraintError is a structured referential-integrity
// violation. Parent reports which side of the relation rejected the
// statement: true when a referenced parent row is still in use, false
// when a required parent row is missing.
type ForeignKeyConstraintError struct {
	Table      string
	Constraint string
	Fields     []string
	Parent     bool
	cause      error
}

func (e *ForeignKeyConstraintError) Error() string {
	side := "child"
	if e.Parent {
		side = "parent"
	}
	return fmt.Sprintf("sql: foreign key constraint %q on table %q violated (%s): %v", e.Constraint, e.Table, side, e.cause)
}

// Unwrap returns the underlying driver error.
func (e *ForeignKeyConstraintError) Unwrap() error { return e.cause }

// IsForeignKeyConstraintError returns true if the error is a referential
// integrity violation.
func IsForeignKeyConstraintError(err error) bool {
	var e *ForeignKeyConstraintError
	return errors.As(err, &e)
}

// DatabaseError is an opaque passthrough for execution errors outside
// the structured taxonomy. The original driver error is preserved.
type DatabaseError struct {
	cause error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("sql: %v", e.cause) }

// Unwrap returns the underlying driver error.
func (e *DatabaseError) Unwrap() error { return e.cause }

// IsDatabaseError returns true if the error is an unclassified database error.
func IsDatabaseError(err error) bool {
	var e *DatabaseError
	return errors.As(err, &e)
}

// RequestError reports a malformed logical request. It is detected
// before any SQL is emitted and never reaches the driver.
type RequestError struct {
	msg string
}

func (e *RequestError) Error() string { return "sql: invalid request: " + e.msg }

// NewRequestError returns a new request-construction error.
func NewRequestError(format string, args ...any) *RequestError {
	return &RequestError{msg: fmt.Sprintf(format, args...)}
}

// IsRequestError returns true if the error is a request-construction error.
func IsRequestError(err error) bool {
	var e *RequestError
	return errors.As(err, &e)
}

// UnsupportedTypeError reports an abstract type the dialect cannot render.
type UnsupportedTypeError struct {
	Type    string
	Dialect string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("sql: type %q is not supported on dialect %q", e.Type, e.Dialect)
}

// IsUnsupportedType returns true if the error is an UnsupportedTypeError.
func IsUnsupportedType(err error) bool {
	var e *UnsupportedTypeError
	return errors.As(err, &e)
}

// ErrorMatches reports whether any of the given patterns matches the
// error text. Patterns are regular expressions. Callers use it to build
// retry allow-lists over classified errors; the core never retries.
func ErrorMatches(err error, patterns ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range patterns {
		if re, rerr := regexp.Compile(p); rerr == nil && re.MatchString(msg) {
			return true
		}
	}
	return false
}

// errorCoder is implemented by driver errors carrying string codes
// (lib/pq among others).
type errorCoder interface {
	Code() string
}

// errorNumberer is implemented by driver errors carrying numeric codes
// (go-sql-driver/mysql exposes Number as a field; wrappers as a method).
type errorNumberer interface {
	Number() uint16
}

// sqlStateError is implemented by errors exposing a SQLSTATE code.
type sqlStateError interface {
	SQLState() string
}

// asError extracts an error implementing T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
