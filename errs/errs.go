// Package errs provides structured error types and helpers for poolkit.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a pool error category.
type Code string

const (
	// CodeExhausted indicates a strict acquire found no free instance.
	CodeExhausted Code = "exhausted"
	// CodeDestroyed indicates an operation on a pool that was torn down.
	CodeDestroyed Code = "destroyed"
	// CodeDoubleRelease indicates a release of an instance the pool does not consider acquired.
	CodeDoubleRelease Code = "double_release"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid"
	// CodeFactory indicates the injected Create capability failed.
	CodeFactory Code = "factory"
	// CodeNotRegistered indicates a lookup of an unknown pool name.
	CodeNotRegistered Code = "not_registered"
	// CodeClosed indicates the pool manager is shut down.
	CodeClosed Code = "closed"
	// CodeLeak indicates instances were still acquired at teardown.
	CodeLeak Code = "leak"
)

// E captures structured error information produced by pools and their manager.
type E struct {
	Pool    string
	Op      string
	Code    Code
	Message string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the pool and error code.
func New(pool string, code Code, opts ...Option) *E {
	e := &E{
		Pool: strings.TrimSpace(pool),
		Code: code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithOp records the pool operation that failed.
func WithOp(op string) Option {
	trimmed := strings.TrimSpace(op)
	return func(e *E) {
		e.Op = trimmed
	}
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	pool := e.Pool
	if pool == "" {
		pool = "unknown"
	}
	parts = append(parts, "pool="+pool)
	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf returns the code of the first envelope in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}
