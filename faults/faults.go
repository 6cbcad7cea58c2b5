// Package faults defines the closed error taxonomy shared by the realtime
// core. Retry, broadcast, and reaper logic switch on these kinds rather than
// inspecting status codes or error strings.
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind int

const (
	// KindValidation marks malformed or missing input. Never retried.
	KindValidation Kind = iota + 1
	// KindTransientStore marks a directory store failure that is safe to
	// retry with backoff.
	KindTransientStore
	// KindTimeout marks an operation that exceeded its budget.
	KindTimeout
	// KindStaleConnection marks a delivery attempt against a transport
	// session that no longer exists. A control signal, not a failure.
	KindStaleConnection
	// KindExternalNotFound marks an external handle (e.g. a conferencing
	// session) that no longer resolves. A cue to reconcile directory state.
	KindExternalNotFound
)

// Fault is a tagged error. Use the predicates below rather than matching on
// the struct directly.
type Fault struct {
	Kind Kind
	msg  string
	err  error
}

func (f *Fault) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%v: %v", f.msg, f.err)
	}
	return f.msg
}

func (f *Fault) Unwrap() error { return f.err }

// Validation constructs a validation fault from a format string.
func Validation(format string, args ...interface{}) error {
	return &Fault{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// TransientStore wraps a directory store error as retriable.
func TransientStore(msg string, err error) error {
	return &Fault{Kind: KindTransientStore, msg: msg, err: err}
}

// Timeout constructs a timeout fault for the named operation.
func Timeout(op string, budget time.Duration) error {
	return &Fault{Kind: KindTimeout, msg: fmt.Sprintf("%v exceeded %v budget", op, budget)}
}

// Stale marks a connection as gone at the transport layer.
func Stale(connectionID string) error {
	return &Fault{Kind: KindStaleConnection, msg: fmt.Sprintf("connection %v is gone", connectionID)}
}

// ExternalNotFound marks an external session handle that no longer resolves.
func ExternalNotFound(handle string) error {
	return &Fault{Kind: KindExternalNotFound, msg: fmt.Sprintf("external session %v not found", handle)}
}

func is(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}

func IsValidation(err error) bool { return is(err, KindValidation) }
func IsTransient(err error) bool  { return is(err, KindTransientStore) }
func IsTimeout(err error) bool    { return is(err, KindTimeout) }
func IsStale(err error) bool      { return is(err, KindStaleConnection) }
func IsNotFound(err error) bool   { return is(err, KindExternalNotFound) }

// HTTPStatus maps an error to the status class surfaced to the transport
// layer: nil is 200, validation is 400, everything else is 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
