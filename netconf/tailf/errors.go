package tailf

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors reported when a request cannot be built or issued. Build failures are
// always *OperationError values that match one of these with errors.Is.
var (
	// ErrInvalidArgument reports a value outside its allowed set, a missing
	// mandatory value, or two conflicting parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedCapability reports a parameter that needs a capability the server has not advertised.
	ErrUnsupportedCapability = errors.New("unsupported capability")
	// ErrMalformedPayload reports a configuration payload that cannot be parsed or has no root element.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrProtocolOrder reports an operation issued in a transaction state that does not allow it.
	ErrProtocolOrder = errors.New("protocol order violation")
)

// OperationError describes why an operation was rejected before dispatch.
type OperationError struct {
	// Op is the operation (or lock/unlock event) that was rejected.
	Op string
	// Kind is one of the sentinel errors defined by this package.
	Kind error
	// Detail describes the offending parameter or state.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *OperationError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the sentinel for this error.
func (e *OperationError) Is(target error) bool {
	return target == e.Kind
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsDispatchFailure reports whether err came from issuing a request (transport failure or rpc-error reply),
// rather than from validating it.
func IsDispatchFailure(err error) bool {
	if err == nil {
		return false
	}
	var oe *OperationError
	return !errors.As(err, &oe)
}

func invalidArgument(op fmt.Stringer, format string, args ...interface{}) error {
	return newOperationError(op, ErrInvalidArgument, nil, format, args...)
}

func unsupportedCapability(op fmt.Stringer, capability string) error {
	return newOperationError(op, ErrUnsupportedCapability, nil, "server does not support %s", capability)
}

func malformedPayload(op fmt.Stringer, cause error, format string, args ...interface{}) error {
	return newOperationError(op, ErrMalformedPayload, cause, format, args...)
}

func newOperationError(op fmt.Stringer, kind, cause error, format string, args ...interface{}) error {
	e := &OperationError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
	if op != nil {
		e.Op = op.String()
	}
	return e
}
