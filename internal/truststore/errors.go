package truststore

import (
	"github.com/pkg/errors"
	smallstep "github.com/smallstep/truststore"
)

var (
	// ErrInvalidInput means the caller supplied neither a path nor PEM contents.
	ErrInvalidInput = errors.New("path to or contents of the certificate has to be defined")
	// ErrNotImplemented means the running platform has no backend for an operation.
	ErrNotImplemented = errors.Wrap(smallstep.ErrNotSupported, "not implemented on this platform")
)

// Op names a Store operation.
type Op string

const (
	OpInstall     Op = "install"
	OpDelete      Op = "delete"
	OpIsInstalled Op = "isInstalled"
)

func (o Op) message() string {
	switch o {
	case OpInstall:
		return "couldn't install certificate"
	case OpDelete:
		return "couldn't delete certificate"
	case OpIsInstalled:
		return "couldn't find if certificate is installed"
	}
	return "certificate operation failed"
}

// OpError is returned by every failing Store operation. Op tells callers which
// operation failed; Err carries the backend's cause.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string {
	return e.Op.message() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
