package attest

import (
	"fmt"

	"golang.org/x/xerrors"
)

// The error kinds of the attestation protocol. Every error returned by the
// packages of this module can be matched against one of them with
// xerrors.Is.
var (
	// ErrInput is returned for malformed requests: missing or ambiguous
	// data sources, unknown hash types, salt mismatches or oversized files.
	ErrInput = xerrors.New("invalid input")
	// ErrAuthorization is returned for revoked or invalid identities and
	// for signer addresses of an unsupported class.
	ErrAuthorization = xerrors.New("not authorized")
	// ErrCrypto is returned when a signature cannot be produced or
	// verified, or when a decryption fails.
	ErrCrypto = xerrors.New("cryptographic failure")
	// ErrReference is returned for unresolved or corrupt cross-chain
	// references.
	ErrReference = xerrors.New("unresolved reference")
	// ErrState is returned when a prior signature was created in another
	// context than the one it is merged into.
	ErrState = xerrors.New("stale state")
)

// Error is a wrapper around an standard error that allows
// to print the stack trace from the call of the constructor.
type Error struct {
	kind  error
	err   error
	msg   string
	frame xerrors.Frame
}

// ErrorOrNil returns the error if any with the stack trace
// beginning at the call of the function.
func ErrorOrNil(err error, msg string) error {
	return ErrorOrNilSkip(err, msg, 1)
}

// ErrorOrNilSkip returns the error if any with the stack trace
// beginning at the call of the skip-nth caller.
func ErrorOrNilSkip(err error, msg string, skip int) error {
	if err == nil {
		return nil
	}
	return &Error{
		err:   err,
		msg:   msg,
		frame: xerrors.Caller(skip),
	}
}

// WrapError returns a wrapper of the error is it can be used
// for comparison.
func WrapError(err error) error {
	return ErrorOrNilSkip(err, "", 2)
}

func newKindError(kind error, format string, args []interface{}) error {
	return &Error{
		kind:  kind,
		err:   fmt.Errorf(format, args...),
		msg:   kind.Error(),
		frame: xerrors.Caller(2),
	}
}

// WithKind wraps err so that it matches the given kind as well as err
// itself.
func WithKind(kind error, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		kind:  kind,
		err:   err,
		msg:   kind.Error(),
		frame: xerrors.Caller(1),
	}
}

// InputError returns an error of kind ErrInput.
func InputError(format string, args ...interface{}) error {
	return newKindError(ErrInput, format, args)
}

// AuthorizationError returns an error of kind ErrAuthorization.
func AuthorizationError(format string, args ...interface{}) error {
	return newKindError(ErrAuthorization, format, args)
}

// CryptoError returns an error of kind ErrCrypto.
func CryptoError(format string, args ...interface{}) error {
	return newKindError(ErrCrypto, format, args)
}

// ReferenceError returns an error of kind ErrReference.
func ReferenceError(format string, args ...interface{}) error {
	return newKindError(ErrReference, format, args)
}

// StateError returns an error of kind ErrState.
func StateError(format string, args ...interface{}) error {
	return newKindError(ErrState, format, args)
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg + ": " + fmt.Sprintf("%v", e.err)
	}
	return fmt.Sprintf("%v", e.err)
}

// Is makes the error match its kind.
func (e *Error) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// Unwrap returns the next error in the chain.
func (e *Error) Unwrap() error {
	return e.err
}

// Format prints the error to the formatter.
func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// FormatError prints the error to the printer. It prints
// the stack trace when the '+' is used in combination with
// 'v'.
func (e *Error) FormatError(p xerrors.Printer) error {
	if e.msg != "" {
		p.Printf("%s: %v", e.msg, e.err)
	} else {
		p.Printf("%v", e.err)
	}

	if p.Detail() {
		e.frame.Format(p)
		p.Printf("%+v", e.err)
	}
	return nil
}
