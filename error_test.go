package attest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

var errExample = xerrors.New("example")

func makeError() error {
	return xerrors.Errorf("oops: %w", errExample)
}

// Test that the basic function create an error when the parameter
// is not nil, and returns nil otherwise.
func TestError_ErrorOrNil(t *testing.T) {
	err := ErrorOrNil(makeError(), "test")

	require.Equal(t, "test: oops: example", err.Error())
	require.Nil(t, ErrorOrNil(nil, ""))
}

// Test that the skip option is correctly used to prevent a call
// to be included in the stack trace.
func TestError_ErrorOrNilSkip(t *testing.T) {
	err := ErrorOrNilSkip(makeError(), "test", 2)

	require.NotContains(t, fmt.Sprintf("%+v", err), t.Name())
	require.Contains(t, fmt.Sprintf("%+v", err), ".makeError")
}

// Test that the wrapper is invisible but allows the error
// comparison to work.
func TestError_WrapError(t *testing.T) {
	err := WrapError(makeError())

	require.Equal(t, "oops: example", err.Error())
	require.Contains(t, fmt.Sprintf("%+v", err), ".makeError")
	require.True(t, xerrors.Is(err, errExample))
	require.False(t, xerrors.Is(err, xerrors.New("abc")))
}

func TestError_Kinds(t *testing.T) {
	err := InputError("item %d has no data", 3)
	require.Equal(t, "invalid input: item 3 has no data", err.Error())
	require.True(t, xerrors.Is(err, ErrInput))
	require.False(t, xerrors.Is(err, ErrCrypto))

	wrapped := xerrors.Errorf("signing: %w", StateError("height %d", 12))
	require.True(t, xerrors.Is(wrapped, ErrState))
	require.False(t, xerrors.Is(wrapped, ErrInput))

	for _, kind := range []error{ErrAuthorization, ErrReference} {
		var e error
		if kind == ErrAuthorization {
			e = AuthorizationError("revoked")
		} else {
			e = ReferenceError("unknown tx")
		}
		require.True(t, xerrors.Is(e, kind))
	}
	require.True(t, xerrors.Is(CryptoError("bad key"), ErrCrypto))
}

func TestError_WithKind(t *testing.T) {
	require.Nil(t, WithKind(ErrCrypto, nil))
	err := WithKind(ErrCrypto, errExample)
	require.True(t, xerrors.Is(err, ErrCrypto))
	require.True(t, xerrors.Is(err, errExample))
	require.False(t, xerrors.Is(err, ErrInput))
	require.Equal(t, "cryptographic failure: example", err.Error())
}
