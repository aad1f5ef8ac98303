package protoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesKindStepAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(RangeViolation, "lsic.new_a", cause)
	require.Contains(t, err.Error(), string(RangeViolation))
	require.Contains(t, err.Error(), "lsic.new_a")
	require.Contains(t, err.Error(), "boom")
	require.ErrorIs(t, err, cause)
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(Desync, "argmax.step", nil)
	require.Contains(t, err.Error(), string(Desync))
	require.Contains(t, err.Error(), "argmax.step")
}

func TestIsMatchesKind(t *testing.T) {
	err := New(CryptoInconsistency, "dgk.answer_result", nil)
	require.True(t, Is(err, CryptoInconsistency))
	require.False(t, Is(err, Desync))
	require.False(t, Is(errors.New("plain"), Desync))
}

func TestRecoverCapturesTypedPanic(t *testing.T) {
	var err error
	func() {
		defer Recover(&err)
		Panic(TransportClosed, "session.recv", errors.New("peer gone"))
	}()
	require.Error(t, err)
	require.True(t, Is(err, TransportClosed))
}

func TestRecoverCapturesUntypedPanic(t *testing.T) {
	var err error
	func() {
		defer Recover(&err)
		panic("raw string panic")
	}()
	require.Error(t, err)
	require.Contains(t, err.Error(), "raw string panic")
}

func TestRecoverIsNoOpWithoutPanic(t *testing.T) {
	var err error
	func() {
		defer Recover(&err)
	}()
	require.NoError(t, err)
}
