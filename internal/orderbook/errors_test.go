package orderbook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("underlying failure")
	err := wrapErr(KindExternalFailure, cause, "signer call for %d failed", 42)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "signer call for 42 failed")
	assert.Contains(t, err.Error(), "underlying failure")
}

func TestIsKindRejectsOtherErrorTypes(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}

func TestIsKindMatchesExactKind(t *testing.T) {
	err := errNotFound("intent %d not found", 9)
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindUnauthorized))
}
