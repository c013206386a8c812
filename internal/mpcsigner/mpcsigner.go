// Package mpcsigner provides an in-memory reference implementation of the
// orderbook.Signer collaborator contract. It is NOT a real threshold MPC
// client — real signing is explicitly out of scope — it exists so the
// settlement coordinator can be exercised end-to-end without a network
// dependency, with injectable failure behavior for testing the engine's
// rollback paths.
package mpcsigner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// FailFunc decides whether a given sign request should fail, letting tests
// drive the rollback paths of BatchMatchIntents/Withdraw/RetrySettlement.
type FailFunc func(req orderbook.SignRequest) error

// Signer is a reference orderbook.Signer. Every call is dispatched on its
// own goroutine to genuinely exercise the asynchronous callback contract
// (fan-out order across a batch is not guaranteed, matching spec.md §5).
type Signer struct {
	shouldFail FailFunc
}

// New returns a Signer that never fails unless shouldFail is supplied.
func New(shouldFail FailFunc) *Signer {
	return &Signer{shouldFail: shouldFail}
}

// Sign implements orderbook.Signer.
func (s *Signer) Sign(ctx context.Context, req orderbook.SignRequest, callback orderbook.SignCallback) {
	go func() {
		if s.shouldFail != nil {
			if err := s.shouldFail(req); err != nil {
				callback(orderbook.SignResult{}, err)
				return
			}
		}
		select {
		case <-ctx.Done():
			callback(orderbook.SignResult{}, ctx.Err())
			return
		default:
		}

		bigR, err := randomHex(32)
		if err != nil {
			callback(orderbook.SignResult{}, err)
			return
		}
		scalar, err := randomHex(32)
		if err != nil {
			callback(orderbook.SignResult{}, err)
			return
		}
		callback(orderbook.SignResult{
			BigR:       bigR,
			S:          scalar,
			RecoveryID: 0,
		}, nil)
	}()
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
