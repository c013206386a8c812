package mpcsigner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

func TestSignerSucceedsByDefault(t *testing.T) {
	s := New(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var result orderbook.SignResult
	var callErr error
	s.Sign(context.Background(), orderbook.SignRequest{Path: "m/0"}, func(r orderbook.SignResult, err error) {
		result, callErr = r, err
		wg.Done()
	})
	wg.Wait()

	require.NoError(t, callErr)
	assert.NotEmpty(t, result.BigR)
	assert.NotEmpty(t, result.S)
}

func TestSignerInjectedFailure(t *testing.T) {
	shouldFail := func(req orderbook.SignRequest) error {
		if req.Path == "m/fail" {
			return fmt.Errorf("simulated signer outage")
		}
		return nil
	}
	s := New(shouldFail)

	var wg sync.WaitGroup
	wg.Add(1)
	var callErr error
	s.Sign(context.Background(), orderbook.SignRequest{Path: "m/fail"}, func(r orderbook.SignResult, err error) {
		callErr = err
		wg.Done()
	})
	wg.Wait()

	require.Error(t, callErr)
}

func TestSignerRespectsContextCancellation(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var callErr error
	s.Sign(ctx, orderbook.SignRequest{Path: "m/0"}, func(r orderbook.SignResult, err error) {
		callErr = err
		wg.Done()
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signer callback never fired")
	}
	require.Error(t, callErr)
}
