package relayer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

type fakeSigner struct{}

func (fakeSigner) Sign(ctx context.Context, req orderbook.SignRequest, callback orderbook.SignCallback) {
	callback(orderbook.SignResult{BigR: "aa", S: "bb"}, nil)
}

type fakeLightClient struct{}

func (fakeLightClient) VerifyPaymentProof(ctx context.Context, chainType orderbook.ChainType, proofData []byte, expectedRecipient string, expectedAsset orderbook.Asset, expectedAmount orderbook.Amount, expectedMemo string, callback orderbook.VerifyCallback) {
	callback(true, nil)
}

func (fakeLightClient) VerifyTransitionProof(ctx context.Context, chainType orderbook.ChainType, proofData []byte, expectedRecipient string, expectedAsset orderbook.Asset, expectedAmount orderbook.Amount, expectedMemo string, expectedTxHash string, callback orderbook.VerifyCallback) {
	callback(true, nil)
}

func TestPollerMatchesAndSubmits(t *testing.T) {
	c := orderbook.NewCoordinator("owner", fakeSigner{}, fakeLightClient{}, nil)
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", orderbook.NewAmount(100)))
	require.NoError(t, c.DepositFor("owner", "bob", "ETH", orderbook.NewAmount(10)))

	_, err := c.MakeIntent("alice", "USDC", orderbook.NewAmount(100), "ETH", orderbook.NewAmount(10))
	require.NoError(t, err)
	_, err = c.MakeIntent("bob", "ETH", orderbook.NewAmount(10), "USDC", orderbook.NewAmount(100))
	require.NoError(t, err)

	legAssigner := func(m Match) (payload [32]byte, path string, chainType orderbook.ChainType) {
		return payload, "m/0", orderbook.ChainETH
	}
	poller := NewPoller(c, "solver", "USDC", "ETH", legAssigner, 0)

	n, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, orderbook.NewAmount(10), c.GetBalance("alice", "ETH"))
	assert.Equal(t, orderbook.NewAmount(100), c.GetBalance("bob", "USDC"))
}

func TestPollerNoMatchesFound(t *testing.T) {
	c := orderbook.NewCoordinator("owner", fakeSigner{}, fakeLightClient{}, nil)
	legAssigner := func(m Match) (payload [32]byte, path string, chainType orderbook.ChainType) {
		return payload, "m/0", orderbook.ChainETH
	}
	poller := NewPoller(c, "solver", "USDC", "ETH", legAssigner, 0)

	n, err := poller.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
