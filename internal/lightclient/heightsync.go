package lightclient

import (
	"context"
	"fmt"
	"time"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// HeightOracle is the narrow slice of src/chainadapter's BlockchainProvider
// this package actually needs: the current block height for a chain.
// Any BlockchainProvider implementation (the Alchemy provider included)
// satisfies this with its GetBlockNumber method.
type HeightOracle interface {
	GetBlockNumber(ctx context.Context, chainID string) (uint64, error)
}

// HeightSyncer polls a HeightOracle on an interval and pushes observed
// heights into a LightClient, filling the gap spec.md's light-client
// contract leaves open: who actually calls SetFinalizedHeight.
type HeightSyncer struct {
	client   *LightClient
	owner    string
	oracle   HeightOracle
	chainIDs map[orderbook.ChainType]string
	interval time.Duration
	onError  func(chainType orderbook.ChainType, err error)
}

// NewHeightSyncer builds a syncer pushing heights for each entry in
// chainIDs (engine ChainType -> the oracle's chain identifier string)
// into client, authenticated as owner.
func NewHeightSyncer(client *LightClient, owner string, oracle HeightOracle, chainIDs map[orderbook.ChainType]string, interval time.Duration) *HeightSyncer {
	return &HeightSyncer{
		client:   client,
		owner:    owner,
		oracle:   oracle,
		chainIDs: chainIDs,
		interval: interval,
	}
}

// OnError installs a callback invoked whenever a single chain's poll
// fails; other chains still get polled that tick.
func (h *HeightSyncer) OnError(f func(chainType orderbook.ChainType, err error)) {
	h.onError = f
}

// SyncOnce polls every configured chain once and pushes the result into
// the light client.
func (h *HeightSyncer) SyncOnce(ctx context.Context) {
	for chainType, chainID := range h.chainIDs {
		height, err := h.oracle.GetBlockNumber(ctx, chainID)
		if err != nil {
			if h.onError != nil {
				h.onError(chainType, fmt.Errorf("height sync for %s: %w", chainType, err))
			}
			continue
		}
		if err := h.client.SetFinalizedHeight(h.owner, chainType, height); err != nil {
			if h.onError != nil {
				h.onError(chainType, err)
			}
		}
	}
}

// Run polls on the configured interval until ctx is canceled.
func (h *HeightSyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	h.SyncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.SyncOnce(ctx)
		}
	}
}
