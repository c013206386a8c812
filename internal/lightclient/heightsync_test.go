package lightclient

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

type fakeOracle struct {
	heights map[string]uint64
	err     map[string]error
}

func (f *fakeOracle) GetBlockNumber(ctx context.Context, chainID string) (uint64, error) {
	if err, ok := f.err[chainID]; ok {
		return 0, err
	}
	return f.heights[chainID], nil
}

func TestHeightSyncerSyncOncePushesHeights(t *testing.T) {
	lc := New("owner")
	oracle := &fakeOracle{heights: map[string]uint64{"ethereum": 123, "bitcoin": 456}}
	chainIDs := map[orderbook.ChainType]string{
		orderbook.ChainETH: "ethereum",
		orderbook.ChainBTC: "bitcoin",
	}
	syncer := NewHeightSyncer(lc, "owner", oracle, chainIDs, 0)

	syncer.SyncOnce(context.Background())

	assert.Equal(t, uint64(123), lc.FinalizedHeight(orderbook.ChainETH))
	assert.Equal(t, uint64(456), lc.FinalizedHeight(orderbook.ChainBTC))
}

func TestHeightSyncerReportsPerChainErrors(t *testing.T) {
	lc := New("owner")
	oracle := &fakeOracle{
		heights: map[string]uint64{"ethereum": 123},
		err:     map[string]error{"bitcoin": fmt.Errorf("rpc timeout")},
	}
	chainIDs := map[orderbook.ChainType]string{
		orderbook.ChainETH: "ethereum",
		orderbook.ChainBTC: "bitcoin",
	}
	syncer := NewHeightSyncer(lc, "owner", oracle, chainIDs, 0)

	var failedChain orderbook.ChainType
	var failed bool
	syncer.OnError(func(chainType orderbook.ChainType, err error) {
		failedChain = chainType
		failed = true
	})

	syncer.SyncOnce(context.Background())

	require.True(t, failed)
	assert.Equal(t, orderbook.ChainBTC, failedChain)
	// The ethereum leg still succeeded despite bitcoin's failure.
	assert.Equal(t, uint64(123), lc.FinalizedHeight(orderbook.ChainETH))
}
