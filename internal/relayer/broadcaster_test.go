package relayer

import (
	"context"
	"math/big"
	"testing"

	chainadapter "github.com/arcsign/chainadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// captureAdapter is a minimal chainadapter.ChainAdapter double that records
// the SignedTransaction it was asked to broadcast.
type captureAdapter struct {
	lastSigned *chainadapter.SignedTransaction
}

func (c *captureAdapter) ChainID() string { return "test-chain" }

func (c *captureAdapter) Broadcast(ctx context.Context, signed *chainadapter.SignedTransaction) (*chainadapter.BroadcastReceipt, error) {
	c.lastSigned = signed
	return &chainadapter.BroadcastReceipt{TxHash: signed.TxHash}, nil
}

func TestBroadcasterAssemblesEthereumTransaction(t *testing.T) {
	adapter := &captureAdapter{}
	b := NewBroadcaster(map[orderbook.ChainType]chainadapter.ChainAdapter{orderbook.ChainETH: adapter}, nil)

	event := orderbook.SignatureEvent{
		SubIntentID: 1,
		ChainType:   orderbook.ChainETH,
		Payload:     "aabbcc",
		BigR:        "1",
		S:           "2",
		RecoveryID:  0,
	}

	receipt, err := b.Broadcast(context.Background(), event, "0xfrom", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1000), 0, 21000, big.NewInt(1))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TxHash)
	require.NotNil(t, adapter.lastSigned)
	assert.NotEmpty(t, adapter.lastSigned.SerializedTx)
}

func TestBroadcasterRejectsUnknownAdapter(t *testing.T) {
	b := NewBroadcaster(map[orderbook.ChainType]chainadapter.ChainAdapter{}, nil)
	event := orderbook.SignatureEvent{ChainType: orderbook.ChainETH}
	_, err := b.Broadcast(context.Background(), event, "from", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1), 0, 21000, big.NewInt(1))
	require.Error(t, err)
}

func TestBroadcasterEnvelopeForNonEthereumChain(t *testing.T) {
	adapter := &captureAdapter{}
	b := NewBroadcaster(map[orderbook.ChainType]chainadapter.ChainAdapter{orderbook.ChainSOL: adapter}, map[orderbook.ChainType]string{orderbook.ChainSOL: "solana"})

	event := orderbook.SignatureEvent{
		SubIntentID: 2,
		ChainType:   orderbook.ChainSOL,
		Payload:     "aabbcc",
		BigR:        "aa",
		S:           "bb",
	}
	_, err := b.Broadcast(context.Background(), event, "from", "to", big.NewInt(1), 0, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, adapter.lastSigned)
	assert.Equal(t, "solana", adapter.lastSigned.UnsignedTx.ChainID)
}
