// Package chainadapter defines the narrow interface the settlement engine
// uses to get an already-signed transaction onto a chain once the MPC
// signer has produced a signature for a sub-intent's outbound leg. The
// engine assembles and signs transactions itself (see
// internal/relayer.Broadcaster); an adapter's only job is submitting the
// result and handing back a receipt.
package chainadapter

import (
	"context"
	"math/big"
	"time"
)

// ChainAdapter broadcasts a signed transaction to one blockchain network.
type ChainAdapter interface {
	// ChainID identifies which chain this adapter submits to (e.g. "ethereum", "bitcoin", "solana").
	ChainID() string

	// Broadcast submits signed to the network.
	//
	// Contract:
	// - MUST be idempotent: broadcasting the same SerializedTx twice returns the same TxHash
	// - MUST try all configured RPC endpoints with failover before returning an error
	Broadcast(ctx context.Context, signed *SignedTransaction) (*BroadcastReceipt, error)
}

// UnsignedTransaction is the chain-agnostic description of a transfer
// before a signature has been attached to it.
type UnsignedTransaction struct {
	ChainID        string
	From           string
	To             string
	Amount         *big.Int
	SigningPayload []byte
}

// SignedTransaction pairs an UnsignedTransaction with the signature the MPC
// signer produced for it and, where full transaction-encoding fidelity
// applies, the serialized bytes ready for broadcast.
type SignedTransaction struct {
	UnsignedTx   *UnsignedTransaction
	Signature    []byte
	SignedBy     string
	TxHash       string
	SerializedTx []byte
	SignedAt     time.Time
}

// BroadcastReceipt is the result of a successful Broadcast call.
type BroadcastReceipt struct {
	TxHash      string
	ChainID     string
	SubmittedAt time.Time
}
