package orderbook

import "context"

// Signer is the external MPC collaborator: given a derivation path and a
// payload hash, it eventually produces a signature. Calls are asynchronous
// from the engine's point of view — SignCallback is invoked once, from
// whatever goroutine the Signer chooses, with the result or an error.
//
// Production implementations call out to a real threshold-signing
// service; this package only defines the contract. See internal/mpcsigner
// for an in-memory reference implementation used in tests and local runs.
type Signer interface {
	Sign(ctx context.Context, req SignRequest, callback SignCallback)
}

// SignCallback is invoked exactly once per Sign call, with either a result
// or a non-nil error.
type SignCallback func(result SignResult, err error)

// PaymentProof is the evidence a light client checks an inbound or
// outbound transfer against.
type PaymentProof struct {
	ChainType      ChainType
	TxHash         string
	Recipient      string
	Asset          Asset
	Amount         Amount
	Memo           string
	BlockHeight    uint64
	InclusionProof []string
}

// LightClient is the external proof-verification collaborator. Both
// verification methods are asynchronous for the same reason Signer is:
// a production light client may query remote chain state before replying.
//
// See internal/lightclient for an in-memory reference implementation that
// checks the predicate list spec.md names without doing real cryptographic
// inclusion-proof verification.
type LightClient interface {
	VerifyPaymentProof(ctx context.Context, chainType ChainType, proofData []byte, expectedRecipient string, expectedAsset Asset, expectedAmount Amount, expectedMemo string, callback VerifyCallback)
	VerifyTransitionProof(ctx context.Context, chainType ChainType, proofData []byte, expectedRecipient string, expectedAsset Asset, expectedAmount Amount, expectedMemo string, expectedTxHash string, callback VerifyCallback)
}

// VerifyCallback is invoked exactly once per verification call with the
// boolean verdict (err is reserved for transport-level failures, not an
// invalid proof — an invalid proof is a valid=false result, not an error).
type VerifyCallback func(valid bool, err error)
