// Package lightclient provides an in-memory reference implementation of
// the orderbook.LightClient collaborator contract: the owner-gated
// finalized-height registry and the proof predicate checklist from
// the original light client contract. Real cryptographic inclusion-proof
// verification (header sync, receipt trie proofs, slot commitments) is
// out of scope here exactly as it was in the reference it was ported
// from — this only checks the shape and bounds of a proof, not its
// cryptographic validity.
package lightclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// Proof is the JSON shape a proof submission must decode into.
type Proof struct {
	ChainType      orderbook.ChainType `json:"chain_type"`
	TxHash         string              `json:"tx_hash"`
	Recipient      string              `json:"recipient"`
	Asset          orderbook.Asset     `json:"asset"`
	Amount         orderbook.Amount    `json:"amount"`
	Memo           string              `json:"memo"`
	BlockHeight    uint64              `json:"block_height"`
	InclusionProof []string            `json:"inclusion_proof"`
}

// LightClient implements orderbook.LightClient in memory.
type LightClient struct {
	mu               sync.Mutex
	ownerID          string
	finalizedHeights map[orderbook.ChainType]uint64
}

// New returns a LightClient owned by ownerID.
func New(ownerID string) *LightClient {
	return &LightClient{
		ownerID:          ownerID,
		finalizedHeights: make(map[orderbook.ChainType]uint64),
	}
}

// SetFinalizedHeight records the latest finalized height observed for a
// chain. Only the owner may call this.
func (l *LightClient) SetFinalizedHeight(caller string, chainType orderbook.ChainType, height uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.ownerID {
		return &orderbook.Error{Kind: orderbook.KindUnauthorized, Message: "only owner can update finalized heights"}
	}
	l.finalizedHeights[chainType] = height
	return nil
}

// FinalizedHeight returns the latest finalized height recorded for a
// chain, or 0 if none has been set.
func (l *LightClient) FinalizedHeight(chainType orderbook.ChainType) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finalizedHeights[chainType]
}

// VerifyPaymentProof implements orderbook.LightClient.
func (l *LightClient) VerifyPaymentProof(ctx context.Context, chainType orderbook.ChainType, proofData []byte, expectedRecipient string, expectedAsset orderbook.Asset, expectedAmount orderbook.Amount, expectedMemo string, callback orderbook.VerifyCallback) {
	valid := l.checkProof(proofData, chainType, expectedRecipient, expectedAsset, expectedAmount, expectedMemo, "")
	callback(valid, nil)
}

// VerifyTransitionProof implements orderbook.LightClient.
func (l *LightClient) VerifyTransitionProof(ctx context.Context, chainType orderbook.ChainType, proofData []byte, expectedRecipient string, expectedAsset orderbook.Asset, expectedAmount orderbook.Amount, expectedMemo string, expectedTxHash string, callback orderbook.VerifyCallback) {
	valid := l.checkProof(proofData, chainType, expectedRecipient, expectedAsset, expectedAmount, expectedMemo, expectedTxHash)
	callback(valid, nil)
}

// checkProof runs the shared predicate checklist. expectedTxHash is only
// enforced when non-empty (payment proofs don't require it; transition
// proofs do).
func (l *LightClient) checkProof(proofData []byte, chainType orderbook.ChainType, expectedRecipient string, expectedAsset orderbook.Asset, expectedAmount orderbook.Amount, expectedMemo string, expectedTxHash string) bool {
	var proof Proof
	if err := json.Unmarshal(proofData, &proof); err != nil {
		return false
	}

	if proof.ChainType != chainType {
		return false
	}
	if expectedTxHash != "" && proof.TxHash != expectedTxHash {
		return false
	}
	if proof.Recipient != expectedRecipient {
		return false
	}
	if !proof.Asset.Equal(expectedAsset) {
		return false
	}
	if proof.Amount.Cmp(expectedAmount) != 0 {
		return false
	}
	if proof.Memo != expectedMemo {
		return false
	}
	if len(proof.InclusionProof) == 0 {
		return false
	}

	finalized := l.FinalizedHeight(proof.ChainType)
	if finalized == 0 {
		return false
	}
	if proof.BlockHeight > finalized {
		return false
	}
	return true
}
