package relayer

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	chainadapter "github.com/arcsign/chainadapter"
	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// Broadcaster takes a SignatureEvent emitted by the coordinator's onSigned
// callback, assembles a fully signed transaction, and hands it to the
// chain-specific adapter's Broadcast method. It is additive infrastructure
// around the settlement engine's event stream: nothing in the core state
// machine waits on it.
//
// Only the Ethereum path is assembled with real transaction-encoding
// fidelity, since an MPC signer's (R, S, V) output maps directly onto an
// ECDSA transaction signature. Bitcoin's script-sig assembly from a raw
// signature and Solana's ed25519 signature scheme (the MPC signer modeled
// here only produces secp256k1-ECDSA-shaped signatures) are both out of
// scope for full fidelity; their paths hand the adapter a minimal envelope
// instead of pretending to be cryptographically complete.
type Broadcaster struct {
	adapters map[orderbook.ChainType]chainadapter.ChainAdapter
	chainIDs map[orderbook.ChainType]string
}

// NewBroadcaster builds a Broadcaster dispatching to adapters, one per
// chain type, using chainIDs to label the outbound UnsignedTransaction.
func NewBroadcaster(adapters map[orderbook.ChainType]chainadapter.ChainAdapter, chainIDs map[orderbook.ChainType]string) *Broadcaster {
	return &Broadcaster{adapters: adapters, chainIDs: chainIDs}
}

// Broadcast assembles and submits the transaction described by event.
// recipient/asset/amount/nonce describe the outbound transfer the event's
// payload was signed for — the coordinator only stores the payload hash,
// not the structured transaction, so the caller supplies the rest.
func (b *Broadcaster) Broadcast(ctx context.Context, event orderbook.SignatureEvent, from, recipient string, amount *big.Int, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*chainadapter.BroadcastReceipt, error) {
	adapter, ok := b.adapters[event.ChainType]
	if !ok {
		return nil, fmt.Errorf("no chain adapter configured for %v", event.ChainType)
	}

	signed, err := b.assemble(event, from, recipient, amount, nonce, gasLimit, gasPrice)
	if err != nil {
		return nil, fmt.Errorf("assembling signed transaction for sub-intent %d: %w", event.SubIntentID, err)
	}

	receipt, err := adapter.Broadcast(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("broadcasting sub-intent %d: %w", event.SubIntentID, err)
	}
	return receipt, nil
}

func (b *Broadcaster) assemble(event orderbook.SignatureEvent, from, recipient string, amount *big.Int, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*chainadapter.SignedTransaction, error) {
	switch event.ChainType {
	case orderbook.ChainETH:
		return b.assembleEthereum(event, from, recipient, amount, nonce, gasLimit, gasPrice)
	default:
		return b.assembleEnvelope(event, from, recipient, amount)
	}
}

// assembleEthereum builds a real legacy Ethereum transaction from the
// MPC's (big_r, s, recovery_id) output treated as an ECDSA (R, S, V)
// signature.
func (b *Broadcaster) assembleEthereum(event orderbook.SignatureEvent, from, recipient string, amount *big.Int, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*chainadapter.SignedTransaction, error) {
	if !gethcommon.IsHexAddress(recipient) {
		return nil, fmt.Errorf("invalid ethereum recipient %q", recipient)
	}
	to := gethcommon.HexToAddress(recipient)

	r, ok := new(big.Int).SetString(event.BigR, 16)
	if !ok {
		return nil, fmt.Errorf("invalid big_r %q", event.BigR)
	}
	s, ok := new(big.Int).SetString(event.S, 16)
	if !ok {
		return nil, fmt.Errorf("invalid s %q", event.S)
	}
	// WithSignature takes V as the raw 0/1 recovery id and adds 27 itself.
	v := big.NewInt(int64(event.RecoveryID))

	inner := &gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    amount,
	}
	unsignedTx := gethtypes.NewTx(inner)
	signedTx, err := unsignedTx.WithSignature(gethtypes.HomesteadSigner{}, rsvToSignature(r, s, v))
	if err != nil {
		return nil, fmt.Errorf("applying MPC signature: %w", err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding signed transaction: %w", err)
	}

	chainID, ok := b.chainIDs[event.ChainType]
	if !ok {
		chainID = "ethereum"
	}

	return &chainadapter.SignedTransaction{
		UnsignedTx: &chainadapter.UnsignedTransaction{
			ChainID: chainID,
			From:    from,
			To:      recipient,
			Amount:  amount,
		},
		Signature:    append(r.Bytes(), append(s.Bytes(), byte(event.RecoveryID))...),
		SignedBy:     from,
		TxHash:       signedTx.Hash().Hex(),
		SerializedTx: raw,
	}, nil
}

// assembleEnvelope builds a minimal, honestly-incomplete signed envelope
// for chains where the MPC signature scheme modeled here doesn't actually
// match the chain's native signature algorithm (Solana ed25519) or where
// full script-sig assembly is out of scope (Bitcoin).
func (b *Broadcaster) assembleEnvelope(event orderbook.SignatureEvent, from, recipient string, amount *big.Int) (*chainadapter.SignedTransaction, error) {
	payload, err := hex.DecodeString(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload hex %q: %w", event.Payload, err)
	}
	sig, err := hex.DecodeString(event.BigR + event.S)
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}

	chainID, ok := b.chainIDs[event.ChainType]
	if !ok {
		chainID = event.ChainType.String()
	}

	return &chainadapter.SignedTransaction{
		UnsignedTx: &chainadapter.UnsignedTransaction{
			ChainID:        chainID,
			From:           from,
			To:             recipient,
			Amount:         amount,
			SigningPayload: payload,
		},
		Signature:    sig,
		SignedBy:     from,
		SerializedTx: payload,
	}, nil
}

func rsvToSignature(r, s, v *big.Int) []byte {
	sig := make([]byte, 65)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])
	sig[64] = byte(v.Uint64())
	return sig
}
