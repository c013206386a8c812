// Package chainaddr validates recipient addresses for the three chains the
// engine's ChainType enum covers. It is a standalone helper: the withdrawal
// and transition handlers in internal/orderbook do not call it. Adapted from
// the per-chain address helpers (address derivation, there; validation,
// here) that used the same libraries.
package chainaddr

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// Validate checks that address is well-formed for chainType. It does not
// check that the address is reachable or funded — only its format.
func Validate(chainType orderbook.ChainType, address string) error {
	switch chainType {
	case orderbook.ChainBTC:
		return validateBitcoin(address)
	case orderbook.ChainETH:
		return validateEthereum(address)
	case orderbook.ChainSOL:
		return validateSolana(address)
	default:
		return fmt.Errorf("unknown chain type %v", chainType)
	}
}

func validateBitcoin(address string) error {
	if _, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams); err == nil {
		return nil
	}
	if _, err := btcutil.DecodeAddress(address, &chaincfg.TestNet3Params); err != nil {
		return fmt.Errorf("invalid bitcoin address %q: %w", address, err)
	}
	return nil
}

func validateEthereum(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid ethereum address %q", address)
	}
	return nil
}

func validateSolana(address string) error {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	if pub.IsZero() {
		return fmt.Errorf("invalid solana address %q: zero public key", address)
	}
	return nil
}
