package chainaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

func TestValidateEthereum(t *testing.T) {
	assert.NoError(t, Validate(orderbook.ChainETH, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.Error(t, Validate(orderbook.ChainETH, "not-an-address"))
}

func TestValidateBitcoin(t *testing.T) {
	// A well-known mainnet P2PKH address.
	assert.NoError(t, Validate(orderbook.ChainBTC, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
	assert.Error(t, Validate(orderbook.ChainBTC, "not-an-address"))
}

func TestValidateSolana(t *testing.T) {
	// The USDC mint address: a valid, non-zero base58 public key.
	assert.NoError(t, Validate(orderbook.ChainSOL, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.Error(t, Validate(orderbook.ChainSOL, "not-base58!!"))
}

func TestValidateUnknownChain(t *testing.T) {
	assert.Error(t, Validate(orderbook.ChainType(99), "anything"))
}
