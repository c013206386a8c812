// Package orderbook implements the cross-chain intent settlement engine:
// a ledger of per-account balances, a store of intents and sub-intents, and
// a coordinator that drives each sub-intent through its settlement state
// machine via two external collaborators, a multi-chain MPC signer and a
// light client.
package orderbook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 128-bit quantity. It wraps uint256.Int (a 256-bit
// integer already pulled in transitively through go-ethereum) and adds an
// explicit 128-bit range check on every arithmetic operation, since
// uint256's own overflow detection only fires past 256 bits.
type Amount struct {
	v uint256.Int
}

// maxU128 is 2^128 - 1, used as the overflow ceiling for Amount.
var maxU128 = func() *uint256.Int {
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, 128)
	return new(uint256.Int).Sub(shifted, one)
}()

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// NewAmount builds an Amount from a uint64.
func NewAmount(x uint64) Amount {
	return Amount{v: *uint256.NewInt(x)}
}

// ParseAmount parses a base-10 string into an Amount, rejecting values that
// don't fit in 128 bits.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if v.Gt(maxU128) {
		return Amount{}, fmt.Errorf("amount %q exceeds 128 bits", s)
	}
	return Amount{v: *v}, nil
}

// Add returns a+b, erroring if the true (unbounded) sum would not fit in
// 128 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	var out uint256.Int
	overflowed := out.AddOverflow(&a.v, &b.v)
	if overflowed || out.Gt(maxU128) {
		return Amount{}, fmt.Errorf("amount overflow: %s + %s exceeds 128 bits", a, b)
	}
	return Amount{v: out}, nil
}

// Sub returns a-b, erroring on underflow (b > a).
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a, b)
	}
	var out uint256.Int
	out.Sub(&a.v, &b.v)
	return Amount{v: out}, nil
}

// Mul returns a*b, erroring if the true (unbounded) product would not fit
// in 128 bits.
func (a Amount) Mul(b Amount) (Amount, error) {
	var out uint256.Int
	overflowed := out.MulOverflow(&a.v, &b.v)
	if overflowed || out.Gt(maxU128) {
		return Amount{}, fmt.Errorf("amount overflow: %s * %s exceeds 128 bits", a, b)
	}
	return Amount{v: out}, nil
}

// divMod returns (a/b, a%b), erroring on division by zero.
func (a Amount) divMod(b Amount) (Amount, Amount, error) {
	if b.IsZero() {
		return Amount{}, Amount{}, fmt.Errorf("division by zero: %s / %s", a, b)
	}
	var q, m uint256.Int
	q.Div(&a.v, &b.v)
	m.Mod(&a.v, &b.v)
	return Amount{v: q}, Amount{v: m}, nil
}

// Cmp compares a to b, returning -1, 0, or 1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// String renders the amount in base 10.
func (a Amount) String() string {
	return a.v.Dec()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Asset is a case-insensitive asset symbol. Equality and map lookups must
// fold case everywhere an Asset is compared or used as a key.
type Asset string

// Normalize returns the canonical (uppercased) form used as a map key.
func (a Asset) Normalize() Asset {
	return Asset(strings.ToUpper(string(a)))
}

// Equal reports whether two assets are the same symbol, ignoring case.
func (a Asset) Equal(other Asset) bool {
	return strings.EqualFold(string(a), string(other))
}

// ChainType is the closed set of external chains the engine custodies
// assets against.
type ChainType int

const (
	ChainBTC ChainType = iota
	ChainETH
	ChainSOL
)

func (c ChainType) String() string {
	switch c {
	case ChainBTC:
		return "BTC"
	case ChainETH:
		return "ETH"
	case ChainSOL:
		return "SOL"
	default:
		return "UNKNOWN"
	}
}

func ParseChainType(s string) (ChainType, error) {
	switch strings.ToUpper(s) {
	case "BTC":
		return ChainBTC, nil
	case "ETH":
		return ChainETH, nil
	case "SOL":
		return ChainSOL, nil
	default:
		return 0, fmt.Errorf("unknown chain type %q", s)
	}
}

func (c ChainType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChainType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChainType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IntentState is the lifecycle of a top-level intent. Kept as a distinct
// type from SubIntentState even though both were folded into a single enum
// upstream: an Intent and its SubIntents progress independently, and
// conflating them obscures which state machine a given value belongs to.
type IntentState int

const (
	IntentOpen IntentState = iota
	IntentFilled
)

func (s IntentState) String() string {
	switch s {
	case IntentOpen:
		return "Open"
	case IntentFilled:
		return "Filled"
	default:
		return "Unknown"
	}
}

// SubIntentState is the lifecycle of a matched fill as it moves through
// proof submission and MPC signing.
type SubIntentState int

const (
	SubIntentTaken SubIntentState = iota
	SubIntentVerifying
	SubIntentSettled
	SubIntentTransitionVerifying
	SubIntentCompleted
)

func (s SubIntentState) String() string {
	switch s {
	case SubIntentTaken:
		return "Taken"
	case SubIntentVerifying:
		return "Verifying"
	case SubIntentSettled:
		return "Settled"
	case SubIntentTransitionVerifying:
		return "TransitionVerifying"
	case SubIntentCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Intent is a maker's standing offer to trade SrcAmount of SrcAsset for at
// least DstAmount of DstAsset.
type Intent struct {
	ID           uint64
	Maker        string
	SrcAsset     Asset
	SrcAmount    Amount
	FilledAmount Amount
	DstAsset     Asset
	DstAmount    Amount
	Status       IntentState
}

// Remaining returns SrcAmount - FilledAmount.
func (i Intent) Remaining() (Amount, error) {
	return i.SrcAmount.Sub(i.FilledAmount)
}

// SubIntent is one fill against a parent Intent, taken either directly via
// TakeIntent or produced by a BatchMatchIntents match.
type SubIntent struct {
	ID             uint64
	ParentIntentID uint64
	Taker          string
	Amount         Amount
	Status         SubIntentState
}

// TransitionExpectation binds a sub-intent's outbound transfer to the
// proof the light client must later validate.
type TransitionExpectation struct {
	SubIntentID    uint64
	ChainType      ChainType
	ExpectedAsset  Asset
	ExpectedAmount Amount
	ExpectedMemo   string
}

// PendingWithdrawal tracks a debited-but-not-yet-signed withdrawal so the
// debit can be refunded if the signer fails.
type PendingWithdrawal struct {
	User   string
	Asset  Asset
	Amount Amount
}

// MatchParams is one entry in a batch_match batch: how much of an intent to
// fill, what the maker gets in return, and the payload/path/chain for the
// resulting outbound MPC-signed transaction.
type MatchParams struct {
	IntentID            uint64
	FillAmount          Amount
	GetAmount           Amount
	Payload             [32]byte
	Path                string
	TransitionChainType ChainType
}

// SignRequest is what the engine asks the MPC signer to produce a
// signature for.
type SignRequest struct {
	Payload    [32]byte
	Path       string
	KeyVersion uint32
}

// SignResult is the signature the MPC signer returns.
type SignResult struct {
	BigR        string
	S           string
	RecoveryID  uint8
}

// SignatureEvent is the event relayers consume to broadcast a signed
// transaction, serialized as the EVENT_JSON: line.
type SignatureEvent struct {
	SubIntentID    uint64    `json:"sub_intent_id"`
	ChainType      ChainType `json:"chain_type"`
	Payload        string    `json:"payload"`
	BigR           string    `json:"big_r"`
	S              string    `json:"s"`
	RecoveryID     uint8     `json:"recovery_id"`
	TransitionMemo string    `json:"transition_memo"`
}

// DepositMemo returns the memo an MPC deposit must carry for (user, asset).
func DepositMemo(user string, asset Asset) string {
	return fmt.Sprintf("mpc:deposit:%s:%s", user, asset)
}

// PaymentMemo returns the memo an inbound payment proof must carry for a
// sub-intent.
func PaymentMemo(subIntentID uint64) string {
	return fmt.Sprintf("sub:%d", subIntentID)
}

// TransitionMemo returns the memo an outbound transition must carry for a
// sub-intent.
func TransitionMemo(subIntentID uint64) string {
	return fmt.Sprintf("transition:sub:%d", subIntentID)
}
