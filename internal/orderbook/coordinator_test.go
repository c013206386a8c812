package orderbook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSigner is a synchronous, in-test double for Signer: it invokes the
// callback immediately from Sign, with either a canned success or a canned
// failure, so coordinator tests don't need to wait on goroutines.
type fakeSigner struct {
	fail bool
}

func (f *fakeSigner) Sign(ctx context.Context, req SignRequest, callback SignCallback) {
	if f.fail {
		callback(SignResult{}, assertError)
		return
	}
	callback(SignResult{BigR: "aa", S: "bb", RecoveryID: 0}, nil)
}

var assertError = &Error{Kind: KindExternalFailure, Message: "signer unavailable"}

// fakeLightClient is a synchronous in-test double for LightClient, returning
// a canned verdict regardless of the proof content.
type fakeLightClient struct {
	valid bool
	err   error
}

func (f *fakeLightClient) VerifyPaymentProof(ctx context.Context, chainType ChainType, proofData []byte, expectedRecipient string, expectedAsset Asset, expectedAmount Amount, expectedMemo string, callback VerifyCallback) {
	callback(f.valid, f.err)
}

func (f *fakeLightClient) VerifyTransitionProof(ctx context.Context, chainType ChainType, proofData []byte, expectedRecipient string, expectedAsset Asset, expectedAmount Amount, expectedMemo string, expectedTxHash string, callback VerifyCallback) {
	callback(f.valid, f.err)
}

func newTestCoordinator(signer Signer, lc LightClient) *Coordinator {
	return NewCoordinator("owner", signer, lc, nil)
}

func TestDepositForOwnerOnly(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})

	err := c.DepositFor("not-owner", "alice", "USDC", NewAmount(100))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnauthorized))

	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	assert.Equal(t, NewAmount(100), c.GetBalance("alice", "USDC"))
}

func TestMakeIntentLocksMakerBalance(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))

	id, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(1))
	require.NoError(t, err)
	assert.Equal(t, ZeroAmount, c.GetBalance("alice", "USDC"))

	intent, ok := c.GetIntent(id)
	require.True(t, ok)
	assert.Equal(t, IntentOpen, intent.Status)
}

func TestTakeIntentBypassesPriceAndConservationChecks(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	intentID, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)

	// TakeIntent is not given any counter-asset at all, let alone one priced
	// in line with the intent's 100:10 ratio. It still succeeds, by design:
	// the price and conservation checks only exist in BatchMatchIntents.
	subID, err := c.TakeIntent("taker", intentID, NewAmount(40))
	require.NoError(t, err)

	sub, ok := c.GetSubIntent(subID)
	require.True(t, ok)
	assert.Equal(t, SubIntentTaken, sub.Status)

	intent, _ := c.GetIntent(intentID)
	assert.Equal(t, NewAmount(40), intent.FilledAmount)
}

func TestTakeIntentRejectsOverfill(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	intentID, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)

	_, err = c.TakeIntent("taker", intentID, NewAmount(101))
	require.Error(t, err)
}

func TestBatchMatchIntentsHappyPath(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	require.NoError(t, c.DepositFor("owner", "bob", "ETH", NewAmount(10)))

	i1, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	i2, err := c.MakeIntent("bob", "ETH", NewAmount(10), "USDC", NewAmount(100))
	require.NoError(t, err)

	matches := []MatchParams{
		{IntentID: i1, FillAmount: NewAmount(100), GetAmount: NewAmount(10), TransitionChainType: ChainETH},
		{IntentID: i2, FillAmount: NewAmount(10), GetAmount: NewAmount(100), TransitionChainType: ChainETH},
	}
	require.NoError(t, c.BatchMatchIntents(context.Background(), "solver", matches))

	// Maker proceeds are credited in BatchMatchIntents' commit phase,
	// before any signer call is dispatched.
	assert.Equal(t, NewAmount(10), c.GetBalance("alice", "ETH"))
	assert.Equal(t, NewAmount(100), c.GetBalance("bob", "USDC"))

	intent1, _ := c.GetIntent(i1)
	assert.Equal(t, IntentFilled, intent1.Status)
}

func TestBatchMatchIntentsRejectsPriceBelowIntentTerms(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	require.NoError(t, c.DepositFor("owner", "bob", "ETH", NewAmount(10)))

	i1, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	i2, err := c.MakeIntent("bob", "ETH", NewAmount(10), "USDC", NewAmount(100))
	require.NoError(t, err)

	// Alice wants 10 ETH for 100 USDC; this batch only gives her 5.
	matches := []MatchParams{
		{IntentID: i1, FillAmount: NewAmount(100), GetAmount: NewAmount(5), TransitionChainType: ChainETH},
		{IntentID: i2, FillAmount: NewAmount(5), GetAmount: NewAmount(100), TransitionChainType: ChainETH},
	}
	err = c.BatchMatchIntents(context.Background(), "solver", matches)
	require.Error(t, err)

	// No partial mutation: both intents remain untouched.
	intent1, _ := c.GetIntent(i1)
	assert.Equal(t, ZeroAmount, intent1.FilledAmount)
	intent2, _ := c.GetIntent(i2)
	assert.Equal(t, ZeroAmount, intent2.FilledAmount)
}

func TestBatchMatchIntentsRejectsConservationDeficit(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	require.NoError(t, c.DepositFor("owner", "bob", "ETH", NewAmount(10)))
	require.NoError(t, c.DepositFor("owner", "carol", "BTC", NewAmount(1)))

	i1, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	i2, err := c.MakeIntent("bob", "ETH", NewAmount(10), "BTC", NewAmount(1))
	require.NoError(t, err)

	// i2 demands BTC, but no intent in this batch supplies BTC: the batch
	// must be rejected as a whole rather than partially settled.
	matches := []MatchParams{
		{IntentID: i1, FillAmount: NewAmount(100), GetAmount: NewAmount(10), TransitionChainType: ChainETH},
		{IntentID: i2, FillAmount: NewAmount(10), GetAmount: NewAmount(1), TransitionChainType: ChainBTC},
	}
	err = c.BatchMatchIntents(context.Background(), "solver", matches)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInsufficientFunds))
}

func TestBatchMatchIntentsRejectsBatchSizeBounds(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	err := c.BatchMatchIntents(context.Background(), "solver", []MatchParams{{IntentID: 1}})
	require.Error(t, err)

	tooMany := make([]MatchParams, 7)
	err = c.BatchMatchIntents(context.Background(), "solver", tooMany)
	require.Error(t, err)
}

// TestBatchMatchIntentsRejectsDoubleClaimOnSameIntent guards against a
// batch referencing the same IntentID in two MatchParams entries where
// neither fill alone exceeds the intent's remaining balance but their sum
// does: both entries would pass an independent remaining-balance check
// against the unmutated store, over-filling the intent once both commits
// land.
func TestBatchMatchIntentsRejectsDoubleClaimOnSameIntent(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	require.NoError(t, c.DepositFor("owner", "bob", "ETH", NewAmount(20)))

	i1, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	i2, err := c.MakeIntent("bob", "ETH", NewAmount(20), "USDC", NewAmount(200))
	require.NoError(t, err)

	// Two matches both draw on i1: 60 + 60 = 120 > i1's SrcAmount of 100.
	// Each individual fill is within 100, so only a running per-intent total
	// catches the over-claim.
	matches := []MatchParams{
		{IntentID: i1, FillAmount: NewAmount(60), GetAmount: NewAmount(6), TransitionChainType: ChainETH},
		{IntentID: i2, FillAmount: NewAmount(6), GetAmount: NewAmount(60), TransitionChainType: ChainBTC},
		{IntentID: i1, FillAmount: NewAmount(60), GetAmount: NewAmount(6), TransitionChainType: ChainETH},
	}
	err = c.BatchMatchIntents(context.Background(), "solver", matches)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidInput))

	intent, ok := c.store.intents[i1]
	require.True(t, ok)
	assert.True(t, intent.FilledAmount.IsZero(), "rejected batch must leave no partial state behind")
}

// TestBatchMatchMakerCreditNotReversedOnSignerFailure reproduces the
// original contract's discrepancy faithfully: the maker's proceeds are
// credited during the commit phase, before the signer call is dispatched,
// and onSigned's failure path only rolls the sub-intent back to Taken — it
// never reverses that credit.
func TestBatchMatchMakerCreditNotReversedOnSignerFailure(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{fail: true}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	require.NoError(t, c.DepositFor("owner", "bob", "ETH", NewAmount(10)))

	i1, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	i2, err := c.MakeIntent("bob", "ETH", NewAmount(10), "USDC", NewAmount(100))
	require.NoError(t, err)

	matches := []MatchParams{
		{IntentID: i1, FillAmount: NewAmount(100), GetAmount: NewAmount(10), TransitionChainType: ChainETH},
		{IntentID: i2, FillAmount: NewAmount(10), GetAmount: NewAmount(100), TransitionChainType: ChainETH},
	}
	require.NoError(t, c.BatchMatchIntents(context.Background(), "solver", matches))

	// The signer always fails in this test, yet the maker credit stands.
	assert.Equal(t, NewAmount(10), c.GetBalance("alice", "ETH"))
	assert.Equal(t, NewAmount(100), c.GetBalance("bob", "USDC"))

	sub, ok := c.GetSubIntent(3) // second match's sub-intent (ids 0,1 went to the two intents)
	require.True(t, ok)
	assert.Equal(t, SubIntentTaken, sub.Status)
}

// TestInvalidProofLeavesSubIntentStuckInVerifying reproduces the original
// contract's on_proof_verified discrepancy: an invalid proof never reverts
// the sub-intent back to Taken, because SubmitPaymentProof already moved it
// to Verifying before the async verification call, and the invalid branch
// of the callback never touches the status field.
func TestInvalidProofLeavesSubIntentStuckInVerifying(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: false})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	intentID, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	subID, err := c.TakeIntent("taker", intentID, NewAmount(40))
	require.NoError(t, err)

	var payload [32]byte
	err = c.SubmitPaymentProof(context.Background(), subID, []byte("{}"), payload, "m/0", ChainETH, ChainETH, "0xrecipient", PaymentMemo(subID))
	require.NoError(t, err)

	sub, ok := c.GetSubIntent(subID)
	require.True(t, ok)
	assert.Equal(t, SubIntentVerifying, sub.Status, "stuck in Verifying rather than reverted to Taken")
}

func TestRetrySettlementRequiresOriginalTaker(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	intentID, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	subID, err := c.TakeIntent("taker", intentID, NewAmount(40))
	require.NoError(t, err)

	var payload [32]byte
	err = c.RetrySettlement(context.Background(), "someone-else", subID, payload, "m/0", ChainETH)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestWithdrawRefundsOnSignerFailure(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{fail: true}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))

	var payload [32]byte
	_, err := c.Withdraw(context.Background(), "alice", "USDC", NewAmount(40), payload, "m/0", ChainETH)
	require.NoError(t, err)

	// Debited immediately, then refunded once the fake signer's inline
	// callback reports failure.
	assert.Equal(t, NewAmount(100), c.GetBalance("alice", "USDC"))
}

func TestWithdrawDoesNotRefundOnSignerSuccess(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))

	var payload [32]byte
	_, err := c.Withdraw(context.Background(), "alice", "USDC", NewAmount(40), payload, "m/0", ChainETH)
	require.NoError(t, err)

	assert.Equal(t, NewAmount(60), c.GetBalance("alice", "USDC"))
}

func TestVerifyTransitionCompletionRoundTrip(t *testing.T) {
	lc := &fakeLightClient{valid: true}
	c := newTestCoordinator(&fakeSigner{}, lc)
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	intentID, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	subID, err := c.TakeIntent("taker", intentID, NewAmount(40))
	require.NoError(t, err)

	var payload [32]byte
	require.NoError(t, c.RetrySettlement(context.Background(), "taker", subID, payload, "m/0", ChainETH))

	sub, _ := c.GetSubIntent(subID)
	require.Equal(t, SubIntentSettled, sub.Status)

	require.NoError(t, c.VerifyTransitionCompletion(context.Background(), subID, []byte("{}"), "0xrecipient", "0xtxhash"))
	sub, _ = c.GetSubIntent(subID)
	assert.Equal(t, SubIntentCompleted, sub.Status)
}

func TestVerifyTransitionCompletionRevertsOnInvalidProof(t *testing.T) {
	lc := &fakeLightClient{valid: true}
	c := newTestCoordinator(&fakeSigner{}, lc)
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	intentID, err := c.MakeIntent("alice", "USDC", NewAmount(100), "ETH", NewAmount(10))
	require.NoError(t, err)
	subID, err := c.TakeIntent("taker", intentID, NewAmount(40))
	require.NoError(t, err)

	var payload [32]byte
	require.NoError(t, c.RetrySettlement(context.Background(), "taker", subID, payload, "m/0", ChainETH))

	lc.valid = false
	require.NoError(t, c.VerifyTransitionCompletion(context.Background(), subID, []byte("{}"), "0xrecipient", "0xtxhash"))
	sub, _ := c.GetSubIntent(subID)
	assert.Equal(t, SubIntentSettled, sub.Status, "reverted back to Settled, unlike the stuck-Verifying payment-proof path")
}

func TestGetOpenIntentsWindowsBeforeFiltering(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(1000)))

	var ids []uint64
	for i := 0; i < 5; i++ {
		id, err := c.MakeIntent("alice", "USDC", NewAmount(10), "ETH", NewAmount(1))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// Fill the first three entirely via TakeIntent so only two remain Open.
	for _, id := range ids[:3] {
		_, err := c.TakeIntent("taker", id, NewAmount(10))
		require.NoError(t, err)
	}

	// A window covering only the filled intents comes back empty even
	// though Open intents exist just past it.
	page := c.GetOpenIntents(0, 3)
	assert.Empty(t, page)

	page = c.GetOpenIntents(0, 5)
	assert.Len(t, page, 2)
}

func TestExportImportStateRoundTrip(t *testing.T) {
	c := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	require.NoError(t, c.DepositFor("owner", "alice", "USDC", NewAmount(100)))
	_, err := c.MakeIntent("alice", "USDC", NewAmount(50), "ETH", NewAmount(5))
	require.NoError(t, err)

	state := c.ExportState()

	c2 := newTestCoordinator(&fakeSigner{}, &fakeLightClient{valid: true})
	c2.ImportState(state)

	assert.Equal(t, NewAmount(50), c2.GetBalance("alice", "USDC"))
	page := c2.GetOpenIntents(0, 10)
	require.Len(t, page, 1)
	assert.Equal(t, NewAmount(50), page[0].SrcAmount)
}
