package orderbook

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// Coordinator drives the settlement state machine described by the engine:
// it owns the ledger and the intent/sub-intent store, and exposes one
// method per message handler (spec section 5). Every exported method here
// except GetBalance (which reads the ledger under the ledger's own lock)
// executes under a single mutex, so handlers never interleave with each
// other even when their external collaborator calls resolve concurrently
// from other goroutines — the same "one handler runs to completion before
// the next starts" guarantee the original contract gets for free from its
// single-threaded runtime.
type Coordinator struct {
	mu sync.Mutex

	owner       string
	ledger      *Ledger
	store       *store
	signer      Signer
	lightClient LightClient
	audit       *AuditLogger

	intentOrder []uint64
}

// NewCoordinator builds a Coordinator. audit may be nil to disable the
// NDJSON audit trail.
func NewCoordinator(owner string, signer Signer, lightClient LightClient, audit *AuditLogger) *Coordinator {
	return &Coordinator{
		owner:       owner,
		ledger:      NewLedger(),
		store:       newStore(),
		signer:      signer,
		lightClient: lightClient,
		audit:       audit,
	}
}

func (c *Coordinator) logEntry(entry AuditEntry) {
	if c.audit == nil {
		return
	}
	_ = c.audit.Log(entry)
}

// ---------------------------------------------------------------------
// 1. Deposit
// ---------------------------------------------------------------------

// DepositFor is an owner-only administrative credit, used for testing and
// initial setup. Production deposits go through VerifyMPCDeposit.
func (c *Coordinator) DepositFor(caller string, user string, asset Asset, amount Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return errUnauthorized("only owner can call DepositFor")
	}
	if err := c.ledger.Credit(user, asset, amount); err != nil {
		return err
	}
	c.logEntry(AuditEntry{Operation: "DEPOSIT_FOR", Status: "SUCCESS", Detail: fmt.Sprintf("user=%s asset=%s amount=%s", user, asset, amount)})
	return nil
}

// VerifyMPCDeposit checks the memo contract then asks the light client to
// verify an external-chain deposit to the MPC custody address. The actual
// balance credit happens in onMPCDepositVerified once the light client
// replies.
func (c *Coordinator) VerifyMPCDeposit(ctx context.Context, user string, chainType ChainType, asset Asset, amount Amount, recipient string, memo string, proofData []byte) error {
	c.mu.Lock()
	expected := DepositMemo(user, asset)
	if memo != expected {
		c.mu.Unlock()
		return errInvalidInput("memo mismatch: got %q, want %q", memo, expected)
	}
	c.mu.Unlock()

	c.lightClient.VerifyPaymentProof(ctx, chainType, proofData, recipient, asset, amount, memo, func(valid bool, err error) {
		c.onMPCDepositVerified(user, asset, amount, recipient, memo, valid, err)
	})
	return nil
}

func (c *Coordinator) onMPCDepositVerified(user string, asset Asset, amount Amount, recipient string, memo string, valid bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil || !valid {
		c.logEntry(AuditEntry{Operation: "MPC_DEPOSIT_VERIFIED", Status: "FAILURE", Detail: "MPC deposit proof invalid"})
		return
	}
	if tErr := c.ledger.InternalTransfer(user, asset, amount); tErr != nil {
		c.logEntry(AuditEntry{Operation: "MPC_DEPOSIT_VERIFIED", Status: "FAILURE", Detail: tErr.Error()})
		return
	}
	c.logEntry(AuditEntry{Operation: "MPC_DEPOSIT_VERIFIED", Status: "SUCCESS", Detail: fmt.Sprintf("user=%s asset=%s amount=%s recipient=%s memo=%s", user, asset, amount, recipient, memo)})
}

// ---------------------------------------------------------------------
// 2. Make Intent
// ---------------------------------------------------------------------

// MakeIntent locks srcAmount of srcAsset from the maker's balance and
// opens a new intent offering it for dstAmount of dstAsset.
func (c *Coordinator) MakeIntent(maker string, srcAsset Asset, srcAmount Amount, dstAsset Asset, dstAmount Amount) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ledger.Debit(maker, srcAsset, srcAmount); err != nil {
		return 0, err
	}

	id := c.store.allocID()
	intent := &Intent{
		ID:        id,
		Maker:     maker,
		SrcAsset:  srcAsset.Normalize(),
		SrcAmount: srcAmount,
		DstAsset:  dstAsset.Normalize(),
		DstAmount: dstAmount,
		Status:    IntentOpen,
	}
	c.store.intents[id] = intent
	c.intentOrder = append(c.intentOrder, id)
	c.logEntry(AuditEntry{ID: id, Operation: "MAKE_INTENT", Status: "SUCCESS", Detail: fmt.Sprintf("intent #%d created", id)})
	return id, nil
}

// ---------------------------------------------------------------------
// 3. Take Intent (single taker, no batch)
// ---------------------------------------------------------------------

// TakeIntent fills part of an open intent directly, without the price or
// conservation checks BatchMatchIntents performs — by design, this is a
// manual single-taker path and the caller is trusted to have agreed terms
// with the maker out of band.
func (c *Coordinator) TakeIntent(taker string, intentID uint64, amount Amount) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	intent, ok := c.store.intents[intentID]
	if !ok {
		return 0, errNotFound("intent %d not found", intentID)
	}
	if intent.Status == IntentFilled {
		return 0, errIllegalState("intent %d already filled", intentID)
	}

	remaining, err := intent.Remaining()
	if err != nil {
		return 0, err
	}
	if amount.Cmp(remaining) > 0 {
		return 0, errInvalidInput("amount %s exceeds remaining balance %s for intent %d", amount, remaining, intentID)
	}

	filled, err := intent.FilledAmount.Add(amount)
	if err != nil {
		return 0, err
	}
	intent.FilledAmount = filled
	if intent.FilledAmount.Cmp(intent.SrcAmount) == 0 {
		intent.Status = IntentFilled
	}

	subID := c.store.allocID()
	c.store.subIntents[subID] = &SubIntent{
		ID:             subID,
		ParentIntentID: intentID,
		Taker:          taker,
		Amount:         amount,
		Status:         SubIntentTaken,
	}
	return subID, nil
}

// ---------------------------------------------------------------------
// 4. Batch Match + Auto MPC Sign
// ---------------------------------------------------------------------

type preparedMatch struct {
	intent     *Intent
	fillAmount Amount
	getAmount  Amount
}

// BatchMatchIntents validates a solver-submitted batch of matches (price
// and conservation-of-supply invariants) and, only if every entry in the
// batch validates, commits all of them and fires off one MPC sign request
// per resulting sub-intent. Validation runs entirely before any mutation,
// so a rejected batch leaves no partial state behind.
func (c *Coordinator) BatchMatchIntents(ctx context.Context, solver string, matches []MatchParams) error {
	c.mu.Lock()

	if len(matches) < 2 {
		c.mu.Unlock()
		return errInvalidInput("at least 2 intents required")
	}
	if len(matches) > 6 {
		c.mu.Unlock()
		return errInvalidInput("max 6 intents per batch")
	}

	prepared := make([]preparedMatch, 0, len(matches))
	assetSupply := make(map[Asset]Amount)
	assetDemand := make(map[Asset]Amount)
	// pendingFill accumulates fill amounts per IntentID across this batch's
	// validate pass, so a second MatchParams entry referencing an intent
	// already claimed earlier in the same batch is checked against what's
	// left after that earlier claim rather than against the unmutated store
	// state both entries would otherwise see.
	pendingFill := make(map[uint64]Amount)

	for _, m := range matches {
		intent, ok := c.store.intents[m.IntentID]
		if !ok {
			c.mu.Unlock()
			return errNotFound("intent %d not found", m.IntentID)
		}
		if intent.Status != IntentOpen {
			c.mu.Unlock()
			return errIllegalState("intent %d not open", m.IntentID)
		}

		remaining, err := intent.Remaining()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		claimed, err := pendingFill[m.IntentID].Add(m.FillAmount)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		if claimed.Cmp(remaining) > 0 {
			c.mu.Unlock()
			return errInvalidInput("fill amount %s exceeds remaining balance for intent %d", m.FillAmount, m.IntentID)
		}
		pendingFill[m.IntentID] = claimed

		// Price check: get_amount / fill_amount >= dst_amount / src_amount,
		// cross-multiplied to stay in integer arithmetic.
		lhs, err := m.GetAmount.Mul(intent.SrcAmount)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		rhs, err := m.FillAmount.Mul(intent.DstAmount)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		if lhs.Cmp(rhs) < 0 {
			c.mu.Unlock()
			return errInvalidInput("price mismatch for intent %d: get %s too low", m.IntentID, m.GetAmount)
		}

		src := intent.SrcAsset.Normalize()
		supply, err := assetSupply[src].Add(m.FillAmount)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		assetSupply[src] = supply

		dst := intent.DstAsset.Normalize()
		demand, err := assetDemand[dst].Add(m.GetAmount)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		assetDemand[dst] = demand

		prepared = append(prepared, preparedMatch{intent: intent, fillAmount: m.FillAmount, getAmount: m.GetAmount})
	}

	// Conservation of mass: every asset promised out (demand) must be
	// covered by an asset coming in (supply) within this same batch.
	for asset, demand := range assetDemand {
		supply := assetSupply[asset]
		if supply.Cmp(demand) < 0 {
			deficit, _ := demand.Sub(supply)
			c.mu.Unlock()
			return errInsufficientFunds("insufficient supply for asset %s: deficit %s", asset, deficit)
		}
	}

	// Commit phase: every match in the batch is now known-good.
	subIDs := make([]uint64, len(matches))
	for i, m := range matches {
		p := prepared[i]
		intent := p.intent

		filled, err := intent.FilledAmount.Add(p.fillAmount)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		intent.FilledAmount = filled
		if intent.FilledAmount.Cmp(intent.SrcAmount) == 0 {
			intent.Status = IntentFilled
		}

		subID := c.store.allocID()
		c.store.subIntents[subID] = &SubIntent{
			ID:             subID,
			ParentIntentID: intent.ID,
			Taker:          solver,
			Amount:         p.fillAmount,
			Status:         SubIntentVerifying,
		}
		c.store.transitionExpectations[subID] = &TransitionExpectation{
			SubIntentID:    subID,
			ChainType:      m.TransitionChainType,
			ExpectedAsset:  intent.SrcAsset,
			ExpectedAmount: p.fillAmount,
			ExpectedMemo:   TransitionMemo(subID),
		}
		subIDs[i] = subID

		// Maker is credited here, before the MPC sign call below is even
		// dispatched. If that sign call later fails, onSigned only rolls
		// the sub-intent back to Taken and does not reverse this credit —
		// reproduced faithfully rather than "fixed".
		if err := c.ledger.InternalTransfer(intent.Maker, intent.DstAsset, p.getAmount); err != nil {
			c.mu.Unlock()
			return err
		}

		c.logEntry(AuditEntry{ID: subID, Operation: "BATCH_MATCH", Status: "SUCCESS", Detail: fmt.Sprintf("intent #%d filled %s, got %s, sub_intent #%d", intent.ID, p.fillAmount, p.getAmount, subID)})
	}
	c.logEntry(AuditEntry{Operation: "BATCH_MATCH", Status: "SUCCESS", Detail: "batch match executed successfully"})

	c.mu.Unlock()

	// Auto-trigger MPC signing for every sub-intent produced by this batch.
	// The order in which these resolve is not guaranteed.
	for i, m := range matches {
		subID := subIDs[i]
		req := SignRequest{Payload: m.Payload, Path: m.Path, KeyVersion: 0}
		chainType := m.TransitionChainType
		payload := m.Payload
		c.signer.Sign(ctx, req, func(result SignResult, err error) {
			c.onSigned(subID, chainType, payload, result, err)
		})
	}
	return nil
}

// ---------------------------------------------------------------------
// 5. Retry Settlement
// ---------------------------------------------------------------------

// RetrySettlement lets the solver who originally took a sub-intent retry
// MPC signing after a prior sign attempt failed and rolled the sub-intent
// back to Taken.
func (c *Coordinator) RetrySettlement(ctx context.Context, caller string, subIntentID uint64, payload [32]byte, path string, transitionChainType ChainType) error {
	c.mu.Lock()

	sub, ok := c.store.subIntents[subIntentID]
	if !ok {
		c.mu.Unlock()
		return errNotFound("sub-intent %d not found", subIntentID)
	}
	if sub.Status != SubIntentTaken {
		c.mu.Unlock()
		return errIllegalState("sub-intent %d must be in Taken state to retry", subIntentID)
	}
	if sub.Taker != caller {
		c.mu.Unlock()
		return errUnauthorized("only the solver who matched can retry settlement")
	}

	sub.Status = SubIntentVerifying

	parent, ok := c.store.intents[sub.ParentIntentID]
	if !ok {
		c.mu.Unlock()
		return errNotFound("parent intent %d not found", sub.ParentIntentID)
	}

	c.store.transitionExpectations[subIntentID] = &TransitionExpectation{
		SubIntentID:    subIntentID,
		ChainType:      transitionChainType,
		ExpectedAsset:  parent.SrcAsset,
		ExpectedAmount: sub.Amount,
		ExpectedMemo:   TransitionMemo(subIntentID),
	}
	c.mu.Unlock()

	req := SignRequest{Payload: payload, Path: path, KeyVersion: 0}
	c.signer.Sign(ctx, req, func(result SignResult, err error) {
		c.onSigned(subIntentID, transitionChainType, payload, result, err)
	})
	return nil
}

// ---------------------------------------------------------------------
// 6. Submit Payment Proof
// ---------------------------------------------------------------------

// SubmitPaymentProof checks the payment memo contract and asks the light
// client to verify an inbound payment proof for a Taken sub-intent.
func (c *Coordinator) SubmitPaymentProof(ctx context.Context, subIntentID uint64, proofData []byte, payload [32]byte, path string, paymentChainType ChainType, transitionChainType ChainType, recipient string, memo string) error {
	c.mu.Lock()

	sub, ok := c.store.subIntents[subIntentID]
	if !ok {
		c.mu.Unlock()
		return errNotFound("sub-intent %d not found", subIntentID)
	}
	if sub.Status != SubIntentTaken {
		c.mu.Unlock()
		return errIllegalState("sub-intent %d is not in Taken state", subIntentID)
	}
	parent, ok := c.store.intents[sub.ParentIntentID]
	if !ok {
		c.mu.Unlock()
		return errNotFound("parent intent %d not found", sub.ParentIntentID)
	}

	scaled, err := sub.Amount.Mul(parent.DstAmount)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	expectedAmount, _, err := scaled.divMod(parent.SrcAmount)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	expectedAsset := parent.DstAsset
	expectedMemo := PaymentMemo(subIntentID)
	if memo != expectedMemo {
		c.mu.Unlock()
		return errInvalidInput("memo mismatch: got %q, want %q", memo, expectedMemo)
	}

	sub.Status = SubIntentVerifying
	c.mu.Unlock()

	c.lightClient.VerifyPaymentProof(ctx, paymentChainType, proofData, recipient, expectedAsset, expectedAmount, memo, func(valid bool, vErr error) {
		c.onProofVerified(subIntentID, payload, path, transitionChainType, valid, vErr)
	})
	return nil
}

// onProofVerified reproduces the original callback's behavior exactly,
// including its documented discrepancy: an invalid proof does NOT revert
// the sub-intent to Taken. It was already moved to Verifying in
// SubmitPaymentProof before this callback fires, and the invalid-proof
// branch here never touches sub.Status — so the sub-intent is left stuck
// in Verifying rather than reverting. See spec's design notes.
func (c *Coordinator) onProofVerified(subIntentID uint64, payload [32]byte, path string, transitionChainType ChainType, valid bool, err error) {
	c.mu.Lock()

	if !valid || err != nil {
		c.mu.Unlock()
		c.logEntry(AuditEntry{ID: subIntentID, Operation: "ON_PROOF_VERIFIED", Status: "FAILURE", Detail: "invalid proof"})
		return
	}

	sub, ok := c.store.subIntents[subIntentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	sub.Status = SubIntentVerifying

	parent, ok := c.store.intents[sub.ParentIntentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.store.transitionExpectations[subIntentID] = &TransitionExpectation{
		SubIntentID:    subIntentID,
		ChainType:      transitionChainType,
		ExpectedAsset:  parent.SrcAsset,
		ExpectedAmount: sub.Amount,
		ExpectedMemo:   TransitionMemo(subIntentID),
	}
	ctx := context.Background()
	c.mu.Unlock()

	req := SignRequest{Payload: payload, Path: path, KeyVersion: 0}
	c.signer.Sign(ctx, req, func(result SignResult, signErr error) {
		c.onSigned(subIntentID, transitionChainType, payload, result, signErr)
	})
}

// ---------------------------------------------------------------------
// 7. Withdraw
// ---------------------------------------------------------------------

// Withdraw debits the caller's balance immediately and tracks the debit as
// a pending withdrawal so it can be refunded if MPC signing fails.
func (c *Coordinator) Withdraw(ctx context.Context, caller string, asset Asset, amount Amount, payload [32]byte, path string, chainType ChainType) (uint64, error) {
	c.mu.Lock()

	if err := c.ledger.Debit(caller, asset, amount); err != nil {
		c.mu.Unlock()
		return 0, err
	}

	wdID := c.store.allocID()
	c.store.pendingWithdrawals[wdID] = &PendingWithdrawal{User: caller, Asset: asset, Amount: amount}
	c.logEntry(AuditEntry{ID: wdID, Operation: "WITHDRAW", Status: "SUCCESS", Detail: fmt.Sprintf("withdrawing %s %s for %s (wd_id=%d)", amount, asset, caller, wdID)})
	c.mu.Unlock()

	req := SignRequest{Payload: payload, Path: path, KeyVersion: 0}
	c.signer.Sign(ctx, req, func(result SignResult, err error) {
		c.onSigned(wdID, chainType, payload, result, err)
	})
	return wdID, nil
}

// ---------------------------------------------------------------------
// 8. Transition Verification
// ---------------------------------------------------------------------

// VerifyTransitionCompletion asks the light client to verify the outbound
// transfer for a Settled sub-intent actually landed on the destination
// chain.
func (c *Coordinator) VerifyTransitionCompletion(ctx context.Context, subIntentID uint64, proofData []byte, recipient string, txHash string) error {
	c.mu.Lock()

	sub, ok := c.store.subIntents[subIntentID]
	if !ok {
		c.mu.Unlock()
		return errNotFound("sub-intent %d not found", subIntentID)
	}
	if sub.Status != SubIntentSettled {
		c.mu.Unlock()
		return errIllegalState("sub-intent %d is not ready for transition verification", subIntentID)
	}
	expectation, ok := c.store.transitionExpectations[subIntentID]
	if !ok {
		c.mu.Unlock()
		return errNotFound("transition expectation for sub-intent %d not found", subIntentID)
	}
	sub.Status = SubIntentTransitionVerifying
	c.mu.Unlock()

	c.lightClient.VerifyTransitionProof(ctx, expectation.ChainType, proofData, recipient, expectation.ExpectedAsset, expectation.ExpectedAmount, expectation.ExpectedMemo, txHash, func(valid bool, err error) {
		c.onTransitionVerified(subIntentID, txHash, valid, err)
	})
	return nil
}

func (c *Coordinator) onTransitionVerified(subIntentID uint64, txHash string, valid bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.store.subIntents[subIntentID]
	if !ok {
		return
	}
	if valid && err == nil {
		sub.Status = SubIntentCompleted
		delete(c.store.transitionExpectations, subIntentID)
		c.logEntry(AuditEntry{ID: subIntentID, Operation: "ON_TRANSITION_VERIFIED", Status: "SUCCESS", Detail: fmt.Sprintf("tx_hash=%s", txHash)})
		return
	}
	sub.Status = SubIntentSettled
	c.logEntry(AuditEntry{ID: subIntentID, Operation: "ON_TRANSITION_VERIFIED", Status: "FAILURE"})
}

// ---------------------------------------------------------------------
// 9. MPC Sign Callback (shared by BatchMatchIntents, RetrySettlement, Withdraw)
// ---------------------------------------------------------------------

// onSigned disambiguates a completed sign request by id across the shared
// sub-intent / pending-withdrawal id space: at most one of the two lookups
// below will ever hit for a given id.
func (c *Coordinator) onSigned(id uint64, chainType ChainType, payload [32]byte, result SignResult, signErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if signErr == nil {
		if sub, ok := c.store.subIntents[id]; ok && sub.Status == SubIntentVerifying {
			sub.Status = SubIntentSettled
		}
		delete(c.store.pendingWithdrawals, id)

		c.logEntry(AuditEntry{ID: id, Operation: "ON_SIGNED", Status: "SUCCESS", Detail: "operation signed trustlessly"})

		event := SignatureEvent{
			SubIntentID:    id,
			ChainType:      chainType,
			Payload:        hex.EncodeToString(payload[:]),
			BigR:           result.BigR,
			S:              result.S,
			RecoveryID:     result.RecoveryID,
			TransitionMemo: TransitionMemo(id),
		}
		c.logEntry(AuditEntry{ID: id, Operation: "EVENT", Status: "SUCCESS", Event: &event})
		if line, mErr := json.Marshal(event); mErr == nil {
			fmt.Printf("EVENT_JSON:%s\n", line)
		}
		return
	}

	// Sub-intent rollback.
	if sub, ok := c.store.subIntents[id]; ok {
		sub.Status = SubIntentTaken
		delete(c.store.transitionExpectations, id)
		c.logEntry(AuditEntry{ID: id, Operation: "ON_SIGNED", Status: "FAILURE", Detail: "sub-intent rolled back to Taken"})
	}
	// Withdrawal refund.
	if wd, ok := c.store.pendingWithdrawals[id]; ok {
		_ = c.ledger.InternalTransfer(wd.User, wd.Asset, wd.Amount)
		delete(c.store.pendingWithdrawals, id)
		c.logEntry(AuditEntry{ID: id, Operation: "WITHDRAW_REFUNDED", Status: "SUCCESS", Detail: fmt.Sprintf("user=%s asset=%s amount=%s", wd.User, wd.Asset, wd.Amount)})
	}
}

// ---------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------

func (c *Coordinator) GetIntent(id uint64) (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	intent, ok := c.store.intents[id]
	if !ok {
		return Intent{}, false
	}
	return *intent, true
}

func (c *Coordinator) GetSubIntent(id uint64) (SubIntent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.store.subIntents[id]
	if !ok {
		return SubIntent{}, false
	}
	return *sub, true
}

func (c *Coordinator) GetTransitionExpectation(id uint64) (TransitionExpectation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.store.transitionExpectations[id]
	if !ok {
		return TransitionExpectation{}, false
	}
	return *exp, true
}

// GetOpenIntents pages through intents in creation order first, then
// filters the resulting window to Open ones — matching upstream's
// behavior of windowing the raw key vector before filtering, rather than
// filtering before windowing. A page can therefore come back with fewer
// than limit entries even when more Open intents exist further on.
func (c *Coordinator) GetOpenIntents(fromIndex uint64, limit uint64) []Intent {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := uint64(len(c.intentOrder))
	if fromIndex >= total {
		return nil
	}
	end := fromIndex + limit
	if end > total {
		end = total
	}

	out := make([]Intent, 0, end-fromIndex)
	for _, id := range c.intentOrder[fromIndex:end] {
		intent := c.store.intents[id]
		if intent.Status == IntentOpen {
			out = append(out, *intent)
		}
	}
	return out
}

// GetBalance returns user's current balance of asset.
func (c *Coordinator) GetBalance(user string, asset Asset) Amount {
	return c.ledger.Balance(user, asset)
}

// ---------------------------------------------------------------------
// State snapshot/restore
// ---------------------------------------------------------------------

// State is the full in-memory state of a Coordinator, exported for
// snapshotting by internal/snapshot. It is a plain value copy: mutating it
// after export does not affect the Coordinator it came from.
type State struct {
	NextID                 uint64
	Balances               map[string]map[Asset]Amount
	Intents                map[uint64]*Intent
	SubIntents             map[uint64]*SubIntent
	TransitionExpectations map[uint64]*TransitionExpectation
	PendingWithdrawals     map[uint64]*PendingWithdrawal
	IntentOrder            []uint64
}

// ExportState copies out everything needed to reconstruct this
// Coordinator's ledger and store, for persistence outside the process.
func (c *Coordinator) ExportState() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ledger.mu.Lock()
	balances := make(map[string]map[Asset]Amount, len(c.ledger.balances))
	for user, assets := range c.ledger.balances {
		copied := make(map[Asset]Amount, len(assets))
		for asset, amt := range assets {
			copied[asset] = amt
		}
		balances[user] = copied
	}
	c.ledger.mu.Unlock()

	intents := make(map[uint64]*Intent, len(c.store.intents))
	for id, intent := range c.store.intents {
		copyOf := *intent
		intents[id] = &copyOf
	}
	subIntents := make(map[uint64]*SubIntent, len(c.store.subIntents))
	for id, sub := range c.store.subIntents {
		copyOf := *sub
		subIntents[id] = &copyOf
	}
	transitions := make(map[uint64]*TransitionExpectation, len(c.store.transitionExpectations))
	for id, exp := range c.store.transitionExpectations {
		copyOf := *exp
		transitions[id] = &copyOf
	}
	withdrawals := make(map[uint64]*PendingWithdrawal, len(c.store.pendingWithdrawals))
	for id, wd := range c.store.pendingWithdrawals {
		copyOf := *wd
		withdrawals[id] = &copyOf
	}
	order := make([]uint64, len(c.intentOrder))
	copy(order, c.intentOrder)

	return State{
		NextID:                 c.store.nextID,
		Balances:               balances,
		Intents:                intents,
		SubIntents:             subIntents,
		TransitionExpectations: transitions,
		PendingWithdrawals:     withdrawals,
		IntentOrder:            order,
	}
}

// ImportState replaces this Coordinator's ledger and store with state. It is
// meant to be called once, immediately after NewCoordinator, to restore from
// a snapshot — calling it against a Coordinator already serving traffic
// discards whatever it had in memory.
func (c *Coordinator) ImportState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ledger.mu.Lock()
	c.ledger.balances = make(map[string]map[Asset]Amount, len(state.Balances))
	for user, assets := range state.Balances {
		copied := make(map[Asset]Amount, len(assets))
		for asset, amt := range assets {
			copied[asset] = amt
		}
		c.ledger.balances[user] = copied
	}
	c.ledger.mu.Unlock()

	c.store.intents = make(map[uint64]*Intent, len(state.Intents))
	for id, intent := range state.Intents {
		copyOf := *intent
		c.store.intents[id] = &copyOf
	}
	c.store.subIntents = make(map[uint64]*SubIntent, len(state.SubIntents))
	for id, sub := range state.SubIntents {
		copyOf := *sub
		c.store.subIntents[id] = &copyOf
	}
	c.store.transitionExpectations = make(map[uint64]*TransitionExpectation, len(state.TransitionExpectations))
	for id, exp := range state.TransitionExpectations {
		copyOf := *exp
		c.store.transitionExpectations[id] = &copyOf
	}
	c.store.pendingWithdrawals = make(map[uint64]*PendingWithdrawal, len(state.PendingWithdrawals))
	for id, wd := range state.PendingWithdrawals {
		copyOf := *wd
		c.store.pendingWithdrawals[id] = &copyOf
	}
	c.store.nextID = state.NextID
	c.intentOrder = make([]uint64, len(state.IntentOrder))
	copy(c.intentOrder, state.IntentOrder)
}
