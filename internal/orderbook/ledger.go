package orderbook

import "sync"

// Ledger holds per-account, per-asset balances. Asset lookups fold case so
// "usdc" and "USDC" always resolve to the same entry.
//
// The coordinator's single-threaded handler model means Ledger never sees
// concurrent writers, but a mutex is kept anyway since views (GetBalance)
// may be called from a different goroutine than the handler loop (e.g. an
// HTTP status endpoint) without going through the coordinator's queue.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[Asset]Amount
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[Asset]Amount)}
}

func (l *Ledger) accountOf(user string) map[Asset]Amount {
	acct, ok := l.balances[user]
	if !ok {
		acct = make(map[Asset]Amount)
		l.balances[user] = acct
	}
	return acct
}

// Balance returns the current balance of asset for user (zero if absent).
func (l *Ledger) Balance(user string, asset Asset) Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.balances[user]
	if !ok {
		return ZeroAmount
	}
	return acct[asset.Normalize()]
}

// Credit adds amount to user's balance of asset.
func (l *Ledger) Credit(user string, asset Asset, amount Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditLocked(user, asset, amount)
}

func (l *Ledger) creditLocked(user string, asset Asset, amount Amount) error {
	acct := l.accountOf(user)
	key := asset.Normalize()
	next, err := acct[key].Add(amount)
	if err != nil {
		return wrapErr(KindInvalidInput, err, "credit %s %s to %s", amount, asset, user)
	}
	acct[key] = next
	return nil
}

// Debit subtracts amount from user's balance of asset, failing with
// NotFound if user has no balance record at all, or InsufficientFunds if
// the record exists but is too small.
func (l *Ledger) Debit(user string, asset Asset, amount Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitLocked(user, asset, amount)
}

func (l *Ledger) debitLocked(user string, asset Asset, amount Amount) error {
	acct, ok := l.balances[user]
	if !ok {
		return errNotFound("user %s has no balance record", user)
	}
	key := asset.Normalize()
	current := acct[key]
	if current.Cmp(amount) < 0 {
		return errInsufficientFunds("user %s has %s %s, need %s", user, current, asset, amount)
	}
	next, err := current.Sub(amount)
	if err != nil {
		return wrapErr(KindInvalidInput, err, "debit %s %s from %s", amount, asset, user)
	}
	acct[key] = next
	return nil
}

// InternalTransfer credits amount of asset to user without an offsetting
// debit — used for crediting deposits and match proceeds that originate
// outside any tracked account balance.
func (l *Ledger) InternalTransfer(user string, asset Asset, amount Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditLocked(user, asset, amount)
}
