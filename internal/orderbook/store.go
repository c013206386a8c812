package orderbook

// store holds the engine's collections, all keyed out of one shared
// monotonic ID space. Intents, sub-intents, and pending withdrawals all
// draw from the same counter so that a single u64 id unambiguously
// identifies which collection an on_signed callback is resolving against
// (a sub-intent id and a withdrawal id never collide).
type store struct {
	nextID                 uint64
	intents                map[uint64]*Intent
	subIntents             map[uint64]*SubIntent
	transitionExpectations map[uint64]*TransitionExpectation
	pendingWithdrawals     map[uint64]*PendingWithdrawal
}

func newStore() *store {
	return &store{
		intents:                make(map[uint64]*Intent),
		subIntents:             make(map[uint64]*SubIntent),
		transitionExpectations: make(map[uint64]*TransitionExpectation),
		pendingWithdrawals:     make(map[uint64]*PendingWithdrawal),
	}
}

func (s *store) allocID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}
