// Package relayer implements the reference operator/matcher adapter
// described as an external collaborator in spec.md §6: discovering
// mirror-pair counter-intents and submitting them as a batch match. The
// real network transport (RPC polling, a signing keychain) is out of
// scope; this package drives the coordinator in-process instead.
package relayer

import (
	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// OpenIntent is the subset of orderbook.Intent the matcher reasons about.
// Kept distinct from orderbook.Intent so the matcher's pure function below
// can be tested without constructing a full Coordinator.
type OpenIntent struct {
	ID           uint64
	SrcAsset     orderbook.Asset
	SrcAmount    orderbook.Amount
	FilledAmount orderbook.Amount
	DstAsset     orderbook.Asset
	DstAmount    orderbook.Amount
}

// Remaining returns SrcAmount - FilledAmount, clamped to zero.
func (o OpenIntent) Remaining() orderbook.Amount {
	remaining, err := o.SrcAmount.Sub(o.FilledAmount)
	if err != nil {
		return orderbook.ZeroAmount
	}
	return remaining
}

// Match is one resulting entry for BatchMatchIntents, missing the
// payload/path/chain fields the MPC signer needs — those are filled in by
// whatever assigns a transition chain to each leg, outside the matcher.
type Match struct {
	IntentID   uint64
	FillAmount orderbook.Amount
	GetAmount  orderbook.Amount
}

func isOpposite(a, b OpenIntent) bool {
	return a.SrcAsset.Equal(b.DstAsset) && a.DstAsset.Equal(b.SrcAsset)
}

func isTargetPair(i OpenIntent, assetA, assetB orderbook.Asset) bool {
	return (i.SrcAsset.Equal(assetA) && i.DstAsset.Equal(assetB)) ||
		(i.SrcAsset.Equal(assetB) && i.DstAsset.Equal(assetA))
}

// BuildMirrorMatches finds pairs of open intents on the (assetA, assetB)
// pair whose remaining amounts exactly mirror each other — i's remaining
// source exactly covers j's requested destination and vice versa — and
// returns the two-entry Match batches for each pair found. This is an
// exact-mirror policy only: no partial fills, no price improvement beyond
// the mirror match itself.
func BuildMirrorMatches(intents []OpenIntent, assetA, assetB orderbook.Asset) []Match {
	used := make(map[uint64]bool)
	var out []Match

	for _, i := range intents {
		if used[i.ID] || !isTargetPair(i, assetA, assetB) {
			continue
		}

		for _, j := range intents {
			if i.ID == j.ID || used[j.ID] || !isOpposite(i, j) {
				continue
			}

			iRemain := i.Remaining()
			jRemain := j.Remaining()
			if iRemain.Cmp(j.DstAmount) != 0 || jRemain.Cmp(i.DstAmount) != 0 {
				continue
			}

			out = append(out,
				Match{IntentID: i.ID, FillAmount: iRemain, GetAmount: jRemain},
				Match{IntentID: j.ID, FillAmount: jRemain, GetAmount: iRemain},
			)
			used[i.ID] = true
			used[j.ID] = true
			break
		}
	}

	return out
}
