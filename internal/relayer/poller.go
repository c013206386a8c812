package relayer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// LegAssigner supplies the payload/path/chain an outbound leg of a match
// needs before it can be submitted to BatchMatchIntents — these come from
// whatever system prepares the unsigned transaction for a chain, not from
// the matcher itself.
type LegAssigner func(m Match) (payload [32]byte, path string, chainType orderbook.ChainType)

// Poller repeatedly asks a Coordinator for open intents, looks for
// mirror-pair matches on a configured asset pair, and submits any matches
// found — the in-process analogue of polling an RPC endpoint and shelling
// out to a CLI signer.
type Poller struct {
	coordinator *orderbook.Coordinator
	solver      string
	assetA      orderbook.Asset
	assetB      orderbook.Asset
	legAssigner LegAssigner
	interval    time.Duration
}

// NewPoller builds a Poller that submits matches as solver.
func NewPoller(coordinator *orderbook.Coordinator, solver string, assetA, assetB orderbook.Asset, legAssigner LegAssigner, interval time.Duration) *Poller {
	return &Poller{
		coordinator: coordinator,
		solver:      solver,
		assetA:      assetA,
		assetB:      assetB,
		legAssigner: legAssigner,
		interval:    interval,
	}
}

// PollOnce fetches open intents, builds mirror matches, and submits them
// as a single batch if any were found. Returns the number of matched
// intents submitted.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	intents := p.coordinator.GetOpenIntents(0, 200)
	open := make([]OpenIntent, len(intents))
	for i, it := range intents {
		open[i] = OpenIntent{
			ID:           it.ID,
			SrcAsset:     it.SrcAsset,
			SrcAmount:    it.SrcAmount,
			FilledAmount: it.FilledAmount,
			DstAsset:     it.DstAsset,
			DstAmount:    it.DstAmount,
		}
	}

	matches := BuildMirrorMatches(open, p.assetA, p.assetB)
	if len(matches) == 0 {
		return 0, nil
	}

	params := make([]orderbook.MatchParams, len(matches))
	for i, m := range matches {
		payload, path, chainType := p.legAssigner(m)
		params[i] = orderbook.MatchParams{
			IntentID:            m.IntentID,
			FillAmount:          m.FillAmount,
			GetAmount:           m.GetAmount,
			Payload:             payload,
			Path:                path,
			TransitionChainType: chainType,
		}
	}

	if err := p.coordinator.BatchMatchIntents(ctx, p.solver, params); err != nil {
		return 0, fmt.Errorf("batch match submission failed: %w", err)
	}
	return len(matches), nil
}

// Run polls on the configured interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		n, err := p.PollOnce(ctx)
		if err != nil {
			log.Printf("relayer: batch match failed: %v", err)
		} else if n > 0 {
			log.Printf("relayer: matched %d intents", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
