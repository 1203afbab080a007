package match

import (
	"fmt"

	"pommerneg.ai/internal/persistence/snapshot"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/negotiation"
)

// Replay rebuilds the model from snap and re-applies logged ticks, checking
// each digest. Entries at or before the snapshot tick are skipped. It returns
// the model after the last entry.
func Replay(cfg negotiation.Config, snap snapshot.SnapshotV1, entries []TickLogEntry) (*engine.ForwardModel, error) {
	fm, agreements, err := engine.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	fm.InjectRules(negotiation.FromAgreements(cfg, agreements))

	for _, e := range entries {
		if e.Tick <= fm.CurrentTick() {
			continue
		}
		if want := fm.CurrentTick() + 1; e.Tick != want {
			return fm, fmt.Errorf("replay: tick gap: got=%d want=%d", e.Tick, want)
		}
		if fm.IsEnded() {
			return fm, fmt.Errorf("replay: tick %d: %w", e.Tick, ErrEnded)
		}
		if e.Negotiated {
			fm.InjectRules(negotiation.FromAgreements(cfg, e.Agreements))
		}
		fm.Tick(e.Actions)
		if e.Digest != "" {
			if got := fm.Digest(); got != e.Digest {
				return fm, fmt.Errorf("replay: tick %d: %w: got=%s want=%s", e.Tick, ErrDigestMismatch, got, e.Digest)
			}
		}
	}
	return fm, nil
}
