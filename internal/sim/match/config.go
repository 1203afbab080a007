package match

import (
	"log"
	"time"

	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/negotiation"
	"pommerneg.ai/internal/sim/tuning"
)

type Config struct {
	// ID defaults to a random UUID.
	ID string

	Engine      engine.Config
	Negotiation negotiation.Config

	// NegotiateEvery runs a round before every tick divisible by it,
	// including tick 0. Zero uses the default; negative disables rounds.
	NegotiateEvery int
	ActionTimeout  time.Duration
	// SnapshotEvery exports a snapshot to the sink every n ticks and at the
	// start of Run. Zero disables snapshots.
	SnapshotEvery int

	Logger *log.Logger
}

func (c *Config) applyDefaults() {
	if c.NegotiateEvery == 0 {
		c.NegotiateEvery = 100
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// ConfigFromTuning maps a tuning file onto a match config. Zero values in the
// file mean "none" where the components read zero as "default".
func ConfigFromTuning(t tuning.Tuning) Config {
	cfg := Config{
		Engine: engine.Config{
			Seed:                 t.Seed,
			Mode:                 engine.GameMode(t.GameMode),
			MaxTicks:             t.MaxTicks,
			VisionRange:          t.VisionRange,
			BombLife:             t.BombLife,
			FlameLife:            t.FlameLife,
			DefaultAmmo:          t.DefaultAmmo,
			DefaultBlastStrength: t.DefaultBlastStrength,
			WoodPowerUpPermille:  t.WoodPowerUpPermille,
		},
		Negotiation: negotiation.Config{
			ProposalLimit:     t.Negotiation.ProposalLimit,
			StayApartDistance: t.Negotiation.StayApartDistance,
			NoBombDistance:    t.Negotiation.NoBombDistance,
			KickDotThreshold:  t.Negotiation.KickDotThreshold,
			DiscardLog:        !t.Negotiation.Record(),
		},
		NegotiateEvery: t.Negotiation.EveryTicks,
		ActionTimeout:  time.Duration(t.ActionTimeoutMs) * time.Millisecond,
	}
	if t.WoodPowerUpPermille == 0 {
		cfg.Engine.WoodPowerUpPermille = -1
	}
	if t.MaxTicks == 0 {
		cfg.Engine.MaxTicks = -1
	}
	if t.Negotiation.EveryTicks == 0 {
		cfg.NegotiateEvery = -1
	}
	return cfg
}
