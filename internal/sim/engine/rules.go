package engine

import (
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
)

// Rules constrains which actions are legal. The negotiation package provides
// the agreement-backed implementation.
type Rules interface {
	Agreements() []agreement.Agreement
	// IsPermitted reports whether agent may take action a. agent.Desired is
	// already set; all holds every avatar with its intended position.
	IsPermitted(a Action, agent Avatar, all []Avatar) bool
	IsKickPermitted(agent Avatar, dir board.Direction, all []Avatar) bool
	// Reduce keeps only what player may know. Negative player keeps everything.
	Reduce(player int) Rules
}

type noRules struct{}

func (noRules) Agreements() []agreement.Agreement                      { return nil }
func (noRules) IsPermitted(Action, Avatar, []Avatar) bool              { return true }
func (noRules) IsKickPermitted(Avatar, board.Direction, []Avatar) bool { return true }
func (noRules) Reduce(int) Rules                                       { return noRules{} }
