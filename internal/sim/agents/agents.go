// Package agents holds simple in-process players: idle, scripted and random.
package agents

import (
	"context"
	"math/rand/v2"

	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/negotiation"
)

// DoNothing stands still and never negotiates.
type DoNothing struct{}

func (DoNothing) Act(context.Context, engine.GameState) (engine.Action, error) {
	return engine.Stop, nil
}

type Offer struct {
	To   int
	Type agreement.Type
}

// Policy decides how to answer a proposal.
type Policy func(p negotiation.Message) negotiation.Kind

func AcceptAll(negotiation.Message) negotiation.Kind { return negotiation.Accept }
func DenyAll(negotiation.Message) negotiation.Kind   { return negotiation.Deny }

// AcceptTypes accepts proposals of the listed types and denies the rest.
func AcceptTypes(types ...agreement.Type) Policy {
	return func(p negotiation.Message) negotiation.Kind {
		for _, t := range types {
			if p.Type == t {
				return negotiation.Accept
			}
		}
		return negotiation.Deny
	}
}

// Scripted plays a fixed action list, then STOP. Every negotiation round it
// sends Offers and answers with Reply, denying when Reply is nil.
type Scripted struct {
	Actions []engine.Action
	Offers  []Offer
	Reply   Policy

	next int
}

func (s *Scripted) Act(_ context.Context, _ engine.GameState) (engine.Action, error) {
	if s.next >= len(s.Actions) {
		return engine.Stop, nil
	}
	a := s.Actions[s.next]
	s.next++
	return a, nil
}

func (s *Scripted) MakeProposals(idx int, _ engine.GameState, m *negotiation.MessageManager) {
	for _, o := range s.Offers {
		if o.To == idx {
			continue
		}
		if _, err := m.SendProposal(idx, o.To, o.Type); err != nil {
			return
		}
	}
}

func (s *Scripted) ReviewProposals(idx int, _ engine.GameState, m *negotiation.MessageManager) {
	reply := s.Reply
	if reply == nil {
		reply = DenyAll
	}
	for _, p := range m.ProposalsTo(idx) {
		_, _ = m.Respond(p.ID, reply(p))
	}
}

// Random picks uniformly among all actions, proposes random agreements to
// random living agents and accepts about half of what it receives.
type Random struct {
	rng       *rand.Rand
	proposals int
}

// NewRandom sends up to proposals offers per round.
func NewRandom(seed uint64, proposals int) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)), proposals: proposals}
}

func (r *Random) Act(_ context.Context, _ engine.GameState) (engine.Action, error) {
	return engine.Actions[r.rng.IntN(len(engine.Actions))], nil
}

func (r *Random) MakeProposals(idx int, gs engine.GameState, m *negotiation.MessageManager) {
	var others []int
	for _, id := range gs.AliveAgentIDs() {
		if id != idx {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return
	}
	for i := 0; i < r.proposals; i++ {
		to := others[r.rng.IntN(len(others))]
		t := agreement.All[r.rng.IntN(len(agreement.All))]
		if _, err := m.SendProposal(idx, to, t); err != nil {
			return
		}
	}
}

func (r *Random) ReviewProposals(idx int, _ engine.GameState, m *negotiation.MessageManager) {
	for _, p := range m.ProposalsTo(idx) {
		kind := negotiation.Deny
		if r.rng.IntN(2) == 0 {
			kind = negotiation.Accept
		}
		_, _ = m.Respond(p.ID, kind)
	}
}
