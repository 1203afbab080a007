// Package negotiation runs the two-phase proposal rounds between agents and
// enforces the agreements they produce.
package negotiation

import (
	"errors"
	"fmt"
	"slices"

	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/engine"
)

var ErrPhase = errors.New("negotiation phase out of order")

// Negotiator is implemented by agents that take part in negotiation rounds.
// Both calls act on the shared manager on behalf of idx.
type Negotiator interface {
	MakeProposals(idx int, gs engine.GameState, m *MessageManager)
	ReviewProposals(idx int, gs engine.GameState, m *MessageManager)
}

type Config struct {
	// ProposalLimit is per agent and round. Zero uses the default; negative
	// lifts the cap.
	ProposalLimit     int
	StayApartDistance int
	NoBombDistance    int
	KickDotThreshold  float64
	// DiscardLog keeps only the current round in the message log.
	DiscardLog bool
}

func (c *Config) applyDefaults() {
	if c.ProposalLimit == 0 {
		c.ProposalLimit = 3
	}
	if c.StayApartDistance <= 0 {
		c.StayApartDistance = 3
	}
	if c.NoBombDistance <= 0 {
		c.NoBombDistance = 3
	}
	if c.KickDotThreshold <= 0 {
		c.KickDotThreshold = 0.9
	}
}

type Phase int

const (
	Idle Phase = iota
	Proposing
	Reviewing
)

func (p Phase) String() string {
	switch p {
	case Proposing:
		return "proposing"
	case Reviewing:
		return "reviewing"
	default:
		return "idle"
	}
}

// Negotiation owns one match's message log and its current agreement set. It
// doubles as the engine.Rules enforcing that set.
type Negotiation struct {
	cfg         Config
	final       []agreement.Agreement
	manager     *MessageManager
	negotiators [board.NumPlayers]Negotiator
	phase       Phase
}

// NewForPlayers starts with no agreements. Nil entries sit out negotiation.
func NewForPlayers(cfg Config, negotiators [board.NumPlayers]Negotiator) *Negotiation {
	return Resume(cfg, negotiators, nil, 1)
}

// FromAgreements builds a negotiation that only enforces list.
func FromAgreements(cfg Config, list []agreement.Agreement) *Negotiation {
	return Resume(cfg, [board.NumPlayers]Negotiator{}, list, 1)
}

// Resume picks up at round with final already in force. Rounds below 1 start
// at 1.
func Resume(cfg Config, negotiators [board.NumPlayers]Negotiator, final []agreement.Agreement, round int) *Negotiation {
	cfg.applyDefaults()
	m := NewMessageManager(cfg.ProposalLimit, !cfg.DiscardLog)
	if round > 1 {
		m.round = round
	}
	return &Negotiation{
		cfg:         cfg,
		final:       slices.Clone(final),
		manager:     m,
		negotiators: negotiators,
	}
}

func (n *Negotiation) Config() Config           { return n.cfg }
func (n *Negotiation) Manager() *MessageManager { return n.manager }
func (n *Negotiation) Phase() Phase             { return n.phase }
func (n *Negotiation) Round() int               { return n.manager.Round() }

func (n *Negotiation) expect(p Phase) error {
	if n.phase != p {
		return fmt.Errorf("%w: in %s, want %s", ErrPhase, n.phase, p)
	}
	return nil
}

// StartPhaseOne asks every living negotiator for proposals.
func (n *Negotiation) StartPhaseOne(fm *engine.ForwardModel) error {
	if err := n.expect(Idle); err != nil {
		return err
	}
	n.phase = Proposing
	for _, i := range fm.AliveIDs() {
		if ng := n.negotiators[i]; ng != nil {
			ng.MakeProposals(i, engine.NewGameState(fm, i), n.manager)
		}
	}
	return nil
}

// StartPhaseTwo closes proposals and asks every living negotiator to answer
// the ones addressed to it. It returns the closed proposal set.
func (n *Negotiation) StartPhaseTwo(fm *engine.ForwardModel) ([]Message, error) {
	if err := n.expect(Proposing); err != nil {
		return nil, err
	}
	n.phase = Reviewing
	proposals := n.manager.FirstPhaseEnd()
	for _, i := range fm.AliveIDs() {
		if ng := n.negotiators[i]; ng != nil {
			ng.ReviewProposals(i, engine.NewGameState(fm, i), n.manager)
		}
	}
	return proposals, nil
}

// EndPhaseTwo replaces the agreement set with this round's accepted proposals.
func (n *Negotiation) EndPhaseTwo() ([]agreement.Agreement, error) {
	if err := n.expect(Reviewing); err != nil {
		return nil, err
	}
	n.phase = Idle
	n.final = n.manager.SecondPhaseEnd()
	return n.FinalAgreements(), nil
}

var _ engine.Rules = (*Negotiation)(nil)

func (n *Negotiation) FinalAgreements() []agreement.Agreement { return slices.Clone(n.final) }

// Agreements is FinalAgreements for the engine.
func (n *Negotiation) Agreements() []agreement.Agreement { return slices.Clone(n.final) }

// Partners returns the agents bound to player by type t, ascending.
func (n *Negotiation) Partners(player int, t agreement.Type) []int {
	out := agreement.Partners(n.final, player, t)
	slices.Sort(out)
	return slices.Compact(out)
}

// Reduce returns rules carrying only player's agreements. A negative player
// keeps them all. The result shares nothing with n.
func (n *Negotiation) Reduce(player int) engine.Rules {
	return FromAgreements(n.cfg, agreement.Involving(n.final, player))
}
