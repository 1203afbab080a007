package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pommerneg.ai/internal/protocol"
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/match"
	"pommerneg.ai/internal/sim/negotiation"
)

// ErrDetached is returned by Act while no connection holds the seat.
var ErrDetached = errors.New("seat has no connection")

var (
	_ match.Player           = (*RemoteAgent)(nil)
	_ negotiation.Negotiator = (*RemoteAgent)(nil)
)

// RemoteAgent plays one seat on behalf of a websocket client. Connections
// come and go; the agent outlives them and plays STOP while detached.
type RemoteAgent struct {
	seat    int
	limit   int
	timeout time.Duration
	log     *log.Logger

	mu         sync.Mutex
	out        chan []byte
	name       string
	negotiates bool

	acts      chan protocol.ActMsg
	proposals chan protocol.ProposalsMsg
	responses chan protocol.ResponsesMsg
}

func newRemoteAgent(seat, limit int, timeout time.Duration, logger *log.Logger) *RemoteAgent {
	return &RemoteAgent{
		seat:      seat,
		limit:     limit,
		timeout:   timeout,
		log:       logger,
		acts:      make(chan protocol.ActMsg, 4),
		proposals: make(chan protocol.ProposalsMsg, 2),
		responses: make(chan protocol.ResponsesMsg, 2),
	}
}

func (a *RemoteAgent) Seat() int { return a.seat }

func (a *RemoteAgent) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

func (a *RemoteAgent) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out != nil
}

func (a *RemoteAgent) attach(out chan []byte, hello protocol.HelloMsg) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out != nil {
		return false
	}
	a.out = out
	a.name = hello.AgentName
	a.negotiates = hello.Negotiates
	return true
}

func (a *RemoteAgent) detach(out chan []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out == out {
		a.out = nil
	}
}

// send queues v for the attached connection. A full queue drops the message.
func (a *RemoteAgent) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out == nil {
		return ErrDetached
	}
	select {
	case a.out <- b:
		return nil
	default:
		return fmt.Errorf("seat %d: outbound queue full", a.seat)
	}
}

func (a *RemoteAgent) negotiating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out != nil && a.negotiates
}

// Act sends the observation and waits for the ACT stamped with its tick.
// Stale ACTs from earlier ticks are discarded.
func (a *RemoteAgent) Act(ctx context.Context, gs engine.GameState) (engine.Action, error) {
	tick := gs.Tick()
	if err := a.send(BuildObs(gs)); err != nil {
		return engine.Stop, err
	}
	for {
		select {
		case <-ctx.Done():
			return engine.Stop, ctx.Err()
		case act := <-a.acts:
			if act.Tick != tick {
				continue
			}
			return engine.ParseAction(act.Action)
		}
	}
}

// MakeProposals forwards the client's offers to the manager. Offers to
// itself or of unknown type are skipped; sending stops at the round limit.
func (a *RemoteAgent) MakeProposals(idx int, gs engine.GameState, m *negotiation.MessageManager) {
	if !a.negotiating() {
		return
	}
	round := m.Round()
	err := a.send(protocol.NegotiateMsg{
		Type:            protocol.TypeNegotiate,
		ProtocolVersion: protocol.Version,
		Round:           round,
		Phase:           protocol.PhasePropose,
		Limit:           a.limit,
		Obs:             BuildObs(gs),
	})
	if err != nil {
		a.log.Printf("[ws] seat %d round %d: %v", idx, round, err)
		return
	}
	msg, ok := waitRound(a.proposals, round, a.timeout, func(p protocol.ProposalsMsg) int { return p.Round })
	if !ok {
		a.log.Printf("[ws] seat %d round %d: no proposals before deadline", idx, round)
		return
	}
	for _, o := range msg.Proposals {
		if o.To == idx {
			continue
		}
		t, err := agreement.ParseType(o.Agreement)
		if err != nil {
			continue
		}
		if _, err := m.SendProposal(idx, o.To, t); err != nil {
			if errors.Is(err, negotiation.ErrProposalLimit) {
				return
			}
			a.log.Printf("[ws] seat %d round %d: proposal: %v", idx, round, err)
		}
	}
}

// ReviewProposals asks the client to answer the proposals addressed to it.
// Every proposal gets exactly one answer; unanswered ones are denied.
func (a *RemoteAgent) ReviewProposals(idx int, gs engine.GameState, m *negotiation.MessageManager) {
	pending := m.ProposalsTo(idx)
	if len(pending) == 0 {
		return
	}
	answers := make(map[int]negotiation.Kind, len(pending))
	if a.negotiating() {
		round := m.Round()
		req := protocol.NegotiateMsg{
			Type:            protocol.TypeNegotiate,
			ProtocolVersion: protocol.Version,
			Round:           round,
			Phase:           protocol.PhaseReview,
			Limit:           a.limit,
			Obs:             BuildObs(gs),
		}
		for _, p := range pending {
			req.Proposals = append(req.Proposals, protocol.ProposalObs{ID: p.ID, From: p.Sender, Agreement: p.Type.String()})
		}
		if err := a.send(req); err != nil {
			a.log.Printf("[ws] seat %d round %d: %v", idx, round, err)
		} else if msg, ok := waitRound(a.responses, round, a.timeout, func(r protocol.ResponsesMsg) int { return r.Round }); ok {
			for _, r := range msg.Responses {
				if _, seen := answers[r.ProposalID]; seen {
					continue
				}
				if k, err := negotiation.ParseKind(r.Answer); err == nil {
					answers[r.ProposalID] = k
				}
			}
		}
	}
	for _, p := range pending {
		kind, ok := answers[p.ID]
		if !ok {
			kind = negotiation.Deny
		}
		if _, err := m.Respond(p.ID, kind); err != nil {
			a.log.Printf("[ws] seat %d: respond to #%d: %v", idx, p.ID, err)
		}
	}
}

// waitRound returns the first message of round from ch, dropping older ones.
func waitRound[T any](ch <-chan T, round int, timeout time.Duration, roundOf func(T) int) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			var zero T
			return zero, false
		case msg := <-ch:
			if roundOf(msg) == round {
				return msg, true
			}
		}
	}
}

// deliver routes a validated inbound message. Full queues drop it.
func (a *RemoteAgent) deliver(typ string, raw []byte) error {
	switch typ {
	case protocol.TypeAct:
		msg, err := protocol.Decode[protocol.ActMsg](raw, typ)
		if err != nil {
			return err
		}
		select {
		case a.acts <- msg:
		default:
		}
	case protocol.TypeProposals:
		msg, err := protocol.Decode[protocol.ProposalsMsg](raw, typ)
		if err != nil {
			return err
		}
		select {
		case a.proposals <- msg:
		default:
		}
	case protocol.TypeResponses:
		msg, err := protocol.Decode[protocol.ResponsesMsg](raw, typ)
		if err != nil {
			return err
		}
		select {
		case a.responses <- msg:
		default:
		}
	default:
		return fmt.Errorf("%w: unexpected %s after handshake", protocol.ErrSchema, typ)
	}
	return nil
}
