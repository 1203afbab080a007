package negotiation

import (
	"errors"
	"fmt"
	"slices"

	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
)

var (
	ErrProposalLimit   = errors.New("proposal limit reached")
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrUnknownType     = errors.New("unknown agreement type")
	ErrUnknownProposal = errors.New("unknown proposal")
	ErrKind            = errors.New("invalid response kind")
)

// MessageManager stores every message of a match in one append-only log. The
// current round is the suffix of the log stamped with the current round
// number. Without recording, the log is cut back at every round end.
type MessageManager struct {
	limit  int
	record bool

	log    []Message
	nextID int
	round  int
	sent   [board.NumPlayers]int
}

// NewMessageManager allows limit proposals per agent and round; a negative
// limit lifts the cap.
func NewMessageManager(limit int, record bool) *MessageManager {
	return &MessageManager{limit: limit, record: record, round: 1}
}

func (m *MessageManager) Round() int { return m.round }

// Messages returns the retained log, oldest first.
func (m *MessageManager) Messages() []Message { return slices.Clone(m.log) }

func validAgent(id int) bool { return id >= 0 && id < board.NumPlayers }

func (m *MessageManager) append(sender, receiver int, kind Kind, t agreement.Type) Message {
	msg := Message{
		ID:       m.nextID,
		Round:    m.round,
		Sender:   sender,
		Receiver: receiver,
		Kind:     kind,
		Type:     t,
	}
	m.nextID++
	m.log = append(m.log, msg)
	return msg
}

// SendProposal records a PROPOSAL from sender to receiver. Proposing to
// oneself is a caller bug and panics.
func (m *MessageManager) SendProposal(sender, receiver int, t agreement.Type) (Message, error) {
	if sender == receiver {
		panic(fmt.Sprintf("negotiation: agent %d proposed %s to itself", sender, t))
	}
	if !validAgent(sender) || !validAgent(receiver) {
		return Message{}, fmt.Errorf("%w: proposal %d->%d", ErrUnknownAgent, sender, receiver)
	}
	if !t.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	if m.limit >= 0 && m.sent[sender] >= m.limit {
		return Message{}, fmt.Errorf("%w: agent %d sent %d", ErrProposalLimit, sender, m.sent[sender])
	}
	m.sent[sender]++
	return m.append(sender, receiver, Proposal, t), nil
}

// SendResponse records an ACCEPT or DENY. sender is the agent answering,
// receiver the original proposer.
func (m *MessageManager) SendResponse(sender, receiver int, t agreement.Type, kind Kind) (Message, error) {
	if sender == receiver {
		panic(fmt.Sprintf("negotiation: agent %d answered itself", sender))
	}
	if kind != Accept && kind != Deny {
		return Message{}, fmt.Errorf("%w: %s", ErrKind, kind)
	}
	if !validAgent(sender) || !validAgent(receiver) {
		return Message{}, fmt.Errorf("%w: response %d->%d", ErrUnknownAgent, sender, receiver)
	}
	if !t.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return m.append(sender, receiver, kind, t), nil
}

// Respond answers the current-round proposal with the given id.
func (m *MessageManager) Respond(proposalID int, kind Kind) (Message, error) {
	for _, p := range m.current() {
		if p.ID == proposalID && p.Kind == Proposal {
			return m.SendResponse(p.Receiver, p.Sender, p.Type, kind)
		}
	}
	return Message{}, fmt.Errorf("%w: id %d in round %d", ErrUnknownProposal, proposalID, m.round)
}

func (m *MessageManager) current() []Message {
	i := len(m.log)
	for i > 0 && m.log[i-1].Round == m.round {
		i--
	}
	return m.log[i:]
}

func (m *MessageManager) proposals() []Message {
	var out []Message
	for _, msg := range m.current() {
		if msg.Kind == Proposal {
			out = append(out, msg)
		}
	}
	return out
}

// FirstPhaseEnd returns the proposals sent so far this round.
func (m *MessageManager) FirstPhaseEnd() []Message { return m.proposals() }

// ProposalsTo lists this round's proposals addressed to player.
func (m *MessageManager) ProposalsTo(player int) []Message {
	var out []Message
	for _, p := range m.proposals() {
		if p.Receiver == player {
			out = append(out, p)
		}
	}
	return out
}

// Agreements lists the agreements the current round would finalize now, one
// per distinct pair and type, in proposal order.
func (m *MessageManager) Agreements() []agreement.Agreement {
	cur := m.current()
	var out []agreement.Agreement
	for _, p := range cur {
		if p.Kind != Proposal {
			continue
		}
		for _, r := range cur {
			if !answers(p, r, m.round) {
				continue
			}
			if g := p.Agreement(); !slices.Contains(out, g) {
				out = append(out, g)
			}
			break
		}
	}
	return out
}

func (m *MessageManager) PlayerAgreements(player int) []agreement.Agreement {
	return agreement.Involving(m.Agreements(), player)
}

// SecondPhaseEnd finalizes the round and opens the next one.
func (m *MessageManager) SecondPhaseEnd() []agreement.Agreement {
	out := m.Agreements()
	m.round++
	m.sent = [board.NumPlayers]int{}
	if !m.record {
		m.log = m.log[:0]
	}
	return out
}

// FindMessages filters the retained log. -1 matches any sender, receiver or
// round; AnyKind and agreement.Any match any kind and type.
func (m *MessageManager) FindMessages(sender, receiver, round int, kind Kind, t agreement.Type) []Message {
	var out []Message
	for _, msg := range m.log {
		switch {
		case sender != -1 && msg.Sender != sender:
		case receiver != -1 && msg.Receiver != receiver:
		case round != -1 && msg.Round != round:
		case kind != AnyKind && msg.Kind != kind:
		case t != agreement.Any && msg.Type != t:
		default:
			out = append(out, msg)
		}
	}
	return out
}
