package negotiation

import (
	"fmt"

	"pommerneg.ai/internal/sim/agreement"
)

type Kind int

const (
	Proposal Kind = iota
	Accept
	Deny
)

// AnyKind matches every kind in FindMessages.
const AnyKind Kind = -1

var kindNames = [...]string{"PROPOSAL", "ACCEPT", "DENY"}

func (k Kind) Valid() bool { return k >= Proposal && k <= Deny }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

// Message is one entry of the negotiation log. Responses carry the proposal's
// type with sender and receiver swapped.
type Message struct {
	ID       int            `json:"id"`
	Round    int            `json:"round"`
	Sender   int            `json:"sender"`
	Receiver int            `json:"receiver"`
	Kind     Kind           `json:"kind"`
	Type     agreement.Type `json:"type"`
}

// Agreement reads a proposal as the agreement it asks for.
func (m Message) Agreement() agreement.Agreement {
	return agreement.New(m.Sender, m.Receiver, m.Type)
}

func (m Message) String() string {
	return fmt.Sprintf("#%d r%d %d->%d %s %s", m.ID, m.Round, m.Sender, m.Receiver, m.Kind, m.Type)
}

// answers reports whether r is an acceptance of proposal p within round.
func answers(p, r Message, round int) bool {
	return p.Kind == Proposal &&
		r.Kind == Accept &&
		p.Sender == r.Receiver &&
		p.Receiver == r.Sender &&
		p.Type == r.Type &&
		p.Round == r.Round &&
		p.Round == round
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid message kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
