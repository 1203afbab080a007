// Package agreement defines the binding pairwise commitments agents negotiate.
package agreement

import (
	"fmt"
	"sort"
)

type Type int

const (
	Alliance Type = iota
	ShareVision
	NoBombPlacing
	NoBombKicking
	StayApart
)

// Any matches every type in message queries.
const Any Type = -1

var All = []Type{Alliance, ShareVision, NoBombPlacing, NoBombKicking, StayApart}

var typeNames = map[Type]string{
	Alliance:      "ALLIANCE",
	ShareVision:   "SHARE_VISION",
	NoBombPlacing: "NO_BOMB_PLACING",
	NoBombKicking: "NO_BOMB_KICKING",
	StayApart:     "STAY_APART",
}

func (t Type) Valid() bool { return t >= Alliance && t <= StayApart }

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func ParseType(s string) (Type, error) {
	for t, n := range typeNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown agreement type %q", s)
}

// Agreement binds an unordered pair of agents. A is always the lower id.
type Agreement struct {
	A    int  `json:"a"`
	B    int  `json:"b"`
	Type Type `json:"type"`
}

func New(a, b int, t Type) Agreement {
	if a > b {
		a, b = b, a
	}
	return Agreement{A: a, B: b, Type: t}
}

func (g Agreement) Involves(id int) bool { return g.A == id || g.B == id }

// Partner returns the other party, or -1 when id is not bound by g.
func (g Agreement) Partner(id int) int {
	switch id {
	case g.A:
		return g.B
	case g.B:
		return g.A
	}
	return -1
}

func (g Agreement) String() string {
	return fmt.Sprintf("%s(%d,%d)", g.Type, g.A, g.B)
}

// Involving returns the agreements binding player, in input order. A negative
// player returns a copy of the whole list.
func Involving(list []Agreement, player int) []Agreement {
	out := make([]Agreement, 0, len(list))
	for _, g := range list {
		if player < 0 || g.Involves(player) {
			out = append(out, g)
		}
	}
	return out
}

// Partners lists the agents bound to player by an agreement of type t.
func Partners(list []Agreement, player int, t Type) []int {
	var out []int
	for _, g := range list {
		if g.Type == t && g.Involves(player) {
			out = append(out, g.Partner(player))
		}
	}
	return out
}

func Sorted(list []Agreement) []Agreement {
	out := append([]Agreement(nil), list...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		if out[i].B != out[j].B {
			return out[i].B < out[j].B
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid agreement type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
