package engine

import (
	"fmt"

	"pommerneg.ai/internal/sim/board"
)

type Action int

const (
	Stop Action = iota
	Up
	Down
	Left
	Right
	PlaceBomb
)

var Actions = []Action{Stop, Up, Down, Left, Right, PlaceBomb}

var actionNames = [...]string{"STOP", "UP", "DOWN", "LEFT", "RIGHT", "BOMB"}

func (a Action) Valid() bool { return a >= Stop && a <= PlaceBomb }

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

func (a Action) IsMove() bool { return a >= Up && a <= Right }

// Direction is None for STOP and BOMB.
func (a Action) Direction() board.Direction {
	switch a {
	case Up:
		return board.Up
	case Down:
		return board.Down
	case Left:
		return board.Left
	case Right:
		return board.Right
	default:
		return board.None
	}
}

func ParseAction(s string) (Action, error) {
	for i, n := range actionNames {
		if n == s {
			return Action(i), nil
		}
	}
	return Stop, fmt.Errorf("unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
