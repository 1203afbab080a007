package engine

import "pommerneg.ai/internal/sim/board"

type Avatar struct {
	ID            int
	Pos           board.Pos
	Desired       board.Pos
	Ammo          int
	BlastStrength int
	CanKick       bool
	Alive         bool
	VisionRange   int
}

// offBoard is where dead, absent and unseen avatars stand.
var offBoard = board.Pos{Row: -1, Col: -1}

// OnBoard reports a living avatar with a known cell. Redacted copies keep
// avatars they cannot see alive but off the board.
func (a Avatar) OnBoard() bool { return a.Alive && a.Pos.InBounds() }

// Bomb.Owner is -1 for bombs that were part of the starting layout.
type Bomb struct {
	Owner         int
	Pos           board.Pos
	BlastStrength int
	Life          int
	Velocity      board.Direction
}

func (b Bomb) Moving() bool { return b.Velocity != board.None }

// Flame.Reveal is the terrain left behind when the flame expires.
type Flame struct {
	Pos    board.Pos
	Life   int
	Reveal board.Tile
}
