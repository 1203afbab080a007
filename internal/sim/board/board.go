package board

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Size       = 11
	NumPlayers = 4
)

var ErrLayout = errors.New("invalid layout")

type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) Add(q Pos) Pos { return Pos{Row: p.Row + q.Row, Col: p.Col + q.Col} }
func (p Pos) Sub(q Pos) Pos { return Pos{Row: p.Row - q.Row, Col: p.Col - q.Col} }

func (p Pos) InBounds() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

func (p Pos) Manhattan(q Pos) int {
	return abs(p.Row-q.Row) + abs(p.Col-q.Col)
}

func (p Pos) Chebyshev(q Pos) int {
	dr, dc := abs(p.Row-q.Row), abs(p.Col-q.Col)
	if dr > dc {
		return dr
	}
	return dc
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Direction int

const (
	None Direction = iota
	Up
	Down
	Left
	Right
)

var Cardinals = [4]Direction{Up, Down, Left, Right}

func (d Direction) Vector() Pos {
	switch d {
	case Up:
		return Pos{Row: -1}
	case Down:
		return Pos{Row: 1}
	case Left:
		return Pos{Col: -1}
	case Right:
		return Pos{Col: 1}
	default:
		return Pos{}
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return "NONE"
	}
}

// Tile values double as the integer codes of the layout format.
type Tile int

const (
	Passage Tile = iota
	Rigid
	Wood
	Bomb
	Flames
	Fog
	ExtraBomb
	IncrRange
	Kick
	AgentDummy
	Agent0
	Agent1
	Agent2
	Agent3
)

func AgentTile(id int) Tile { return Agent0 + Tile(id) }

func (t Tile) Valid() bool     { return t >= Passage && t <= Agent3 }
func (t Tile) IsAgent() bool   { return t >= Agent0 && t <= Agent3 }
func (t Tile) AgentID() int    { return int(t - Agent0) }
func (t Tile) IsWall() bool    { return t == Rigid || t == Wood }
func (t Tile) IsPowerUp() bool { return t == ExtraBomb || t == IncrRange || t == Kick }

var tileGlyphs = [...]byte{'.', '#', '+', 'b', '*', '?', 'a', 'r', 'k', 'x', '0', '1', '2', '3'}

func (t Tile) Glyph() byte {
	if !t.Valid() {
		return '!'
	}
	return tileGlyphs[t]
}

// Grid is a fixed-size value; assigning it copies every cell.
type Grid [Size][Size]Tile

func (g *Grid) At(p Pos) Tile     { return g[p.Row][p.Col] }
func (g *Grid) Set(p Pos, t Tile) { g[p.Row][p.Col] = t }

func (g *Grid) Find(t Tile) (Pos, bool) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g[r][c] == t {
				return Pos{Row: r, Col: c}, true
			}
		}
	}
	return Pos{}, false
}

func (g Grid) Ints() [][]int {
	out := make([][]int, Size)
	for r := range out {
		row := make([]int, Size)
		for c := range row {
			row[c] = int(g[r][c])
		}
		out[r] = row
	}
	return out
}

func (g Grid) String() string {
	var b strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			b.WriteByte(g[r][c].Glyph())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseLayout validates an 11x11 grid of tile codes.
func ParseLayout(rows [][]int) (Grid, error) {
	var g Grid
	if len(rows) != Size {
		return g, fmt.Errorf("%w: %d rows, want %d", ErrLayout, len(rows), Size)
	}
	seen := map[Tile]bool{}
	for r, row := range rows {
		if len(row) != Size {
			return g, fmt.Errorf("%w: row %d has %d cells, want %d", ErrLayout, r, len(row), Size)
		}
		for c, v := range row {
			t := Tile(v)
			if !t.Valid() {
				return g, fmt.Errorf("%w: tile code %d at (%d,%d)", ErrLayout, v, r, c)
			}
			if t == Fog {
				return g, fmt.Errorf("%w: fog at (%d,%d)", ErrLayout, r, c)
			}
			if t.IsAgent() {
				if seen[t] {
					return g, fmt.Errorf("%w: agent %d placed twice", ErrLayout, t.AgentID())
				}
				seen[t] = true
			}
			g[r][c] = t
		}
	}
	return g, nil
}

// ParseText reads one string per row using the Glyph characters.
func ParseText(rows []string) (Grid, error) {
	ints := make([][]int, len(rows))
	for r, row := range rows {
		ints[r] = make([]int, 0, len(row))
		for c := 0; c < len(row); c++ {
			t, ok := glyphTile(row[c])
			if !ok {
				return Grid{}, fmt.Errorf("%w: glyph %q at (%d,%d)", ErrLayout, row[c], r, c)
			}
			ints[r] = append(ints[r], int(t))
		}
	}
	return ParseLayout(ints)
}

func glyphTile(b byte) (Tile, bool) {
	for t, g := range tileGlyphs {
		if g == b {
			return Tile(t), true
		}
	}
	return 0, false
}

// MustParseLayout is ParseLayout for fixtures.
func MustParseLayout(rows [][]int) Grid {
	g, err := ParseLayout(rows)
	if err != nil {
		panic(err)
	}
	return g
}

func MustParseText(rows ...string) Grid {
	g, err := ParseText(rows)
	if err != nil {
		panic(err)
	}
	return g
}
