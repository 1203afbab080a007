package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"pommerneg.ai/internal/sim/board"
)

const NumPlayers = board.NumPlayers

// ForwardModel is the authoritative game state and its tick resolution.
// It is not safe for concurrent use; Copy hands out independent values.
type ForwardModel struct {
	cfg Config

	tick    int
	terrain board.Grid
	avatars [NumPlayers]Avatar
	bombs   []Bomb
	flames  []Flame

	rules Rules

	pcg *rand.PCG
	rng *rand.Rand

	// viewer is -1 for an unredacted model.
	viewer int

	ended   bool
	results [NumPlayers]Result
}

// New builds a model from a layout. Agent, bomb and flame tiles become objects
// on top of passage; agents absent from the layout start dead.
func New(cfg Config, layout board.Grid) (*ForwardModel, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &ForwardModel{
		cfg:    cfg,
		rules:  noRules{},
		viewer: -1,
	}
	m.pcg = rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15)
	m.rng = rand.New(m.pcg)
	for i := range m.avatars {
		m.avatars[i] = Avatar{
			ID:            i,
			Pos:           offBoard,
			Desired:       offBoard,
			Ammo:          cfg.DefaultAmmo,
			BlastStrength: cfg.DefaultBlastStrength,
			VisionRange:   cfg.VisionRange,
		}
	}

	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			p := board.Pos{Row: r, Col: c}
			t := layout[r][c]
			switch {
			case !t.Valid():
				return nil, fmt.Errorf("%w: tile code %d at %v", board.ErrLayout, int(t), p)
			case t == board.Fog:
				return nil, fmt.Errorf("%w: fog at %v", board.ErrLayout, p)
			case t.IsAgent():
				a := &m.avatars[t.AgentID()]
				if a.Alive {
					return nil, fmt.Errorf("%w: agent %d placed twice", board.ErrLayout, a.ID)
				}
				a.Pos, a.Desired, a.Alive = p, p, true
			case t == board.Bomb:
				m.bombs = append(m.bombs, Bomb{
					Owner:         -1,
					Pos:           p,
					BlastStrength: cfg.DefaultBlastStrength,
					Life:          cfg.BombLife,
				})
			case t == board.Flames:
				m.flames = append(m.flames, Flame{Pos: p, Life: cfg.FlameLife})
			case t == board.AgentDummy:
			default:
				m.terrain.Set(p, t)
			}
		}
	}
	return m, nil
}

func (m *ForwardModel) Config() Config      { return m.cfg }
func (m *ForwardModel) CurrentTick() int    { return m.tick }
func (m *ForwardModel) Viewer() int         { return m.viewer }
func (m *ForwardModel) Rules() Rules        { return m.rules }
func (m *ForwardModel) Terrain() board.Grid { return m.terrain }

func (m *ForwardModel) Avatar(id int) Avatar { return m.avatars[id] }

func (m *ForwardModel) Avatars() [NumPlayers]Avatar { return m.avatars }

func (m *ForwardModel) Bombs() []Bomb { return slices.Clone(m.bombs) }

func (m *ForwardModel) Flames() []Flame { return slices.Clone(m.flames) }

func (m *ForwardModel) AliveIDs() []int {
	var out []int
	for _, a := range m.avatars {
		if a.Alive {
			out = append(out, a.ID)
		}
	}
	return out
}

// InjectRules replaces the active rule set. A nil value removes all constraints.
func (m *ForwardModel) InjectRules(r Rules) {
	if r == nil {
		r = noRules{}
	}
	m.rules = r
}

// SetCanKick grants or removes the kick ability, as the kick power-up does.
func (m *ForwardModel) SetCanKick(id int, v bool) { m.avatars[id].CanKick = v }

func (m *ForwardModel) bombAt(p board.Pos) int {
	for i := range m.bombs {
		if m.bombs[i].Pos == p {
			return i
		}
	}
	return -1
}

func (m *ForwardModel) flameAt(p board.Pos) int {
	for i := range m.flames {
		if m.flames[i].Pos == p {
			return i
		}
	}
	return -1
}

func (m *ForwardModel) avatarAt(p board.Pos) int {
	for i := range m.avatars {
		if m.avatars[i].OnBoard() && m.avatars[i].Pos == p {
			return i
		}
	}
	return -1
}

// Board renders the grid as seen by viewer. Negative viewer renders this
// model as it stands, which is already redacted for a copied perspective.
func (m *ForwardModel) Board(viewer int) board.Grid {
	g := m.render()
	if viewer < 0 {
		return g
	}
	vis := m.visibility(viewer)
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			if !vis[r][c] {
				g[r][c] = board.Fog
			}
		}
	}
	return g
}

func (m *ForwardModel) render() board.Grid {
	g := m.terrain
	for _, f := range m.flames {
		if g.At(f.Pos) != board.Fog {
			g.Set(f.Pos, board.Flames)
		}
	}
	for _, b := range m.bombs {
		if g.At(b.Pos) != board.Fog {
			g.Set(b.Pos, board.Bomb)
		}
	}
	for _, a := range m.avatars {
		if a.OnBoard() && g.At(a.Pos) != board.Fog {
			g.Set(a.Pos, board.AgentTile(a.ID))
		}
	}
	return g
}
