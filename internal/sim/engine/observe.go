package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
)

type focus struct {
	pos   board.Pos
	reach int
}

// foci are the viewer itself plus every living agent sharing vision with it.
func (m *ForwardModel) foci(viewer int) []focus {
	me := m.avatars[viewer]
	out := []focus{{pos: me.Pos, reach: me.VisionRange}}
	for _, p := range agreement.Partners(m.rules.Agreements(), viewer, agreement.ShareVision) {
		if p < 0 || p >= NumPlayers {
			continue
		}
		if a := m.avatars[p]; a.Alive {
			out = append(out, focus{pos: a.Pos, reach: a.VisionRange})
		}
	}
	return out
}

func (m *ForwardModel) visibility(viewer int) [board.Size][board.Size]bool {
	var vis [board.Size][board.Size]bool
	for _, f := range m.foci(viewer) {
		if !f.pos.InBounds() {
			continue
		}
		for r := 0; r < board.Size; r++ {
			for c := 0; c < board.Size; c++ {
				if f.pos.Chebyshev(board.Pos{Row: r, Col: c}) <= f.reach {
					vis[r][c] = true
				}
			}
		}
	}
	return vis
}

// Copy returns an independent model. With viewer >= 0 everything outside the
// viewer's vision becomes fog, unseen bombs and flames are dropped and only
// the viewer's agreements are kept. Negative viewer copies without redaction.
func (m *ForwardModel) Copy(viewer int) *ForwardModel {
	if viewer >= NumPlayers {
		panic(fmt.Sprintf("engine: viewer %d out of range", viewer))
	}
	c := &ForwardModel{
		cfg:     m.cfg,
		tick:    m.tick,
		terrain: m.terrain,
		avatars: m.avatars,
		bombs:   slices.Clone(m.bombs),
		flames:  slices.Clone(m.flames),
		viewer:  m.viewer,
		ended:   m.ended,
		results: m.results,
	}
	pcg := *m.pcg
	c.pcg = &pcg
	c.rng = rand.New(c.pcg)

	if viewer < 0 {
		c.rules = m.rules.Reduce(-1)
		return c
	}

	vis := m.visibility(viewer)
	seen := func(p board.Pos) bool { return vis[p.Row][p.Col] }
	for r := 0; r < board.Size; r++ {
		for cc := 0; cc < board.Size; cc++ {
			if !vis[r][cc] {
				c.terrain[r][cc] = board.Fog
			}
		}
	}
	c.bombs = slices.DeleteFunc(c.bombs, func(b Bomb) bool { return !seen(b.Pos) })
	c.flames = slices.DeleteFunc(c.flames, func(f Flame) bool { return !seen(f.Pos) })
	for i := range c.flames {
		// What lies under burning wood is not visible yet.
		c.flames[i].Reveal = board.Passage
	}
	for i := range c.avatars {
		a := &c.avatars[i]
		if i != viewer && a.Pos.InBounds() && !seen(a.Pos) {
			a.Pos = offBoard
			a.Desired = a.Pos
		}
	}
	c.rules = m.rules.Reduce(viewer)
	c.viewer = viewer

	// The live random stream would leak hidden outcomes.
	c.pcg = rand.NewPCG(uint64(m.cfg.Seed)^uint64(m.tick), uint64(viewer)+1)
	c.rng = rand.New(c.pcg)
	return c
}
