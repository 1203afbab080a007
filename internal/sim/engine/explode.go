package engine

import "pommerneg.ai/internal/sim/board"

var powerUps = [...]board.Tile{board.ExtraBomb, board.IncrRange, board.Kick}

// explode ages bombs and detonates every bomb that ran out of life or sits in
// fire, including bombs reached by those blasts in the same tick.
func (m *ForwardModel) explode() {
	if len(m.bombs) == 0 {
		return
	}
	var pending []int
	for j := range m.bombs {
		b := &m.bombs[j]
		b.Life--
		if b.Life <= 0 || m.flameAt(b.Pos) >= 0 {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return
	}

	done := make([]bool, len(m.bombs))
	for len(pending) > 0 {
		j := pending[0]
		pending = pending[1:]
		if done[j] {
			continue
		}
		done[j] = true
		b := m.bombs[j]
		m.ignite(b.Pos, board.Passage)
		for _, d := range board.Cardinals {
			step := d.Vector()
			p := b.Pos
			for r := 1; r < b.BlastStrength; r++ {
				p = p.Add(step)
				if !p.InBounds() {
					break
				}
				t := m.terrain.At(p)
				if t == board.Rigid {
					break
				}
				if t == board.Wood {
					m.terrain.Set(p, board.Passage)
					m.ignite(p, m.rollPowerUp())
					break
				}
				if t.IsPowerUp() {
					m.terrain.Set(p, board.Passage)
				}
				m.ignite(p, board.Passage)
				if k := m.bombAt(p); k >= 0 && !done[k] {
					pending = append(pending, k)
				}
			}
		}
	}

	kept := m.bombs[:0]
	for j, b := range m.bombs {
		if !done[j] {
			kept = append(kept, b)
		}
	}
	m.bombs = kept
}

func (m *ForwardModel) ignite(p board.Pos, reveal board.Tile) {
	if i := m.flameAt(p); i >= 0 {
		m.flames[i].Life = m.cfg.FlameLife
		if reveal != board.Passage {
			m.flames[i].Reveal = reveal
		}
		return
	}
	m.flames = append(m.flames, Flame{Pos: p, Life: m.cfg.FlameLife, Reveal: reveal})
}

func (m *ForwardModel) rollPowerUp() board.Tile {
	if m.cfg.WoodPowerUpPermille <= 0 {
		return board.Passage
	}
	if m.rng.IntN(1000) >= m.cfg.WoodPowerUpPermille {
		return board.Passage
	}
	return powerUps[m.rng.IntN(len(powerUps))]
}

func (m *ForwardModel) ageFlames() {
	kept := m.flames[:0]
	for _, f := range m.flames {
		f.Life--
		if f.Life > 0 {
			kept = append(kept, f)
			continue
		}
		if f.Reveal != board.Passage && m.terrain.At(f.Pos) != board.Fog {
			m.terrain.Set(f.Pos, f.Reveal)
		}
	}
	m.flames = kept
}
