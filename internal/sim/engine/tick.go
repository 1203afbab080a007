package engine

import (
	"pommerneg.ai/internal/sim/board"
)

// Tick advances the model by one step given one action per agent.
// Actions of dead agents are ignored. Ticking an ended model is a no-op.
func (m *ForwardModel) Tick(actions [NumPlayers]Action) {
	if m.ended {
		return
	}
	m.tick++

	for i := range m.avatars {
		a := &m.avatars[i]
		if !a.OnBoard() || !actions[i].Valid() {
			actions[i] = Stop
		}
		a.Desired = a.Pos.Add(actions[i].Direction().Vector())
	}

	// Rules judge every agent against the same set of intentions.
	intents := m.avatars
	for i := range m.avatars {
		a := &m.avatars[i]
		if !a.OnBoard() {
			continue
		}
		if !m.rules.IsPermitted(actions[i], *a, intents[:]) {
			actions[i] = Stop
			a.Desired = a.Pos
		}
	}

	m.placeBombs(actions)
	m.resolveMovement(actions)
	m.pickUpPowerUps()
	m.explode()
	m.ageFlames()
	m.burnAvatars()
	m.checkTerminal()
}

func (m *ForwardModel) placeBombs(actions [NumPlayers]Action) {
	for i := range m.avatars {
		a := &m.avatars[i]
		if !a.OnBoard() || actions[i] != PlaceBomb || a.Ammo <= 0 {
			continue
		}
		if m.bombAt(a.Pos) >= 0 {
			continue
		}
		m.bombs = append(m.bombs, Bomb{
			Owner:         a.ID,
			Pos:           a.Pos,
			BlastStrength: a.BlastStrength,
			Life:          m.cfg.BombLife,
		})
		a.Ammo--
	}
}

// blocksAgent reports terrain an avatar cannot enter. Fog counts as open so
// redacted copies stay playable.
func (m *ForwardModel) blocksAgent(p board.Pos) bool {
	return !p.InBounds() || m.terrain.At(p).IsWall()
}

func (m *ForwardModel) blocksBomb(p board.Pos) bool {
	if !p.InBounds() {
		return true
	}
	t := m.terrain.At(p)
	return t.IsWall() || t.IsPowerUp()
}

func (m *ForwardModel) resolveMovement(actions [NumPlayers]Action) {
	for i := range m.avatars {
		a := &m.avatars[i]
		if a.OnBoard() && a.Desired != a.Pos && m.blocksAgent(a.Desired) {
			a.Desired = a.Pos
		}
	}

	bombDesired := make([]board.Pos, len(m.bombs))
	for j := range m.bombs {
		b := &m.bombs[j]
		bombDesired[j] = b.Pos
		if !b.Moving() {
			continue
		}
		next := b.Pos.Add(b.Velocity.Vector())
		if m.blocksBomb(next) {
			b.Velocity = board.None
			continue
		}
		bombDesired[j] = next
	}

	kickedBy := make([]int, len(m.bombs))
	for j := range kickedBy {
		kickedBy[j] = -1
	}
	m.resolveKicks(actions, bombDesired, kickedBy)

	stopBomb := func(j int) bool {
		m.bombs[j].Velocity = board.None
		kickedBy[j] = -1
		if bombDesired[j] == m.bombs[j].Pos {
			return false
		}
		bombDesired[j] = m.bombs[j].Pos
		return true
	}
	bounce := func(i int) bool {
		a := &m.avatars[i]
		if a.Desired == a.Pos {
			return false
		}
		a.Desired = a.Pos
		return true
	}

	for changed := true; changed; {
		changed = false

		for i := 0; i < NumPlayers; i++ {
			ai := &m.avatars[i]
			if !ai.OnBoard() {
				continue
			}
			for k := i + 1; k < NumPlayers; k++ {
				ak := &m.avatars[k]
				if !ak.OnBoard() {
					continue
				}
				if ai.Desired == ak.Desired {
					changed = bounce(i) || changed
					changed = bounce(k) || changed
				}
				if ai.Desired == ak.Pos && ak.Desired == ai.Pos && ai.Pos != ak.Pos {
					changed = bounce(i) || changed
					changed = bounce(k) || changed
				}
			}
		}

		for j := range m.bombs {
			for l := j + 1; l < len(m.bombs); l++ {
				if bombDesired[j] == bombDesired[l] {
					changed = stopBomb(j) || changed
					changed = stopBomb(l) || changed
				}
				if bombDesired[j] == m.bombs[l].Pos && bombDesired[l] == m.bombs[j].Pos {
					changed = stopBomb(j) || changed
					changed = stopBomb(l) || changed
				}
			}
		}

		for i := range m.avatars {
			a := &m.avatars[i]
			if !a.OnBoard() {
				continue
			}
			for j := range m.bombs {
				b := &m.bombs[j]
				if a.Desired == bombDesired[j] {
					if bombDesired[j] != b.Pos {
						changed = stopBomb(j) || changed
					} else if a.Desired != a.Pos {
						changed = bounce(i) || changed
					}
				}
				if a.Desired == b.Pos && bombDesired[j] == a.Pos && a.Desired != a.Pos {
					changed = stopBomb(j) || changed
				}
			}
		}

		// A kick only stands if the kicker actually moves.
		for j, i := range kickedBy {
			if i >= 0 && m.avatars[i].Desired == m.avatars[i].Pos {
				changed = stopBomb(j) || changed
			}
		}
	}

	for i := range m.avatars {
		if m.avatars[i].OnBoard() {
			m.avatars[i].Pos = m.avatars[i].Desired
		}
	}
	for j := range m.bombs {
		m.bombs[j].Pos = bombDesired[j]
	}
}

// resolveKicks handles agents stepping into the cell a bomb will occupy at the
// end of the tick. A legal kick sends the bomb one cell past the kicker.
func (m *ForwardModel) resolveKicks(actions [NumPlayers]Action, bombDesired []board.Pos, kickedBy []int) {
	for i := range m.avatars {
		a := &m.avatars[i]
		if !a.OnBoard() || a.Desired == a.Pos {
			continue
		}
		j := -1
		for k := range m.bombs {
			if bombDesired[k] == a.Desired {
				j = k
				break
			}
		}
		if j < 0 {
			continue
		}
		b := &m.bombs[j]
		dir := actions[i].Direction()
		if a.CanKick {
			landing := a.Desired.Add(dir.Vector())
			if m.kickLandingFree(landing, j) && m.rules.IsKickPermitted(*a, dir, m.avatars[:]) {
				b.Velocity = dir
				bombDesired[j] = landing
				kickedBy[j] = i
				continue
			}
			a.Desired = a.Pos
			b.Velocity = board.None
			bombDesired[j] = b.Pos
			continue
		}
		if !b.Moving() {
			a.Desired = a.Pos
		}
	}
}

func (m *ForwardModel) kickLandingFree(p board.Pos, kicked int) bool {
	if m.blocksBomb(p) {
		return false
	}
	for k := range m.bombs {
		if k != kicked && m.bombs[k].Pos == p {
			return false
		}
	}
	return m.avatarAt(p) < 0
}

func (m *ForwardModel) pickUpPowerUps() {
	for i := range m.avatars {
		a := &m.avatars[i]
		if !a.OnBoard() {
			continue
		}
		switch m.terrain.At(a.Pos) {
		case board.ExtraBomb:
			a.Ammo++
		case board.IncrRange:
			a.BlastStrength++
		case board.Kick:
			a.CanKick = true
		default:
			continue
		}
		m.terrain.Set(a.Pos, board.Passage)
	}
}

func (m *ForwardModel) burnAvatars() {
	for i := range m.avatars {
		a := &m.avatars[i]
		if a.OnBoard() && m.flameAt(a.Pos) >= 0 {
			a.Alive = false
		}
	}
}
