package engine

import (
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
)

// GameState is the read-only view one agent gets of a match. It wraps a
// redacted copy, so nothing reachable from it aliases the authoritative model.
type GameState struct {
	fm     *ForwardModel
	player int
}

func NewGameState(fm *ForwardModel, player int) GameState {
	return GameState{fm: fm.Copy(player), player: player}
}

// AgentInfo describes one agent as the viewer knows it. Pos is only set when
// the agent stands in a visible cell.
type AgentInfo struct {
	ID            int
	Alive         bool
	Visible       bool
	Pos           board.Pos
	Ammo          int
	BlastStrength int
	CanKick       bool
}

func (s GameState) PlayerIndex() int { return s.player }
func (s GameState) Tick() int        { return s.fm.tick }
func (s GameState) IsTerminal() bool { return s.fm.ended }

func (s GameState) Board() board.Grid { return s.fm.render() }

func (s GameState) Agent(id int) AgentInfo {
	a := s.fm.avatars[id]
	info := AgentInfo{
		ID:            a.ID,
		Alive:         a.Alive,
		Ammo:          a.Ammo,
		BlastStrength: a.BlastStrength,
		CanKick:       a.CanKick,
		Pos:           offBoard,
	}
	if a.OnBoard() && s.fm.terrain.At(a.Pos) != board.Fog {
		info.Visible = true
		info.Pos = a.Pos
	}
	return info
}

func (s GameState) Me() AgentInfo { return s.Agent(s.player) }

func (s GameState) AliveAgentIDs() []int { return s.fm.AliveIDs() }

func (s GameState) Agreements() []agreement.Agreement {
	return append([]agreement.Agreement(nil), s.fm.rules.Agreements()...)
}

func (s GameState) Bombs() []Bomb   { return s.fm.Bombs() }
func (s GameState) Flames() []Flame { return s.fm.Flames() }

func (s GameState) Results() [NumPlayers]Result { return s.fm.results }

// Model returns a fresh copy of the redacted model for lookahead.
func (s GameState) Model() *ForwardModel { return s.fm.Copy(-1) }
