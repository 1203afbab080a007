package ws

import (
	"pommerneg.ai/internal/protocol"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/engine"
)

// BuildObs renders a seat's game state as an OBS message.
func BuildObs(gs engine.GameState) protocol.ObsMsg {
	me := gs.PlayerIndex()
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            gs.Tick(),
		Seat:            me,
		Board:           gs.Board().Ints(),
		Alive:           gs.AliveAgentIDs(),
		Ended:           gs.IsTerminal(),
	}
	for id := 0; id < board.NumPlayers; id++ {
		a := agentObs(gs.Agent(id))
		if id == me {
			obs.Self = a
		}
		obs.Agents = append(obs.Agents, a)
	}
	for _, b := range gs.Bombs() {
		bo := protocol.BombObs{
			Row:           b.Pos.Row,
			Col:           b.Pos.Col,
			Owner:         b.Owner,
			BlastStrength: b.BlastStrength,
			Life:          b.Life,
		}
		if b.Moving() {
			bo.Moving = b.Velocity.String()
		}
		obs.Bombs = append(obs.Bombs, bo)
	}
	for _, f := range gs.Flames() {
		obs.Flames = append(obs.Flames, protocol.FlameObs{Row: f.Pos.Row, Col: f.Pos.Col, Life: f.Life})
	}
	for _, g := range gs.Agreements() {
		obs.Agreements = append(obs.Agreements, protocol.AgreementObs{A: g.A, B: g.B, Type: g.Type.String()})
	}
	if obs.Ended {
		for _, r := range gs.Results() {
			obs.Results = append(obs.Results, r.String())
		}
	}
	return obs
}

func agentObs(a engine.AgentInfo) protocol.AgentObs {
	o := protocol.AgentObs{
		ID:      a.ID,
		Visible: a.Visible,
		Row:     a.Pos.Row,
		Col:     a.Pos.Col,
		Alive:   a.Alive,
	}
	if a.Visible {
		o.Ammo = a.Ammo
		o.BlastStrength = a.BlastStrength
		o.CanKick = a.CanKick
	}
	return o
}
