package negotiation

import (
	"fmt"
	"math"

	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/engine"
)

func livingPartner(all []engine.Avatar, id int) (engine.Avatar, bool) {
	for _, a := range all {
		if a.ID == id {
			return a, a.OnBoard()
		}
	}
	return engine.Avatar{}, false
}

// IsPermitted checks a against agent's agreements in order; the first one
// that rules on the action decides. ALLIANCE and SHARE_VISION permit
// outright, skipping any later agreement.
func (n *Negotiation) IsPermitted(a engine.Action, agent engine.Avatar, all []engine.Avatar) bool {
	for _, g := range n.final {
		if !g.Involves(agent.ID) {
			continue
		}
		switch g.Type {
		case agreement.StayApart:
			if !a.IsMove() {
				continue
			}
			if p, ok := livingPartner(all, g.Partner(agent.ID)); ok && n.closesIn(agent, p) {
				return false
			}
		case agreement.NoBombPlacing:
			if a != engine.PlaceBomb {
				continue
			}
			if p, ok := livingPartner(all, g.Partner(agent.ID)); ok && agent.Pos.Manhattan(p.Pos) <= n.cfg.NoBombDistance {
				return false
			}
		case agreement.NoBombKicking:
		case agreement.Alliance, agreement.ShareVision:
			return true
		default:
			panic(fmt.Sprintf("negotiation: cannot enforce %s", g))
		}
	}
	return true
}

// closesIn reports whether agent's intended step ends within the stay-apart
// distance of the partner's current or intended cell without moving away
// from it. Agents already too close may still retreat.
func (n *Negotiation) closesIn(agent, partner engine.Avatar) bool {
	for _, q := range [2]board.Pos{partner.Pos, partner.Desired} {
		d := agent.Desired.Manhattan(q)
		if d <= n.cfg.StayApartDistance && d <= agent.Pos.Manhattan(q) {
			return true
		}
	}
	return false
}

// IsKickPermitted forbids kicking a bomb nearly straight at a living partner
// bound by NO_BOMB_KICKING. The kicked bomb starts from agent.Desired.
func (n *Negotiation) IsKickPermitted(agent engine.Avatar, dir board.Direction, all []engine.Avatar) bool {
	v := dir.Vector()
	for _, g := range n.final {
		if !g.Involves(agent.ID) {
			continue
		}
		switch g.Type {
		case agreement.NoBombKicking:
			p, ok := livingPartner(all, g.Partner(agent.ID))
			if !ok {
				continue
			}
			w := p.Pos.Sub(agent.Desired)
			norm := math.Hypot(float64(w.Row), float64(w.Col))
			if norm == 0 {
				continue
			}
			dot := float64(v.Row*w.Row+v.Col*w.Col) / norm
			if dot > n.cfg.KickDotThreshold {
				return false
			}
		case agreement.Alliance, agreement.ShareVision, agreement.NoBombPlacing, agreement.StayApart:
		default:
			panic(fmt.Sprintf("negotiation: cannot enforce %s", g))
		}
	}
	return true
}
