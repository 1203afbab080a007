package engine

import (
	"fmt"
	"math/rand/v2"

	"pommerneg.ai/internal/persistence/snapshot"
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
)

func (m *ForwardModel) ExportSnapshot(matchID string, round int) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, MatchID: matchID, Tick: uint64(m.tick)},
		Config: snapshot.ConfigV1{
			Seed:                 m.cfg.Seed,
			Mode:                 string(m.cfg.Mode),
			MaxTicks:             m.cfg.MaxTicks,
			VisionRange:          m.cfg.VisionRange,
			BombLife:             m.cfg.BombLife,
			FlameLife:            m.cfg.FlameLife,
			DefaultAmmo:          m.cfg.DefaultAmmo,
			DefaultBlastStrength: m.cfg.DefaultBlastStrength,
			WoodPowerUpPermille:  m.cfg.WoodPowerUpPermille,
		},
		Ended:  m.ended,
		Viewer: m.viewer,
		Round:  round,
	}
	s.Terrain = make([]int, 0, board.Size*board.Size)
	for r := range m.terrain {
		for _, t := range m.terrain[r] {
			s.Terrain = append(s.Terrain, int(t))
		}
	}
	for _, a := range m.avatars {
		s.Avatars = append(s.Avatars, snapshot.AvatarV1{
			ID: a.ID, Row: a.Pos.Row, Col: a.Pos.Col,
			Ammo: a.Ammo, BlastStrength: a.BlastStrength,
			CanKick: a.CanKick, Alive: a.Alive, VisionRange: a.VisionRange,
		})
	}
	for _, b := range m.bombs {
		s.Bombs = append(s.Bombs, snapshot.BombV1{
			Owner: b.Owner, Row: b.Pos.Row, Col: b.Pos.Col,
			BlastStrength: b.BlastStrength, Life: b.Life, Velocity: int(b.Velocity),
		})
	}
	for _, f := range m.flames {
		s.Flames = append(s.Flames, snapshot.FlameV1{Row: f.Pos.Row, Col: f.Pos.Col, Life: f.Life, Reveal: int(f.Reveal)})
	}
	for _, g := range m.rules.Agreements() {
		s.Agreements = append(s.Agreements, snapshot.AgreementV1{A: g.A, B: g.B, Type: int(g.Type)})
	}
	for _, r := range m.results {
		s.Results = append(s.Results, int(r))
	}
	s.RNG, _ = m.pcg.MarshalBinary()
	return s
}

// FromSnapshot rebuilds a model. Agreements are returned rather than applied
// since rule enforcement lives outside the engine.
func FromSnapshot(s snapshot.SnapshotV1) (*ForwardModel, []agreement.Agreement, error) {
	if s.Header.Version != snapshot.Version {
		return nil, nil, fmt.Errorf("snapshot version %d: unsupported", s.Header.Version)
	}
	if len(s.Terrain) != board.Size*board.Size {
		return nil, nil, fmt.Errorf("snapshot terrain: %d cells, want %d", len(s.Terrain), board.Size*board.Size)
	}
	if len(s.Avatars) != NumPlayers || len(s.Results) != NumPlayers {
		return nil, nil, fmt.Errorf("snapshot: want %d avatars and results", NumPlayers)
	}
	cfg := Config{
		Seed:                 s.Config.Seed,
		Mode:                 GameMode(s.Config.Mode),
		MaxTicks:             s.Config.MaxTicks,
		VisionRange:          s.Config.VisionRange,
		BombLife:             s.Config.BombLife,
		FlameLife:            s.Config.FlameLife,
		DefaultAmmo:          s.Config.DefaultAmmo,
		DefaultBlastStrength: s.Config.DefaultBlastStrength,
		WoodPowerUpPermille:  s.Config.WoodPowerUpPermille,
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if s.Viewer < -1 || s.Viewer >= NumPlayers {
		return nil, nil, fmt.Errorf("snapshot viewer %d out of range", s.Viewer)
	}
	m := &ForwardModel{
		cfg:    cfg,
		tick:   int(s.Header.Tick),
		rules:  noRules{},
		viewer: s.Viewer,
		ended:  s.Ended,
	}
	for i, v := range s.Terrain {
		t := board.Tile(v)
		if !t.Valid() {
			return nil, nil, fmt.Errorf("snapshot terrain: tile code %d", v)
		}
		m.terrain[i/board.Size][i%board.Size] = t
	}
	for i, a := range s.Avatars {
		p := board.Pos{Row: a.Row, Col: a.Col}
		if a.ID != i {
			return nil, nil, fmt.Errorf("snapshot avatar %d: id %d", i, a.ID)
		}
		if !p.InBounds() && p != offBoard {
			return nil, nil, fmt.Errorf("snapshot avatar %d: position %v", i, p)
		}
		// Only a redacted model holds living agents it cannot place.
		if a.Alive && !p.InBounds() && (s.Viewer < 0 || s.Viewer == i) {
			return nil, nil, fmt.Errorf("snapshot avatar %d: alive off the board", i)
		}
		m.avatars[i] = Avatar{
			ID: a.ID, Pos: p, Desired: p,
			Ammo: a.Ammo, BlastStrength: a.BlastStrength,
			CanKick: a.CanKick, Alive: a.Alive, VisionRange: a.VisionRange,
		}
	}
	for _, b := range s.Bombs {
		if p := (board.Pos{Row: b.Row, Col: b.Col}); !p.InBounds() {
			return nil, nil, fmt.Errorf("snapshot bomb: position %v", p)
		}
		if b.Owner < -1 || b.Owner >= NumPlayers {
			return nil, nil, fmt.Errorf("snapshot bomb: owner %d", b.Owner)
		}
		m.bombs = append(m.bombs, Bomb{
			Owner: b.Owner, Pos: board.Pos{Row: b.Row, Col: b.Col},
			BlastStrength: b.BlastStrength, Life: b.Life, Velocity: board.Direction(b.Velocity),
		})
	}
	for _, f := range s.Flames {
		if p := (board.Pos{Row: f.Row, Col: f.Col}); !p.InBounds() {
			return nil, nil, fmt.Errorf("snapshot flame: position %v", p)
		}
		if !board.Tile(f.Reveal).Valid() {
			return nil, nil, fmt.Errorf("snapshot flame: reveal tile %d", f.Reveal)
		}
		m.flames = append(m.flames, Flame{Pos: board.Pos{Row: f.Row, Col: f.Col}, Life: f.Life, Reveal: board.Tile(f.Reveal)})
	}
	for i, r := range s.Results {
		m.results[i] = Result(r)
	}
	m.pcg = &rand.PCG{}
	if err := m.pcg.UnmarshalBinary(s.RNG); err != nil {
		return nil, nil, fmt.Errorf("snapshot rng: %w", err)
	}
	m.rng = rand.New(m.pcg)

	var agreements []agreement.Agreement
	for _, g := range s.Agreements {
		if g.A < 0 || g.A >= NumPlayers || g.B < 0 || g.B >= NumPlayers || g.A == g.B {
			return nil, nil, fmt.Errorf("snapshot agreement: agents %d and %d", g.A, g.B)
		}
		if !agreement.Type(g.Type).Valid() {
			return nil, nil, fmt.Errorf("snapshot agreement: type %d", g.Type)
		}
		agreements = append(agreements, agreement.New(g.A, g.B, agreement.Type(g.Type)))
	}
	return m, agreements, nil
}
