package engine

import (
	"testing"

	"pommerneg.ai/internal/sim/board"
)

const testSeed = 12345

var defaultRows = []string{
	"...........",
	".1.......2.",
	"...........",
	"...........",
	"...........",
	"....0......",
	"...........",
	"...........",
	"...........",
	".3.........",
	"...........",
}

// withCells returns defaultRows-style rows with single cells replaced.
func withCells(rows []string, cells map[board.Pos]byte) []string {
	out := make([]string, len(rows))
	for r, row := range rows {
		b := []byte(row)
		for p, g := range cells {
			if p.Row == r {
				b[p.Col] = g
			}
		}
		out[r] = string(b)
	}
	return out
}

var (
	explosionActions = []Action{PlaceBomb, Up, Up, Up}
	kickActions      = []Action{PlaceBomb, Up, Down}
	doubleBomb       = []Action{PlaceBomb, Down, PlaceBomb, Down, Down, Down}
	pickupActions    = []Action{Down, PlaceBomb, Down, Left}
	upActions        = []Action{Up, Up, Up}
	downActions      = []Action{Down, Down, Down}
	leftActions      = []Action{Left, Left, Left}
	rightActions     = []Action{Right, Right, Right}
)

// runFrames plays n ticks with scripted agents 0 and 1 and idle agents 2 and 3.
// An exhausted script plays STOP.
func runFrames(t *testing.T, n int, rows []string, a0, a1 []Action, canKick bool, rules Rules) *ForwardModel {
	t.Helper()
	fm, err := New(Config{Seed: testSeed}, board.MustParseText(rows...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rules != nil {
		fm.InjectRules(rules)
	}
	if canKick {
		fm.SetCanKick(0, true)
		fm.SetCanKick(1, true)
	}
	for i := 0; i < n && !fm.IsEnded(); i++ {
		var acts [NumPlayers]Action
		if i < len(a0) {
			acts[0] = a0[i]
		}
		if i < len(a1) {
			acts[1] = a1[i]
		}
		fm.Tick(acts)
	}
	return fm
}

type scenario struct {
	name    string
	frames  int
	rows    []string
	a0, a1  []Action
	canKick bool
	want    map[board.Pos]board.Tile
}

func runScenarios(t *testing.T, cases []scenario) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := tc.rows
			if rows == nil {
				rows = defaultRows
			}
			fm := runFrames(t, tc.frames, rows, tc.a0, tc.a1, tc.canKick, nil)
			g := fm.Board(-1)
			for p, want := range tc.want {
				if got := g.At(p); got != want {
					t.Fatalf("cell %v: got=%d want=%d\n%s", p, got, want, g)
				}
			}
		})
	}
}

func TestMovement(t *testing.T) {
	runScenarios(t, []scenario{
		{name: "up", frames: 4, a0: upActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 2, Col: 4}: board.Agent0}},
		{name: "down", frames: 4, a0: downActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 8, Col: 4}: board.Agent0}},
		{name: "left", frames: 4, a0: leftActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 5, Col: 1}: board.Agent0}},
		{name: "right", frames: 4, a0: rightActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 5, Col: 7}: board.Agent0}},
		{name: "down_left", frames: 5, a0: pickupActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 7, Col: 3}: board.Agent0}},
		{name: "rigid_wall", frames: 5, a0: leftActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 5, Col: 2}: '#'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 3}: board.Agent0, {Row: 5, Col: 2}: board.Rigid}},
		{name: "wood_wall", frames: 5, a0: leftActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 5, Col: 2}: '+'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 3}: board.Agent0, {Row: 5, Col: 2}: board.Wood}},
		{name: "standing_player_blocks", frames: 5, a0: leftActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 2}: '1'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 3}: board.Agent0, {Row: 5, Col: 2}: board.Agent1}},
		{name: "same_target_bounces", frames: 5, a0: leftActions, a1: rightActions,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 2}: '1'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 4}: board.Agent0, {Row: 5, Col: 2}: board.Agent1}},
		{name: "follow_right", frames: 6, a0: rightActions, a1: rightActions,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 3}: '1'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 6}: board.Agent1, {Row: 5, Col: 7}: board.Agent0}},
		{name: "follow_left", frames: 6, a0: leftActions, a1: leftActions,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 4}: '.', {Row: 5, Col: 6}: '1', {Row: 5, Col: 7}: '0'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 3}: board.Agent1, {Row: 5, Col: 4}: board.Agent0}},
		{name: "follow_circle", frames: 6,
			a0:   []Action{Right, Up, Left, Down},
			a1:   []Action{Down, Right, Up, Left},
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 4}: '.', {Row: 5, Col: 6}: '1', {Row: 5, Col: 7}: '0'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 6}: board.Agent1, {Row: 5, Col: 7}: board.Agent0}},
	})
}

func TestBombs(t *testing.T) {
	runScenarios(t, []scenario{
		{name: "planting", frames: 2, a0: explosionActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 5, Col: 4}: board.Bomb, {Row: 4, Col: 4}: board.Agent0}},
		{name: "planter_drawn_over_bomb", frames: 2, a0: []Action{PlaceBomb}, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 5, Col: 4}: board.Agent0}},
		{name: "explodes", frames: 11, a0: explosionActions, canKick: true,
			want: map[board.Pos]board.Tile{
				{Row: 5, Col: 3}: board.Flames, {Row: 5, Col: 4}: board.Flames, {Row: 5, Col: 5}: board.Flames,
				{Row: 4, Col: 4}: board.Flames, {Row: 6, Col: 4}: board.Flames, {Row: 2, Col: 4}: board.Agent0,
			}},
		{name: "no_ammo_no_bomb", frames: 5, a0: doubleBomb, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 5, Col: 4}: board.Bomb, {Row: 6, Col: 4}: board.Passage, {Row: 8, Col: 4}: board.Agent0}},
		{name: "extra_ammo", frames: 5, a0: doubleBomb, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 6, Col: 4}: 'a'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 4}: board.Bomb, {Row: 6, Col: 4}: board.Bomb}},
		{name: "chain_reaction", frames: 11, a0: doubleBomb, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 6, Col: 4}: 'a'}),
			want: map[board.Pos]board.Tile{
				{Row: 5, Col: 4}: board.Flames, {Row: 5, Col: 5}: board.Flames, {Row: 6, Col: 5}: board.Flames,
				{Row: 4, Col: 4}: board.Flames, {Row: 7, Col: 4}: board.Flames, {Row: 9, Col: 4}: board.Agent0,
			}},
		{name: "blast_range_powerup", frames: 12, a0: pickupActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 6, Col: 2}: '+', {Row: 6, Col: 4}: 'r', {Row: 6, Col: 6}: '+'}),
			want: map[board.Pos]board.Tile{
				{Row: 4, Col: 4}: board.Flames, {Row: 8, Col: 4}: board.Flames, {Row: 6, Col: 2}: board.Flames, {Row: 6, Col: 6}: board.Flames,
				{Row: 7, Col: 3}: board.Agent0,
			}},
		{name: "static_walls_stop_flames", frames: 15, a0: explosionActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 4, Col: 4}: '#', {Row: 5, Col: 5}: '#', {Row: 6, Col: 4}: '#'}),
			want: map[board.Pos]board.Tile{
				{Row: 5, Col: 5}: board.Rigid, {Row: 4, Col: 4}: board.Rigid, {Row: 6, Col: 4}: board.Rigid, {Row: 5, Col: 4}: board.Passage,
			}},
		{name: "wood_shields_wood_behind", frames: 12, a0: pickupActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 5, Col: 4}: 'r', {Row: 5, Col: 5}: '+', {Row: 5, Col: 6}: '+', {Row: 4, Col: 4}: '0'}),
			want: map[board.Pos]board.Tile{{Row: 5, Col: 6}: board.Wood}},
		{name: "flames_destroy_powerups", frames: 15, a0: explosionActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 4, Col: 4}: 'k', {Row: 5, Col: 5}: 'r', {Row: 6, Col: 4}: 'a'}),
			want: map[board.Pos]board.Tile{
				{Row: 5, Col: 5}: board.Passage, {Row: 4, Col: 4}: board.Passage, {Row: 5, Col: 4}: board.Passage, {Row: 6, Col: 4}: board.Passage,
			}},
	})
}

func TestKicks(t *testing.T) {
	volleyRows := withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 4}: '.', {Row: 5, Col: 3}: '0', {Row: 8, Col: 3}: '1'})
	sideRows := withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 1}: '.', {Row: 5, Col: 4}: '.', {Row: 5, Col: 3}: '0', {Row: 5, Col: 6}: '1'})
	runScenarios(t, []scenario{
		{name: "kicked_bomb_moves", frames: 6, a0: kickActions, canKick: true,
			want: map[board.Pos]board.Tile{{Row: 9, Col: 4}: board.Bomb, {Row: 5, Col: 4}: board.Agent0}},
		{name: "kick_into_bomb_bounces", frames: 6, canKick: true,
			a0:   []Action{PlaceBomb, Up, PlaceBomb, Up, Down},
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 4, Col: 4}: 'a'}),
			want: map[board.Pos]board.Tile{{Row: 3, Col: 4}: board.Agent0, {Row: 4, Col: 4}: board.Bomb, {Row: 5, Col: 4}: board.Bomb}},
		{name: "kick_into_wall_bounces", frames: 6, a0: kickActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 6, Col: 4}: '+'}),
			want: map[board.Pos]board.Tile{{Row: 4, Col: 4}: board.Agent0, {Row: 5, Col: 4}: board.Bomb, {Row: 6, Col: 4}: board.Wood}},
		{name: "kick_into_wall_then_other_bomb_travels", frames: 9, canKick: true,
			a0:   []Action{PlaceBomb, Left, PlaceBomb, Right, Left, Down, Up},
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 5, Col: 2}: '+', {Row: 5, Col: 3}: 'a'}),
			want: map[board.Pos]board.Tile{
				{Row: 5, Col: 4}: board.Agent0, {Row: 5, Col: 3}: board.Bomb, {Row: 5, Col: 2}: board.Wood, {Row: 5, Col: 10}: board.Bomb,
			}},
		{name: "stops_at_wall", frames: 6, a0: kickActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 9, Col: 4}: '+'}),
			want: map[board.Pos]board.Tile{{Row: 8, Col: 4}: board.Bomb}},
		{name: "stops_at_player", frames: 8, a0: kickActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 1, Col: 9}: '.', {Row: 9, Col: 4}: '2'}),
			want: map[board.Pos]board.Tile{{Row: 8, Col: 4}: board.Bomb, {Row: 9, Col: 4}: board.Agent2}},
		{name: "stops_at_bomb", frames: 6, a0: kickActions, canKick: true,
			rows: withCells(defaultRows, map[board.Pos]byte{{Row: 9, Col: 4}: 'b'}),
			want: map[board.Pos]board.Tile{{Row: 8, Col: 4}: board.Bomb, {Row: 9, Col: 4}: board.Bomb}},
		{name: "no_kick_without_ability", frames: 5, a0: kickActions,
			want: map[board.Pos]board.Tile{{Row: 5, Col: 4}: board.Bomb, {Row: 4, Col: 4}: board.Agent0}},
		{name: "volley", frames: 6, canKick: true, rows: volleyRows,
			a0:   kickActions,
			a1:   []Action{Stop, Stop, Stop, Up, Down},
			want: map[board.Pos]board.Tile{{Row: 6, Col: 3}: board.Bomb, {Row: 8, Col: 3}: board.Agent1, {Row: 5, Col: 3}: board.Agent0}},
		{name: "dodge", frames: 9, canKick: true, rows: volleyRows,
			a0:   kickActions,
			a1:   []Action{Stop, Stop, Stop, Stop, Left, Right},
			want: map[board.Pos]board.Tile{{Row: 10, Col: 3}: board.Bomb, {Row: 8, Col: 3}: board.Agent1, {Row: 5, Col: 3}: board.Agent0}},
		{name: "sideways_right", frames: 6, canKick: true, rows: volleyRows,
			a0:   kickActions,
			a1:   []Action{Stop, Stop, Stop, Left, Right},
			want: map[board.Pos]board.Tile{{Row: 8, Col: 5}: board.Bomb, {Row: 8, Col: 3}: board.Agent1, {Row: 5, Col: 3}: board.Agent0}},
		{name: "sideways_up", frames: 6, canKick: true, rows: sideRows,
			a0:   []Action{PlaceBomb, Left, Right},
			a1:   []Action{Stop, Stop, Stop, Down, Up},
			want: map[board.Pos]board.Tile{{Row: 3, Col: 6}: board.Bomb, {Row: 5, Col: 6}: board.Agent1, {Row: 5, Col: 3}: board.Agent0}},
		{name: "sideways_down", frames: 6, canKick: true, rows: sideRows,
			a0:   []Action{PlaceBomb, Left, Right},
			a1:   []Action{Stop, Stop, Stop, Up, Down},
			want: map[board.Pos]board.Tile{{Row: 7, Col: 6}: board.Bomb, {Row: 5, Col: 6}: board.Agent1, {Row: 5, Col: 3}: board.Agent0}},
		{name: "sideways_left", frames: 6, canKick: true, rows: volleyRows,
			a0:   kickActions,
			a1:   []Action{Stop, Stop, Stop, Right, Left},
			want: map[board.Pos]board.Tile{{Row: 8, Col: 1}: board.Bomb, {Row: 8, Col: 3}: board.Agent1, {Row: 5, Col: 3}: board.Agent0}},
	})
}

func TestKickedBombAdvancesOneCellPerTick(t *testing.T) {
	fm := runFrames(t, 3, defaultRows, kickActions, nil, true, nil)
	for want := 6; want <= 9; want++ {
		bombs := fm.Bombs()
		if len(bombs) != 1 {
			t.Fatalf("bombs: got=%d want=1", len(bombs))
		}
		if got := bombs[0].Pos; got != (board.Pos{Row: want, Col: 4}) {
			t.Fatalf("tick %d: bomb at %v want row %d", fm.CurrentTick(), got, want)
		}
		fm.Tick([NumPlayers]Action{})
	}
}

func TestKillingEnemiesWinsGame(t *testing.T) {
	rows := []string{
		"...........",
		"...........",
		"...........",
		"...........",
		"...........",
		"...102.....",
		"....3......",
		"...........",
		"...........",
		"...........",
		"...........",
	}
	fm := runFrames(t, 15, rows, explosionActions, nil, true, nil)
	if !fm.IsEnded() {
		t.Fatalf("expected game to end")
	}
	if got := fm.AliveIDs(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("alive: got=%v want=[0]", got)
	}
	if r := fm.Result(0); r != Win {
		t.Fatalf("agent 0: got=%s want=WIN", r)
	}
	for id := 1; id < NumPlayers; id++ {
		if r := fm.Result(id); r != Loss {
			t.Fatalf("agent %d: got=%s want=LOSS", id, r)
		}
	}
	if w, ok := fm.Winner(); !ok || w != 0 {
		t.Fatalf("winner: got=%d ok=%v", w, ok)
	}
	// Ended models ignore further ticks.
	tick := fm.CurrentTick()
	fm.Tick([NumPlayers]Action{Up})
	if fm.CurrentTick() != tick {
		t.Fatalf("ended model advanced")
	}
}

func TestMutualDestructionIsTie(t *testing.T) {
	rows := []string{
		"...........",
		"...........",
		"...........",
		"...........",
		"...........",
		"...10......",
		"...........",
		"...........",
		"...........",
		"...........",
		"...........",
	}
	fm := runFrames(t, 12, rows, []Action{PlaceBomb}, nil, false, nil)
	if !fm.IsEnded() {
		t.Fatalf("expected game to end")
	}
	for id, r := range fm.Results() {
		if r != Tie {
			t.Fatalf("agent %d: got=%s want=TIE", id, r)
		}
	}
}

func TestTeamModeEndsWhenTeamWiped(t *testing.T) {
	rows := []string{
		"...........",
		"...........",
		"...........",
		"...........",
		"...........",
		"...103.....",
		"...........",
		"...........",
		"...........",
		"...........",
		"..........2",
	}
	fm, err := New(Config{Seed: testSeed, Mode: Team}, board.MustParseText(rows...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 12 && !fm.IsEnded(); i++ {
		var acts [NumPlayers]Action
		if i < len(explosionActions) {
			acts[0] = explosionActions[i]
		}
		fm.Tick(acts)
	}
	if !fm.IsEnded() {
		t.Fatalf("expected team game to end")
	}
	want := [NumPlayers]Result{Win, Loss, Win, Loss}
	if got := fm.Results(); got != want {
		t.Fatalf("results: got=%v want=%v", got, want)
	}
}

func TestMaxTicksEndsInTie(t *testing.T) {
	fm, err := New(Config{Seed: testSeed, MaxTicks: 5}, board.MustParseText(defaultRows...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		fm.Tick([NumPlayers]Action{})
	}
	if !fm.IsEnded() || fm.CurrentTick() != 5 {
		t.Fatalf("ended=%v tick=%d want ended at 5", fm.IsEnded(), fm.CurrentTick())
	}
	for id, r := range fm.Results() {
		if r != Tie {
			t.Fatalf("agent %d: got=%s want=TIE", id, r)
		}
	}
}

func TestLayoutObjects(t *testing.T) {
	rows := withCells(defaultRows, map[board.Pos]byte{{Row: 3, Col: 3}: 'b', {Row: 7, Col: 7}: '*'})
	fm, err := New(Config{Seed: testSeed}, board.MustParseText(rows...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bombs := fm.Bombs()
	if len(bombs) != 1 || bombs[0].Owner != -1 || bombs[0].Life != 10 || bombs[0].BlastStrength != 2 {
		t.Fatalf("layout bomb: %+v", bombs)
	}
	if f := fm.Flames(); len(f) != 1 || f[0].Life != 3 {
		t.Fatalf("layout flame: %+v", f)
	}
	a := fm.Avatar(0)
	if a.Pos != (board.Pos{Row: 5, Col: 4}) || a.Ammo != 1 || a.BlastStrength != 2 || a.CanKick || !a.Alive {
		t.Fatalf("avatar defaults: %+v", a)
	}
	terrain := fm.Terrain()
	if terrain.At(board.Pos{Row: 5, Col: 4}) != board.Passage {
		t.Fatalf("agent tile left in terrain")
	}
}
