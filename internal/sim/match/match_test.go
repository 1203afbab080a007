package match

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"pommerneg.ai/internal/persistence/snapshot"
	"pommerneg.ai/internal/sim/agents"
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/tuning"
)

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

var duelRows = []string{
	"...........",
	".1.........",
	"...........",
	"...........",
	"...........",
	"....0......",
	"...........",
	"...........",
	"...........",
	"...........",
	"...........",
}

type tickLog struct{ entries []TickLogEntry }

func (l *tickLog) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type roundLog struct{ entries []RoundLogEntry }

func (l *roundLog) WriteRound(e RoundLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type recorder struct{ got []Summary }

func (r *recorder) RecordResult(s Summary) { r.got = append(r.got, s) }

func testConfig(seed int64) Config {
	return Config{
		Engine: engine.Config{Seed: seed},
		Logger: log.New(io.Discard, "", 0),
	}
}

func newMatch(t *testing.T, cfg Config, rows []string, players [board.NumPlayers]Player) *Match {
	t.Helper()
	m, err := New(cfg, board.MustParseText(rows...), players)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestRunEndsWithWinner(t *testing.T) {
	cfg := testConfig(1)
	cfg.NegotiateEvery = -1
	m := newMatch(t, cfg, duelRows, [board.NumPlayers]Player{
		agents.DoNothing{},
		&agents.Scripted{Actions: []engine.Action{engine.PlaceBomb}},
	})
	ticks, rec := &tickLog{}, &recorder{}
	m.SetTickLogger(ticks)
	m.SetResultRecorder(rec)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !m.IsEnded() || m.CurrentTick() != 10 {
		t.Fatalf("ended=%v tick=%d want tick 10", m.IsEnded(), m.CurrentTick())
	}
	if len(rec.got) != 1 {
		t.Fatalf("summaries: got=%d want=1", len(rec.got))
	}
	s := rec.got[0]
	if s.Results[0] != engine.Win || s.Results[1] != engine.Loss {
		t.Fatalf("results: %v", s.Results)
	}
	if s.MatchID != m.ID() || s.Ticks != 10 || s.Rounds != 0 {
		t.Fatalf("summary: %+v", s)
	}
	if len(ticks.entries) != 10 {
		t.Fatalf("tick entries: got=%d want=10", len(ticks.entries))
	}
	last := ticks.entries[9]
	if last.Results == nil || last.Results[0] != engine.Win {
		t.Fatalf("last entry results: %v", last.Results)
	}
	if last.Digest != s.Digest || last.Digest != m.Model().Digest() {
		t.Fatalf("digest mismatch between entry, summary and model")
	}
	if ticks.entries[0].Actions[1] != engine.PlaceBomb || ticks.entries[1].Actions[1] != engine.Stop {
		t.Fatalf("logged actions: %v %v", ticks.entries[0].Actions, ticks.entries[1].Actions)
	}
	if err := m.Step(context.Background()); !errors.Is(err, ErrEnded) {
		t.Fatalf("Step after end: got=%v want ErrEnded", err)
	}
}

func TestNegotiationRunsOnSchedule(t *testing.T) {
	cfg := testConfig(2)
	cfg.Engine.MaxTicks = 7
	cfg.NegotiateEvery = 3
	m := newMatch(t, cfg, defaultRows, [board.NumPlayers]Player{
		&agents.Scripted{Offers: []agents.Offer{{To: 1, Type: agreement.Alliance}}},
		&agents.Scripted{Reply: agents.AcceptAll},
		agents.DoNothing{},
		agents.DoNothing{},
	})
	ticks, rounds, rec := &tickLog{}, &roundLog{}, &recorder{}
	m.SetTickLogger(ticks)
	m.SetRoundLogger(rounds)
	m.SetResultRecorder(rec)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rounds.entries) != 3 {
		t.Fatalf("rounds: got=%d want=3", len(rounds.entries))
	}
	for i, r := range rounds.entries {
		if r.Round != i+1 || r.Tick != 3*i {
			t.Fatalf("round %d: got round=%d tick=%d", i, r.Round, r.Tick)
		}
		if len(r.Messages) != 2 || len(r.Agreements) != 1 {
			t.Fatalf("round %d: messages=%d agreements=%d", i, len(r.Messages), len(r.Agreements))
		}
	}
	for _, e := range ticks.entries {
		want := (e.Tick-1)%3 == 0
		if e.Negotiated != want {
			t.Fatalf("tick %d: negotiated=%v want=%v", e.Tick, e.Negotiated, want)
		}
		if want && (len(e.Agreements) != 1 || e.Agreements[0] != agreement.New(0, 1, agreement.Alliance)) {
			t.Fatalf("tick %d: agreements=%v", e.Tick, e.Agreements)
		}
	}
	if got := m.Negotiation().Partners(1, agreement.Alliance); len(got) != 1 || got[0] != 0 {
		t.Fatalf("partners of 1: %v", got)
	}
	if rec.got[0].Rounds != 3 {
		t.Fatalf("summary rounds: got=%d want=3", rec.got[0].Rounds)
	}
	for i, r := range rec.got[0].Results {
		if r != engine.Tie {
			t.Fatalf("agent %d: got=%s want TIE", i, r)
		}
	}
}

type stuck struct{}

func (stuck) Act(ctx context.Context, _ engine.GameState) (engine.Action, error) {
	<-ctx.Done()
	return engine.Up, ctx.Err()
}

type failing struct{}

func (failing) Act(context.Context, engine.GameState) (engine.Action, error) {
	return engine.Up, errors.New("boom")
}

type invalid struct{}

func (invalid) Act(context.Context, engine.GameState) (engine.Action, error) {
	return engine.Action(42), nil
}

func TestFaultyPlayersStandStill(t *testing.T) {
	cfg := testConfig(3)
	cfg.NegotiateEvery = -1
	cfg.ActionTimeout = 10 * time.Millisecond
	m := newMatch(t, cfg, defaultRows, [board.NumPlayers]Player{
		stuck{},
		failing{},
		invalid{},
		&agents.Scripted{Actions: []engine.Action{engine.Up}},
	})
	ticks := &tickLog{}
	m.SetTickLogger(ticks)
	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	got := ticks.entries[0].Actions
	want := [board.NumPlayers]engine.Action{engine.Stop, engine.Stop, engine.Stop, engine.Up}
	if got != want {
		t.Fatalf("actions: got=%v want=%v", got, want)
	}
	if p := m.Model().Avatar(0).Pos; p != (board.Pos{Row: 5, Col: 4}) {
		t.Fatalf("agent 0 moved to %v", p)
	}
	if p := m.Model().Avatar(3).Pos; p != (board.Pos{Row: 8, Col: 1}) {
		t.Fatalf("agent 3 at %v want (8,1)", p)
	}
}

func randomPlayers(base uint64) [board.NumPlayers]Player {
	var ps [board.NumPlayers]Player
	for i := range ps {
		ps[i] = agents.NewRandom(base+uint64(i), 2)
	}
	return ps
}

func TestReplayReproducesDigests(t *testing.T) {
	cfg := testConfig(7)
	cfg.Engine.MaxTicks = 60
	cfg.NegotiateEvery = 5
	m := newMatch(t, cfg, defaultRows, randomPlayers(100))
	start := m.Snapshot()
	ticks := &tickLog{}
	m.SetTickLogger(ticks)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	fm, err := Replay(cfg.Negotiation, start, ticks.entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if fm.CurrentTick() != m.CurrentTick() || fm.Digest() != m.Model().Digest() {
		t.Fatalf("replayed tick=%d digest=%s, live tick=%d digest=%s",
			fm.CurrentTick(), fm.Digest(), m.CurrentTick(), m.Model().Digest())
	}
	if fm.Results() != m.Model().Results() {
		t.Fatalf("results: replay=%v live=%v", fm.Results(), m.Model().Results())
	}

	bad := append([]TickLogEntry(nil), ticks.entries...)
	bad[3].Digest = "0000"
	if _, err := Replay(cfg.Negotiation, start, bad); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("tampered digest: got=%v want ErrDigestMismatch", err)
	}

	gap := append([]TickLogEntry(nil), ticks.entries[:2]...)
	gap = append(gap, ticks.entries[3:]...)
	if _, err := Replay(cfg.Negotiation, start, gap); err == nil {
		t.Fatalf("expected tick gap error")
	}
}

func TestResumeCarriesAgreementsAndRound(t *testing.T) {
	cfg := testConfig(5)
	cfg.ID = "m-resume"
	cfg.NegotiateEvery = 4
	m := newMatch(t, cfg, defaultRows, [board.NumPlayers]Player{
		&agents.Scripted{Offers: []agents.Offer{{To: 2, Type: agreement.ShareVision}}},
		agents.DoNothing{},
		&agents.Scripted{Reply: agents.AcceptAll},
		agents.DoNothing{},
	})
	for i := 0; i < 6; i++ {
		if err := m.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	snap := m.Snapshot()
	if snap.Round != 3 || len(snap.Agreements) != 1 {
		t.Fatalf("snapshot round=%d agreements=%d", snap.Round, len(snap.Agreements))
	}

	resumeCfg := testConfig(5)
	resumeCfg.NegotiateEvery = -1
	r, err := Resume(resumeCfg, snap, [board.NumPlayers]Player{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if r.ID() != "m-resume" || r.CurrentTick() != 6 || r.Negotiation().Round() != 3 {
		t.Fatalf("resumed id=%s tick=%d round=%d", r.ID(), r.CurrentTick(), r.Negotiation().Round())
	}
	want := agreement.New(0, 2, agreement.ShareVision)
	if got := r.Negotiation().FinalAgreements(); len(got) != 1 || got[0] != want {
		t.Fatalf("agreements: %v", got)
	}
	if err := r.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if r.Model().Digest() != m.Model().Digest() {
		t.Fatalf("resumed match diverged from the original")
	}
}

func TestResumedSummaryKeepsSnapshotSeed(t *testing.T) {
	cfg := testConfig(9)
	cfg.NegotiateEvery = -1
	m := newMatch(t, cfg, duelRows, [board.NumPlayers]Player{
		agents.DoNothing{},
		&agents.Scripted{Actions: []engine.Action{engine.PlaceBomb}},
	})
	for i := 0; i < 3; i++ {
		if err := m.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	r, err := Resume(Config{NegotiateEvery: -1, Logger: log.New(io.Discard, "", 0)}, m.Snapshot(), [board.NumPlayers]Player{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	rec := &recorder{}
	r.SetResultRecorder(rec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("summaries: got=%d want=1", len(rec.got))
	}
	if got := rec.got[0].Seed; got != 9 {
		t.Fatalf("summary seed: got=%d want=%d", got, 9)
	}
}

func TestSnapshotSinkDoesNotBlock(t *testing.T) {
	cfg := testConfig(9)
	cfg.Engine.MaxTicks = 6
	cfg.NegotiateEvery = -1
	cfg.SnapshotEvery = 2
	m := newMatch(t, cfg, defaultRows, [board.NumPlayers]Player{})
	sink := make(chan snapshot.SnapshotV1, 1)
	m.SetSnapshotSink(sink)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := <-sink
	if got.Header.Tick != 0 || got.Header.MatchID != m.ID() {
		t.Fatalf("first snapshot: tick=%d match=%s", got.Header.Tick, got.Header.MatchID)
	}
	select {
	case s := <-sink:
		t.Fatalf("unexpected buffered snapshot at tick %d", s.Header.Tick)
	default:
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(4)
	m := newMatch(t, cfg, defaultRows, [board.NumPlayers]Player{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got=%v want context.Canceled", err)
	}
	if m.CurrentTick() != 0 {
		t.Fatalf("tick: got=%d want=0", m.CurrentTick())
	}
}

func TestConfigFromTuning(t *testing.T) {
	cfg := ConfigFromTuning(tuning.Defaults())
	if cfg.NegotiateEvery != 100 || cfg.Engine.MaxTicks != 800 || cfg.ActionTimeout != 100*time.Millisecond {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Negotiation.DiscardLog || cfg.Negotiation.KickDotThreshold != 0.9 {
		t.Fatalf("negotiation: %+v", cfg.Negotiation)
	}

	tu := tuning.Defaults()
	tu.Negotiation.EveryTicks = 0
	tu.MaxTicks = 0
	tu.WoodPowerUpPermille = 0
	off := false
	tu.Negotiation.RecordMessages = &off
	cfg = ConfigFromTuning(tu)
	if cfg.NegotiateEvery != -1 || cfg.Engine.MaxTicks != -1 || cfg.Engine.WoodPowerUpPermille != -1 {
		t.Fatalf("zero values should disable: %+v", cfg)
	}
	if !cfg.Negotiation.DiscardLog {
		t.Fatalf("record_messages=false should discard the log")
	}
}
