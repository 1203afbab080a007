// Package match drives one game: it collects actions from players, runs
// negotiation rounds on schedule and reports every tick to the loggers.
package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pommerneg.ai/internal/persistence/snapshot"
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/negotiation"
)

var (
	ErrEnded          = errors.New("match ended")
	ErrDigestMismatch = errors.New("digest mismatch")
)

// Player chooses one action per tick. Act must return once ctx is done.
type Player interface {
	Act(ctx context.Context, gs engine.GameState) (engine.Action, error)
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type RoundLogger interface {
	WriteRound(entry RoundLogEntry) error
}

type ResultRecorder interface {
	RecordResult(s Summary)
}

// TickLogEntry holds everything needed to replay one tick. Agreements is set
// whenever a negotiation round ran right before the tick and replaces the
// rule set in force.
type TickLogEntry struct {
	MatchID    string                           `json:"match_id"`
	Tick       int                              `json:"tick"`
	Actions    [board.NumPlayers]engine.Action  `json:"actions"`
	Negotiated bool                             `json:"negotiated,omitempty"`
	Round      int                              `json:"round,omitempty"`
	Agreements []agreement.Agreement            `json:"agreements,omitempty"`
	Results    *[board.NumPlayers]engine.Result `json:"results,omitempty"`
	Digest     string                           `json:"digest"`
}

type RoundLogEntry struct {
	MatchID    string                `json:"match_id"`
	Round      int                   `json:"round"`
	Tick       int                   `json:"tick"`
	Messages   []negotiation.Message `json:"messages"`
	Agreements []agreement.Agreement `json:"agreements"`
}

type Summary struct {
	MatchID   string
	Seed      int64
	Mode      engine.GameMode
	StartedAt time.Time
	EndedAt   time.Time
	Ticks     int
	Rounds    int
	Results   [board.NumPlayers]engine.Result
	Digest    string
}

type Match struct {
	cfg     Config
	id      string
	fm      *engine.ForwardModel
	neg     *negotiation.Negotiation
	players [board.NumPlayers]Player
	logger  *log.Logger

	tickLogger   TickLogger
	roundLogger  RoundLogger
	recorder     ResultRecorder
	snapshotSink chan<- snapshot.SnapshotV1

	startedAt time.Time
}

// New builds a match. Players that also implement negotiation.Negotiator
// take part in negotiation rounds; nil players stand still.
func New(cfg Config, layout board.Grid, players [board.NumPlayers]Player) (*Match, error) {
	fm, err := engine.New(cfg.Engine, layout)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	return assemble(cfg, fm, players, nil, 1), nil
}

// Resume continues a match from a snapshot with a fresh message log.
func Resume(cfg Config, snap snapshot.SnapshotV1, players [board.NumPlayers]Player) (*Match, error) {
	fm, agreements, err := engine.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("match: resume: %w", err)
	}
	if cfg.ID == "" {
		cfg.ID = snap.Header.MatchID
	}
	return assemble(cfg, fm, players, agreements, snap.Round), nil
}

func assemble(cfg Config, fm *engine.ForwardModel, players [board.NumPlayers]Player, agreements []agreement.Agreement, round int) *Match {
	cfg.applyDefaults()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	var negotiators [board.NumPlayers]negotiation.Negotiator
	for i, p := range players {
		if n, ok := p.(negotiation.Negotiator); ok {
			negotiators[i] = n
		}
	}
	neg := negotiation.Resume(cfg.Negotiation, negotiators, agreements, round)
	fm.InjectRules(neg)
	return &Match{
		cfg:     cfg,
		id:      cfg.ID,
		fm:      fm,
		neg:     neg,
		players: players,
		logger:  cfg.Logger,
	}
}

func (m *Match) SetTickLogger(l TickLogger)                    { m.tickLogger = l }
func (m *Match) SetRoundLogger(l RoundLogger)                  { m.roundLogger = l }
func (m *Match) SetResultRecorder(r ResultRecorder)            { m.recorder = r }
func (m *Match) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { m.snapshotSink = ch }

func (m *Match) ID() string                            { return m.id }
func (m *Match) Model() *engine.ForwardModel           { return m.fm.Copy(-1) }
func (m *Match) Negotiation() *negotiation.Negotiation { return m.neg }
func (m *Match) CurrentTick() int                      { return m.fm.CurrentTick() }
func (m *Match) IsEnded() bool                         { return m.fm.IsEnded() }

func (m *Match) Snapshot() snapshot.SnapshotV1 {
	return m.fm.ExportSnapshot(m.id, m.neg.Round())
}

// Run steps until the game ends or ctx is done.
func (m *Match) Run(ctx context.Context) error {
	m.startedAt = time.Now().UTC()
	m.logger.Printf("[match] %s start tick=%d seed=%d mode=%s", m.id, m.fm.CurrentTick(), m.fm.Config().Seed, m.fm.Config().Mode)
	if m.cfg.SnapshotEvery > 0 {
		m.emitSnapshot()
	}
	for !m.fm.IsEnded() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step plays one tick, preceded by a negotiation round when one is due.
func (m *Match) Step(ctx context.Context) error {
	if m.fm.IsEnded() {
		return ErrEnded
	}
	start := m.fm.CurrentTick()
	entry := TickLogEntry{MatchID: m.id}
	if every := m.cfg.NegotiateEvery; every > 0 && start%every == 0 {
		round, final, err := m.negotiate()
		if err != nil {
			return err
		}
		entry.Negotiated = true
		entry.Round = round
		entry.Agreements = final
	}

	entry.Actions = m.collect(ctx)
	m.fm.Tick(entry.Actions)
	entry.Tick = m.fm.CurrentTick()
	entry.Digest = m.fm.Digest()
	if m.fm.IsEnded() {
		res := m.fm.Results()
		entry.Results = &res
	}

	if m.tickLogger != nil {
		if err := m.tickLogger.WriteTick(entry); err != nil {
			m.logger.Printf("[match] %s tick %d: write tick log: %v", m.id, entry.Tick, err)
		}
	}
	if every := m.cfg.SnapshotEvery; every > 0 && entry.Tick%every == 0 {
		m.emitSnapshot()
	}
	if m.fm.IsEnded() {
		m.finish(entry.Digest)
	}
	return nil
}

func (m *Match) negotiate() (int, []agreement.Agreement, error) {
	round := m.neg.Round()
	if err := m.neg.StartPhaseOne(m.fm); err != nil {
		return 0, nil, fmt.Errorf("match: round %d: %w", round, err)
	}
	proposals, err := m.neg.StartPhaseTwo(m.fm)
	if err != nil {
		return 0, nil, fmt.Errorf("match: round %d: %w", round, err)
	}
	msgs := m.neg.Manager().FindMessages(-1, -1, round, negotiation.AnyKind, agreement.Any)
	final, err := m.neg.EndPhaseTwo()
	if err != nil {
		return 0, nil, fmt.Errorf("match: round %d: %w", round, err)
	}
	m.logger.Printf("[match] %s round %d tick=%d proposals=%d agreements=%d", m.id, round, m.fm.CurrentTick(), len(proposals), len(final))
	if m.roundLogger != nil {
		e := RoundLogEntry{MatchID: m.id, Round: round, Tick: m.fm.CurrentTick(), Messages: msgs, Agreements: final}
		if err := m.roundLogger.WriteRound(e); err != nil {
			m.logger.Printf("[match] %s round %d: write round log: %v", m.id, round, err)
		}
	}
	return round, final, nil
}

// collect asks every living player for an action concurrently. Errors,
// timeouts and invalid actions all become STOP.
func (m *Match) collect(ctx context.Context) [board.NumPlayers]engine.Action {
	var acts [board.NumPlayers]engine.Action
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ActionTimeout)
	defer cancel()

	var g errgroup.Group
	for _, id := range m.fm.AliveIDs() {
		p := m.players[id]
		if p == nil {
			continue
		}
		gs := engine.NewGameState(m.fm, id)
		g.Go(func() error {
			a, err := p.Act(ctx, gs)
			if err != nil {
				return fmt.Errorf("player %d: %w", id, err)
			}
			if !a.Valid() {
				return fmt.Errorf("player %d: invalid action %d", id, int(a))
			}
			acts[id] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Printf("[match] %s tick %d: %v", m.id, m.fm.CurrentTick()+1, err)
	}
	return acts
}

func (m *Match) emitSnapshot() {
	if m.snapshotSink == nil {
		return
	}
	select {
	case m.snapshotSink <- m.Snapshot():
	default:
		m.logger.Printf("[match] %s tick %d: snapshot sink backpressure", m.id, m.fm.CurrentTick())
	}
}

func (m *Match) finish(digest string) {
	s := Summary{
		MatchID:   m.id,
		Seed:      m.fm.Config().Seed,
		Mode:      m.fm.Config().Mode,
		StartedAt: m.startedAt,
		EndedAt:   time.Now().UTC(),
		Ticks:     m.fm.CurrentTick(),
		Rounds:    m.neg.Round() - 1,
		Results:   m.fm.Results(),
		Digest:    digest,
	}
	if w, ok := m.fm.Winner(); ok {
		m.logger.Printf("[match] %s ended tick=%d winner=%d results=%v", m.id, s.Ticks, w, s.Results)
	} else {
		m.logger.Printf("[match] %s ended tick=%d no winner results=%v", m.id, s.Ticks, s.Results)
	}
	if m.recorder != nil {
		m.recorder.RecordResult(s)
	}
}
