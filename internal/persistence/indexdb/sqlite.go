package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"pommerneg.ai/internal/persistence/snapshot"
	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/match"
	"pommerneg.ai/internal/sim/negotiation"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index of matches, ticks, negotiation
// rounds and snapshots. Writes are queued and applied by one goroutine; the
// JSONL logs stay the source of truth, so a full queue drops writes.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropRound    atomic.Uint64
	dropResult   atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqRound
	reqResult
	reqSnapshot
	reqSync
)

type req struct {
	kind reqKind

	tick     match.TickLogEntry
	round    match.RoundLogEntry
	result   match.Summary
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	MatchID    string
	Tick       uint64
	Round      int
	Path       string
	Seed       int64
	Alive      int
	Bombs      int
	Agreements int
	Ended      bool
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropTickTotal     uint64
	DropRoundTotal    uint64
	DropResultTotal   uint64
	DropSnapshotTotal uint64
}

var (
	_ match.TickLogger     = (*SQLiteIndex)(nil)
	_ match.RoundLogger    = (*SQLiteIndex)(nil)
	_ match.ResultRecorder = (*SQLiteIndex)(nil)
)

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			mode TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			winner INTEGER NOT NULL,
			digest TEXT NOT NULL,
			results_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			match_id TEXT NOT NULL,
			agent INTEGER NOT NULL,
			result TEXT NOT NULL,
			PRIMARY KEY (match_id, agent)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			negotiated INTEGER NOT NULL,
			round INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			messages INTEGER NOT NULL,
			agreements INTEGER NOT NULL,
			PRIMARY KEY (match_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			id INTEGER NOT NULL,
			sender INTEGER NOT NULL,
			receiver INTEGER NOT NULL,
			kind TEXT NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (match_id, round, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(match_id, sender, round);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(match_id, receiver, round);`,
		`CREATE TABLE IF NOT EXISTS agreements (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			a INTEGER NOT NULL,
			b INTEGER NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (match_id, round, a, b, type)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			round INTEGER NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			alive INTEGER NOT NULL,
			bombs INTEGER NOT NULL,
			agreements INTEGER NOT NULL,
			ended INTEGER NOT NULL,
			PRIMARY KEY (match_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropRoundTotal:    s.dropRound.Load(),
		DropResultTotal:   s.dropResult.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry match.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) WriteRound(entry match.RoundLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqRound, round: entry}, &s.dropRound)
	return nil
}

func (s *SQLiteIndex) RecordResult(sum match.Summary) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqResult, result: sum}, &s.dropResult)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		MatchID:    snap.Header.MatchID,
		Tick:       snap.Header.Tick,
		Round:      snap.Round,
		Path:       path,
		Seed:       snap.Config.Seed,
		Bombs:      len(snap.Bombs),
		Agreements: len(snap.Agreements),
		Ended:      snap.Ended,
	}
	for _, a := range snap.Avatars {
		if a.Alive {
			r.Alive++
		}
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// Sync waits until every write queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(match_id,tick,digest,negotiated,round,raw_json) VALUES(?,?,?,?,?,?)`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(match_id,round,tick,messages,agreements) VALUES(?,?,?,?,?)`)
	insertMessage, _ := s.db.Prepare(`INSERT OR REPLACE INTO messages(match_id,round,id,sender,receiver,kind,type) VALUES(?,?,?,?,?,?,?)`)
	insertAgreement, _ := s.db.Prepare(`INSERT OR REPLACE INTO agreements(match_id,round,a,b,type) VALUES(?,?,?,?,?)`)
	insertMatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO matches(match_id,seed,mode,started_at,ended_at,ticks,rounds,winner,digest,results_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertResult, _ := s.db.Prepare(`INSERT OR REPLACE INTO results(match_id,agent,result) VALUES(?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(match_id,tick,round,path,seed,alive,bombs,agreements,ended) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRound, insertMessage, insertAgreement, insertMatch, insertResult, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			b, _ := json.Marshal(e)
			exec(insertTick, e.MatchID, e.Tick, e.Digest, boolInt(e.Negotiated), e.Round, string(b))

		case reqRound:
			e := r.round
			if !exec(insertRound, e.MatchID, e.Round, e.Tick, len(e.Messages), len(e.Agreements)) {
				continue
			}
			for _, m := range e.Messages {
				if !exec(insertMessage, e.MatchID, m.Round, m.ID, m.Sender, m.Receiver, m.Kind.String(), m.Type.String()) {
					break
				}
			}
			for _, g := range e.Agreements {
				if !exec(insertAgreement, e.MatchID, e.Round, g.A, g.B, g.Type.String()) {
					break
				}
			}

		case reqResult:
			sum := r.result
			winner := -1
			for i, res := range sum.Results {
				if res == engine.Win {
					winner = i
					break
				}
			}
			b, _ := json.Marshal(sum.Results)
			if !exec(insertMatch, sum.MatchID, sum.Seed, string(sum.Mode),
				sum.StartedAt.UTC().Format(time.RFC3339Nano), sum.EndedAt.UTC().Format(time.RFC3339Nano),
				sum.Ticks, sum.Rounds, winner, sum.Digest, string(b)) {
				continue
			}
			for i, res := range sum.Results {
				if !exec(insertResult, sum.MatchID, i, res.String()) {
					break
				}
			}

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.MatchID, int64(sn.Tick), sn.Round, sn.Path, sn.Seed, sn.Alive, sn.Bombs, sn.Agreements, boolInt(sn.Ended))
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

// FindMessages queries the indexed message log of one match. A negative
// sender, receiver or round, negotiation.AnyKind and agreement.Any match
// everything.
func (s *SQLiteIndex) FindMessages(ctx context.Context, matchID string, sender, receiver, round int, kind negotiation.Kind, t agreement.Type) ([]negotiation.Message, error) {
	where := []string{"match_id = ?"}
	args := []any{matchID}
	if sender >= 0 {
		where = append(where, "sender = ?")
		args = append(args, sender)
	}
	if receiver >= 0 {
		where = append(where, "receiver = ?")
		args = append(args, receiver)
	}
	if round >= 0 {
		where = append(where, "round = ?")
		args = append(args, round)
	}
	if kind != negotiation.AnyKind {
		where = append(where, "kind = ?")
		args = append(args, kind.String())
	}
	if t != agreement.Any {
		where = append(where, "type = ?")
		args = append(args, t.String())
	}
	q := `SELECT round,id,sender,receiver,kind,type FROM messages WHERE ` + strings.Join(where, " AND ") + ` ORDER BY round, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []negotiation.Message
	for rows.Next() {
		var (
			m        negotiation.Message
			kindName string
			typeName string
		)
		if err := rows.Scan(&m.Round, &m.ID, &m.Sender, &m.Receiver, &kindName, &typeName); err != nil {
			return nil, err
		}
		if m.Kind, err = negotiation.ParseKind(kindName); err != nil {
			return nil, err
		}
		if m.Type, err = agreement.ParseType(typeName); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Agreements returns the set finalized in a round of a match.
func (s *SQLiteIndex) Agreements(ctx context.Context, matchID string, round int) ([]agreement.Agreement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a,b,type FROM agreements WHERE match_id = ? AND round = ? ORDER BY a, b, type`, matchID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agreement.Agreement
	for rows.Next() {
		var (
			a, b     int
			typeName string
		)
		if err := rows.Scan(&a, &b, &typeName); err != nil {
			return nil, err
		}
		t, err := agreement.ParseType(typeName)
		if err != nil {
			return nil, err
		}
		out = append(out, agreement.New(a, b, t))
	}
	return out, rows.Err()
}

type MatchRow struct {
	MatchID string
	Seed    int64
	Mode    string
	Ticks   int
	Rounds  int
	Winner  int
	Digest  string
	Results []string
}

// Match returns the recorded outcome of a finished match.
func (s *SQLiteIndex) Match(ctx context.Context, matchID string) (MatchRow, bool, error) {
	var m MatchRow
	err := s.db.QueryRowContext(ctx,
		`SELECT match_id,seed,mode,ticks,rounds,winner,digest FROM matches WHERE match_id = ?`, matchID,
	).Scan(&m.MatchID, &m.Seed, &m.Mode, &m.Ticks, &m.Rounds, &m.Winner, &m.Digest)
	if err == sql.ErrNoRows {
		return MatchRow{}, false, nil
	}
	if err != nil {
		return MatchRow{}, false, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT result FROM results WHERE match_id = ? ORDER BY agent`, matchID)
	if err != nil {
		return MatchRow{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return MatchRow{}, false, err
		}
		m.Results = append(m.Results, r)
	}
	return m, true, rows.Err()
}

// LatestSnapshot returns the path and tick of the newest indexed snapshot of
// a match.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context, matchID string) (string, uint64, bool, error) {
	var (
		path string
		tick int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT path,tick FROM snapshots WHERE match_id = ? ORDER BY tick DESC LIMIT 1`, matchID,
	).Scan(&path, &tick)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return path, uint64(tick), true, nil
}

// TickDigest returns the logged digest of one tick.
func (s *SQLiteIndex) TickDigest(ctx context.Context, matchID string, tick int) (string, bool, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE match_id = ? AND tick = ?`, matchID, tick).Scan(&d)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}
