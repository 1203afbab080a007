// Package arena hosts matches on disk: it fans tick and round records out to
// the JSONL logs and the sqlite index, writes snapshots as they are emitted
// and resumes or verifies matches from what it wrote.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"pommerneg.ai/internal/persistence/archive"
	"pommerneg.ai/internal/persistence/indexdb"
	persistlog "pommerneg.ai/internal/persistence/log"
	"pommerneg.ai/internal/persistence/snapshot"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/engine"
	"pommerneg.ai/internal/sim/match"
	"pommerneg.ai/internal/sim/negotiation"
)

const snapSuffix = ".snap.zst"

// ErrNoSnapshot is returned when a match directory holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot")

type Config struct {
	DataDir string
	// DisableDB skips the sqlite index; the JSONL logs are always written.
	DisableDB bool
	// SnapshotQueue bounds snapshots waiting for the writer. Zero uses 8.
	SnapshotQueue int
	Logger        *log.Logger
}

// Host owns the persistence of one match.
type Host struct {
	log     *log.Logger
	m       *match.Match
	dataDir string
	dir     string

	ticks  *persistlog.TickLogger
	rounds *persistlog.RoundLogger
	idx    *indexdb.SQLiteIndex
	snapCh chan snapshot.SnapshotV1
}

func MatchDir(dataDir, matchID string) string {
	return filepath.Join(dataDir, "matches", matchID)
}

func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "matches.sqlite")
}

// Open wires m to the logs under DataDir/matches/<id> and to the shared index.
func Open(cfg Config, m *match.Match) (*Host, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.SnapshotQueue <= 0 {
		cfg.SnapshotQueue = 8
	}
	dir := MatchDir(cfg.DataDir, m.ID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	h := &Host{
		log:     cfg.Logger,
		m:       m,
		dataDir: cfg.DataDir,
		dir:     dir,
		ticks:   persistlog.NewTickLogger(dir),
		rounds:  persistlog.NewRoundLogger(dir),
		snapCh:  make(chan snapshot.SnapshotV1, cfg.SnapshotQueue),
	}
	if !cfg.DisableDB {
		idx, err := indexdb.OpenSQLite(IndexPath(cfg.DataDir))
		if err != nil {
			_ = h.ticks.Close()
			_ = h.rounds.Close()
			return nil, fmt.Errorf("arena: open index: %w", err)
		}
		h.idx = idx
	}

	m.SetTickLogger(multiTickLogger{a: h.ticks, b: h.idx})
	m.SetRoundLogger(multiRoundLogger{a: h.rounds, b: h.idx})
	m.SetResultRecorder(h.idx)
	m.SetSnapshotSink(h.snapCh)
	return h, nil
}

func (h *Host) Dir() string                 { return h.dir }
func (h *Host) Index() *indexdb.SQLiteIndex { return h.idx }

// Run plays the match to the end and flushes every snapshot and index row it
// produced before returning. An ended match also gets a final snapshot,
// archived under DataDir/archives.
func (h *Host) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case snap := <-h.snapCh:
				h.writeSnapshot(snap)
			case <-done:
				for {
					select {
					case snap := <-h.snapCh:
						h.writeSnapshot(snap)
					default:
						return
					}
				}
			}
		}
	}()

	err := h.m.Run(ctx)
	close(done)
	wg.Wait()
	if h.m.IsEnded() {
		h.writeSnapshot(h.m.Snapshot())
	}

	if h.idx != nil {
		if serr := h.idx.Sync(context.Background()); serr != nil {
			h.log.Printf("[arena] %s index sync: %v", h.m.ID(), serr)
		}
	}
	return err
}

func (h *Host) writeSnapshot(snap snapshot.SnapshotV1) {
	path := filepath.Join(h.dir, "snapshots", fmt.Sprintf("%d%s", snap.Header.Tick, snapSuffix))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		h.log.Printf("[arena] snapshot write: %v", err)
		return
	}
	h.idx.RecordSnapshot(path, snap)
	if archived, ok, err := archive.ArchiveFinalSnapshot(h.dataDir, path, snap); err != nil {
		h.log.Printf("[arena] archive final snapshot: %v", err)
	} else if ok {
		h.log.Printf("[arena] %s archived %s", snap.Header.MatchID, archived)
	}
}

func (h *Host) Close() error {
	var errs []error
	errs = append(errs, h.ticks.Close(), h.rounds.Close())
	if h.idx != nil {
		errs = append(errs, h.idx.Close())
	}
	return errors.Join(errs...)
}

type multiTickLogger struct {
	a match.TickLogger
	b *indexdb.SQLiteIndex
}

// WriteTick returns the JSONL error only; the index is best effort.
func (m multiTickLogger) WriteTick(entry match.TickLogEntry) error {
	_ = m.b.WriteTick(entry)
	if m.a == nil {
		return nil
	}
	return m.a.WriteTick(entry)
}

type multiRoundLogger struct {
	a match.RoundLogger
	b *indexdb.SQLiteIndex
}

func (m multiRoundLogger) WriteRound(entry match.RoundLogEntry) error {
	_ = m.b.WriteRound(entry)
	if m.a == nil {
		return nil
	}
	return m.a.WriteRound(entry)
}

// Snapshots lists the snapshot files of a match directory by ascending tick.
func Snapshots(matchDir string) ([]string, error) {
	dir := filepath.Join(matchDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type snapFile struct {
		path string
		tick uint64
	}
	var files []snapFile
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapSuffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), snapSuffix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapFile{path: filepath.Join(dir, e.Name()), tick: tick})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick < files[j].tick })
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.path)
	}
	return out, nil
}

// ResumeLatest rebuilds a match from the newest snapshot written for matchID.
func ResumeLatest(dataDir, matchID string, cfg match.Config, players [board.NumPlayers]match.Player) (*match.Match, error) {
	paths, err := Snapshots(MatchDir(dataDir, matchID))
	if err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("arena: match %s: %w", matchID, ErrNoSnapshot)
	}
	snap, err := snapshot.ReadSnapshot(paths[len(paths)-1])
	if err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	cfg.ID = matchID
	return match.Resume(cfg, snap, players)
}

// Verify replays the tick log of a match directory from its earliest snapshot
// and returns the model after the last logged tick.
func Verify(matchDir string, cfg negotiation.Config) (*engine.ForwardModel, error) {
	paths, err := Snapshots(matchDir)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("verify: %s: %w", matchDir, ErrNoSnapshot)
	}
	snap, err := snapshot.ReadSnapshot(paths[0])
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	entries, err := persistlog.ReadTicks(matchDir)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return match.Replay(cfg, snap, entries)
}
