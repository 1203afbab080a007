package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pommerneg.ai/internal/persistence/snapshot"
)

type MatchArchiveMeta struct {
	MatchID   string `json:"match_id"`
	EndTick   uint64 `json:"end_tick"`
	Seed      int64  `json:"seed"`
	Mode      string `json:"mode"`
	Results   []int  `json:"results"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveFinalSnapshot copies the snapshot of an ended match into
// `dataDir/archives/<match_id>/` next to a meta.json. Snapshots of running
// matches are left alone and reported with archived=false.
func ArchiveFinalSnapshot(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if !snap.Ended {
		return "", false, nil
	}
	if snap.Header.MatchID == "" {
		return "", false, fmt.Errorf("archive: snapshot has no match id")
	}

	archiveDir := filepath.Join(dataDir, "archives", snap.Header.MatchID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := MatchArchiveMeta{
		MatchID:   snap.Header.MatchID,
		EndTick:   snap.Header.Tick,
		Seed:      snap.Config.Seed,
		Mode:      snap.Config.Mode,
		Results:   snap.Results,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta loads the meta.json of an archived match.
func ReadMeta(dataDir, matchID string) (MatchArchiveMeta, error) {
	var meta MatchArchiveMeta
	b, err := os.ReadFile(filepath.Join(dataDir, "archives", matchID, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
