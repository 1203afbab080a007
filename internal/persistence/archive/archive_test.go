package archive

import (
	"os"
	"path/filepath"
	"testing"

	"pommerneg.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path string) []byte {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	return want
}

func TestArchiveFinalSnapshot_CopiesEndedMatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "matches", "m1", "snapshots", "37.snap.zst")
	want := writeDummy(t, src)

	snap := snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: 1, MatchID: "m1", Tick: 37},
		Config:  snapshot.ConfigV1{Seed: 42, Mode: "team"},
		Results: []int{1, 2, 1, 2},
		Ended:   true,
	}

	archivedPath, ok, err := ArchiveFinalSnapshot(dir, src, snap)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok {
		t.Fatalf("expected archived=true")
	}
	if archivedPath != filepath.Join(dir, "archives", "m1", "37.snap.zst") {
		t.Fatalf("archived path: %s", archivedPath)
	}

	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("archived content mismatch: got=%q want=%q", string(got), string(want))
	}

	meta, err := ReadMeta(dir, "m1")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.EndTick != 37 || meta.Seed != 42 || meta.Mode != "team" || len(meta.Results) != 4 || meta.Snapshot != "37.snap.zst" {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestArchiveFinalSnapshot_SkipsRunningMatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "matches", "m1", "snapshots", "10.snap.zst")
	writeDummy(t, src)

	snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: 1, MatchID: "m1", Tick: 10}}
	if _, ok, err := ArchiveFinalSnapshot(dir, src, snap); ok || err != nil {
		t.Fatalf("running match archived: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archives dir created: %v", err)
	}
}
