package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"pommerneg.ai/internal/sim/match"
)

// ListFiles returns the prefix-*.jsonl.zst files in dir in write order.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTicks loads every tick entry written by a TickLogger for matchDir.
func ReadTicks(matchDir string) ([]match.TickLogEntry, error) {
	return readAll[match.TickLogEntry](filepath.Join(matchDir, TickDir), TickPrefix)
}

// ReadRounds loads every round entry written by a RoundLogger for matchDir.
func ReadRounds(matchDir string) ([]match.RoundLogEntry, error) {
	return readAll[match.RoundLogEntry](filepath.Join(matchDir, RoundDir), RoundPrefix)
}

func readAll[T any](dir, prefix string) ([]T, error) {
	files, err := ListFiles(dir, prefix)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, path := range files {
		if err := readFile(path, func(v T) { out = append(out, v) }); err != nil {
			return out, err
		}
	}
	return out, nil
}

func readFile[T any](path string, fn func(T)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(v)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
