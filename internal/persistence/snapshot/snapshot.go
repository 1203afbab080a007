package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	MatchID string `json:"match_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Config ConfigV1 `json:"config"`

	// Terrain is row-major, board.Size*board.Size tile codes.
	Terrain []int `json:"terrain"`

	Avatars    []AvatarV1    `json:"avatars"`
	Bombs      []BombV1      `json:"bombs"`
	Flames     []FlameV1     `json:"flames"`
	Agreements []AgreementV1 `json:"agreements"`

	Results []int `json:"results"`
	Ended   bool  `json:"ended"`
	Viewer  int   `json:"viewer"`

	// RNG is the marshalled PCG state of the match random source.
	RNG []byte `json:"rng"`

	// Round is the negotiation round counter at snapshot time.
	Round int `json:"round"`
}

type ConfigV1 struct {
	Seed                 int64  `json:"seed"`
	Mode                 string `json:"mode"`
	MaxTicks             int    `json:"max_ticks"`
	VisionRange          int    `json:"vision_range"`
	BombLife             int    `json:"bomb_life"`
	FlameLife            int    `json:"flame_life"`
	DefaultAmmo          int    `json:"default_ammo"`
	DefaultBlastStrength int    `json:"default_blast_strength"`
	WoodPowerUpPermille  int    `json:"wood_powerup_permille"`
}

type AvatarV1 struct {
	ID            int  `json:"id"`
	Row           int  `json:"row"`
	Col           int  `json:"col"`
	Ammo          int  `json:"ammo"`
	BlastStrength int  `json:"blast_strength"`
	CanKick       bool `json:"can_kick"`
	Alive         bool `json:"alive"`
	VisionRange   int  `json:"vision_range"`
}

type BombV1 struct {
	Owner         int `json:"owner"`
	Row           int `json:"row"`
	Col           int `json:"col"`
	BlastStrength int `json:"blast_strength"`
	Life          int `json:"life"`
	Velocity      int `json:"velocity"`
}

type FlameV1 struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Life   int `json:"life"`
	Reveal int `json:"reveal"`
}

type AgreementV1 struct {
	A    int `json:"a"`
	B    int `json:"b"`
	Type int `json:"type"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader returns only the json header line, without decoding the body.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	hb, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(hb, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
