package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"pommerneg.ai/internal/sim/agreement"
	"pommerneg.ai/internal/sim/board"
)

// Digest hashes every piece of state that influences future ticks. Two models
// with equal digests evolve identically under equal actions.
func (m *ForwardModel) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteI64(h, &tmp, int64(m.tick))
	digestWriteI64(h, &tmp, int64(m.viewer))
	h.Write([]byte{boolByte(m.ended)})
	for _, r := range m.results {
		digestWriteI64(h, &tmp, int64(r))
	}

	var row [board.Size]byte
	for r := range m.terrain {
		for c, t := range m.terrain[r] {
			row[c] = byte(t)
		}
		h.Write(row[:])
	}

	for _, a := range m.avatars {
		digestWriteI64(h, &tmp, int64(a.Pos.Row))
		digestWriteI64(h, &tmp, int64(a.Pos.Col))
		digestWriteI64(h, &tmp, int64(a.Ammo))
		digestWriteI64(h, &tmp, int64(a.BlastStrength))
		digestWriteI64(h, &tmp, int64(a.VisionRange))
		h.Write([]byte{boolByte(a.Alive), boolByte(a.CanKick)})
	}

	digestWriteU64(h, &tmp, uint64(len(m.bombs)))
	for _, b := range m.bombs {
		digestWriteI64(h, &tmp, int64(b.Owner))
		digestWriteI64(h, &tmp, int64(b.Pos.Row))
		digestWriteI64(h, &tmp, int64(b.Pos.Col))
		digestWriteI64(h, &tmp, int64(b.BlastStrength))
		digestWriteI64(h, &tmp, int64(b.Life))
		digestWriteI64(h, &tmp, int64(b.Velocity))
	}

	digestWriteU64(h, &tmp, uint64(len(m.flames)))
	for _, f := range m.flames {
		digestWriteI64(h, &tmp, int64(f.Pos.Row))
		digestWriteI64(h, &tmp, int64(f.Pos.Col))
		digestWriteI64(h, &tmp, int64(f.Life))
		digestWriteI64(h, &tmp, int64(f.Reveal))
	}

	agreements := agreement.Sorted(m.rules.Agreements())
	digestWriteU64(h, &tmp, uint64(len(agreements)))
	for _, g := range agreements {
		digestWriteI64(h, &tmp, int64(g.A))
		digestWriteI64(h, &tmp, int64(g.B))
		digestWriteI64(h, &tmp, int64(g.Type))
	}

	if st, err := m.pcg.MarshalBinary(); err == nil {
		h.Write(st)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
