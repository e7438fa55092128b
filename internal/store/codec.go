package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
)

// SnapshotMagic prefixes every snapshot blob.
const SnapshotMagic = "ARCHSNP1"

const snapshotHeaderSize = len(SnapshotMagic) + 8

var (
	// ErrSnapshotCorrupt is returned when a blob fails the magic, checksum or decode checks.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
	// ErrSnapshotVersion is returned for an envelope without a known version.
	ErrSnapshotVersion = errors.New("unknown snapshot version")
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Snapshot is the consolidated content of every secondary index.
type Snapshot struct {
	Users UserSnapshot            `json:"users"`
	Kinds map[string]KindSnapshot `json:"kinds"`
}

// UserSnapshot holds the user indices.
type UserSnapshot struct {
	Existence  []user.PrimaryKey             `json:"existence"`
	Principals map[user.ID]user.PrimaryKey   `json:"principals"`
	IDs        map[user.PrimaryKey]user.ID   `json:"ids"`
	Names      map[user.PrimaryKey]user.Name `json:"names"`
}

// KindSnapshot holds the indices of one entity kind.
type KindSnapshot struct {
	Counter     entityid.CounterState      `json:"counter"`
	Titles      map[entityid.ID]post.Title `json:"titles"`
	LeadAuthors []post.Summary             `json:"lead_authors"`
}

type snapshotEnvelope struct {
	V1 *Snapshot `json:"v1,omitempty"`
}

// EncodeSnapshot serializes snap into the blob format: magic, xxhash64 of
// the compressed payload, then the zstd-compressed JSON envelope.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snapshotEnvelope{V1: snap})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(payload, nil)

	out := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(compressed))
	copy(out, SnapshotMagic)
	binary.BigEndian.PutUint64(out[len(SnapshotMagic):], xxhash.Sum64(compressed))
	return append(out, compressed...), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Any mismatch yields an error
// wrapping ErrSnapshotCorrupt or ErrSnapshotVersion.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < snapshotHeaderSize || !bytes.Equal(data[:len(SnapshotMagic)], []byte(SnapshotMagic)) {
		return nil, fmt.Errorf("%w: bad header", ErrSnapshotCorrupt)
	}
	sum := binary.BigEndian.Uint64(data[len(SnapshotMagic):snapshotHeaderSize])
	compressed := data[snapshotHeaderSize:]
	if xxhash.Sum64(compressed) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}
	payload, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}
	if env.V1 == nil {
		return nil, ErrSnapshotVersion
	}
	return env.V1, nil
}
