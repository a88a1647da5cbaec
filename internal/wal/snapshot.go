package wal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/orchestratord/oj/internal/model"
)

// snapshotSchemaVersion is bumped whenever model.State's on-disk shape
// changes in a way migrate.go must handle.
const snapshotSchemaVersion = 1

// SnapshotEnvelope is the on-disk container written to snapshot.json.zst:
// a schema version the reader can branch on before unmarshalling State,
// plus the WAL seq the snapshot was taken at (everything <= Seq in the
// WAL is already reflected in State and can be trimmed).
type SnapshotEnvelope struct {
	Version int         `json:"version"`
	Seq     uint64      `json:"seq"`
	State   model.State `json:"state"`
}

// WriteSnapshot compresses and durably writes state as of seq to
// dir/wal/snapshot.json.zst, following the write-tmp / sync / rename /
// sync-dir sequence so a crash mid-write never leaves a torn snapshot
// visible at the canonical path.
func WriteSnapshot(dir string, seq uint64, state model.State) error {
	walDir := filepath.Join(dir, "wal")
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return fmt.Errorf("create wal dir: %w", err)
	}
	final := filepath.Join(walDir, "snapshot.json.zst")
	tmp := final + ".tmp"

	raw, err := json.Marshal(SnapshotEnvelope{Version: snapshotSchemaVersion, Seq: seq, State: state})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create snapshot tmp: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("new zstd writer: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close zstd writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("fsync snapshot tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return syncDir(walDir)
}

// ReadSnapshot loads dir/wal/snapshot.json.zst, running any needed
// migration first. A missing snapshot is not an error: it reports
// ok=false so the caller replays the WAL from the beginning.
func ReadSnapshot(dir string) (env SnapshotEnvelope, ok bool, err error) {
	path := filepath.Join(dir, "wal", "snapshot.json.zst")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return SnapshotEnvelope{}, false, nil
	}
	if err != nil {
		return SnapshotEnvelope{}, false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return SnapshotEnvelope{}, false, fmt.Errorf("new zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := decodeAll(dec)
	if err != nil {
		return SnapshotEnvelope{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var versioned struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &versioned); err != nil {
		return SnapshotEnvelope{}, false, fmt.Errorf("parse snapshot version: %w", err)
	}
	raw, err = migrate(versioned.Version, raw)
	if err != nil {
		return SnapshotEnvelope{}, false, err
	}

	if err := json.Unmarshal(raw, &env); err != nil {
		return SnapshotEnvelope{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return env, true, nil
}
