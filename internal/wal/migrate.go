package wal

import (
	"fmt"
	"io"
)

// migrate is a versioned-JSON-tree chain: each step rewrites the raw
// snapshot document from one schema version to the next, so ReadSnapshot
// can always hand migrate's caller current-shape JSON regardless of
// which daemon version wrote the file on disk.
//
// There is exactly one version today. A step is added here, never
// rewritten in place, the day snapshotSchemaVersion bumps.
func migrate(fromVersion int, raw []byte) ([]byte, error) {
	if fromVersion > snapshotSchemaVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than this binary supports (%d)", fromVersion, snapshotSchemaVersion)
	}
	// No steps registered yet; fromVersion == snapshotSchemaVersion == 1.
	return raw, nil
}

func decodeAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
