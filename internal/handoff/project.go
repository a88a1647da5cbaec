package handoff

import (
	"fmt"
	"os"
	"path/filepath"
)

// MarkerFile names the runbook file that identifies a directory as a
// project root. A client invokes the CLI from anywhere inside a repo,
// so the anchor is found by walking upward rather than being pinned to
// a fixed location.
const MarkerFile = ".oj.yaml"

// ErrNoProjectRoot is returned when no ancestor of start carries MarkerFile.
var ErrNoProjectRoot = fmt.Errorf("handoff: no %s found in any parent directory", MarkerFile)

// ProjectRoot walks upward from start (a cwd, typically) looking for
// MarkerFile, returning the first ancestor directory that has one.
func ProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}
