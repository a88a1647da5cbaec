package handoff

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Namespace derives a stable namespace tag from a client-supplied project
// directory: the directory's base name kept human-readable, suffixed
// with a short hash of its cleaned absolute form so two differently-located
// directories that happen to share a name never collide.
//
// projectDir should already be absolute (ProjectRoot returns one); a
// relative path is cleaned as given rather than resolved against cwd, so
// callers that already have an absolute root don't pay a redundant stat.
func Namespace(projectDir string) string {
	clean := filepath.Clean(projectDir)
	sum := sha256.Sum256([]byte(clean))
	suffix := hex.EncodeToString(sum[:])[:8]
	return filepath.Base(clean) + "-" + suffix
}
