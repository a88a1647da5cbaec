package handoff

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNamespaceIsStablePerDirectory(t *testing.T) {
	a := Namespace("/home/u/projects/api")
	b := Namespace("/home/u/projects/api")
	require.Equal(t, a, b)
}

func TestNamespaceDisambiguatesSameBasename(t *testing.T) {
	a := Namespace("/home/u/projects/api")
	b := Namespace("/srv/other/api")
	require.NotEqual(t, a, b)
	require.Contains(t, a, "api-")
	require.Contains(t, b, "api-")
}

func TestNamespaceIgnoresTrailingSlash(t *testing.T) {
	require.Equal(t, Namespace("/home/u/projects/api"), Namespace("/home/u/projects/api/"))
}

func TestProjectRootWalksUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, MarkerFile), nil, 0o644))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := ProjectRoot(nested)
	require.NoError(t, err)
	// TempDir may itself sit under a symlinked path; compare resolved forms.
	wantResolved, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	require.Equal(t, wantResolved, gotResolved)
}

func TestProjectRootWithoutMarkerFails(t *testing.T) {
	dir := t.TempDir()
	_, err := ProjectRoot(dir)
	require.ErrorIs(t, err, ErrNoProjectRoot)
}

func TestWriterAppendAndRead(t *testing.T) {
	path := PathFor(t.TempDir(), "agent_1")
	w, err := Open(path)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Append(Entry{Time: now, Kind: "classified", Data: "working"}))
	require.NoError(t, w.Append(Entry{Time: now.Add(time.Minute), Kind: "idle"}))
	require.NoError(t, w.Close())

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "classified", entries[0].Kind)
	require.Equal(t, "idle", entries[1].Kind)
	require.True(t, entries[1].Time.After(entries[0].Time))
}

func TestReadToleratesTornTrailingLine(t *testing.T) {
	path := PathFor(t.TempDir(), "agent_1")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(Entry{Kind: "classified"}))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-01-01T12:00:00Z","kind":"cla`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReadMissingFileReturnsNil(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "nope.log"))
	require.NoError(t, err)
	require.Nil(t, entries)
}
