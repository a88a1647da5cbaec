package cli

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCmdPrintsVersion(t *testing.T) {
	original := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = original }()

	cmd := newVersionCmd("v9.9.9")
	require.NoError(t, cmd.Execute())

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)

	require.True(t, strings.Contains(buf.String(), "v9.9.9"))
	require.True(t, strings.Contains(buf.String(), "\"success\":true"))
}
