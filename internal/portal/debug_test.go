package portal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDebugInfo_DisabledWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dbg")
	s := &Session{debugDir: dir, tabCtx: context.Background(), logger: slog.Default()}

	s.SaveDebugInfo("login_error")

	assert.NoDirExists(t, dir)
}

func TestSaveDebugInfo_EnabledCreatesDebugDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dbg")
	s := &Session{debugDir: dir, debugEnabled: true, tabCtx: context.Background(), logger: slog.Default()}

	// capture fails without a browser, but the directory must exist
	s.SaveDebugInfo("login_error")

	assert.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
