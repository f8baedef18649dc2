package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFileName(t *testing.T) {
	ts := time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "formulator-2026-10-18-15-30.log", LogFileName("formulator", ts))
}

func TestInitLogger_WritesKeyvals(t *testing.T) {
	testChdir(t, t.TempDir())

	require.NoError(t, InitLogger(""))
	Info("candidate evaluated", "attempt", 1, "status", "error")
	Warn("dangling key", "orphan")
	Close()

	files, err := filepath.Glob(DefaultLogPrefix + "-*.log")
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "INFO: Logger initialized")
	assert.Contains(t, content, "INFO: candidate evaluated attempt=1 status=error")
	assert.Contains(t, content, "WARN: dangling key\n")
}

func TestLog_NoopWithoutInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("nobody listens", "k", "v")
	})
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
