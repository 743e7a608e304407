package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFileHeuristicScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "setup.exe"))
	touch(t, filepath.Join(dir, "tool.jar"))
	touch(t, filepath.Join(dir, "notes.txt"))

	h := NewFileHeuristic(logger.NewNop())

	files := h.Scan(dir)
	assert.Len(t, files, 2)
	assert.Equal(t, models.RiskLevelRisky, ClassifyFileCount(len(files)))

	touch(t, filepath.Join(dir, "INSTALL.APK"))
	files = h.Scan(dir)
	assert.Len(t, files, 3)
	assert.Equal(t, models.RiskLevelMalware, ClassifyFileCount(len(files)))
}

func TestFileHeuristicDescendsOnlyKnownSubdirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Cache", "payload.ps1"))
	touch(t, filepath.Join(dir, "temp", "downloads", "run.bat"))
	touch(t, filepath.Join(dir, "Photos", "evil.exe"))
	touch(t, filepath.Join(dir, "readme.md"))

	files := NewFileHeuristic(logger.NewNop()).Scan(dir)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "Cache", "payload.ps1"),
		filepath.Join(dir, "temp", "downloads", "run.bat"),
	}, files)
}

func TestFileHeuristicMissingDirectory(t *testing.T) {
	h := NewFileHeuristic(logger.NewNop())
	files := h.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, files)
	assert.Equal(t, models.RiskLevelSafe, ClassifyFileCount(len(files)))
}

func TestClassifyFileCount(t *testing.T) {
	tests := []struct {
		n    int
		want models.RiskLevel
	}{
		{0, models.RiskLevelSafe},
		{1, models.RiskLevelRisky},
		{2, models.RiskLevelRisky},
		{3, models.RiskLevelMalware},
		{40, models.RiskLevelMalware},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFileCount(tt.n), "n=%d", tt.n)
	}
}

func TestIsSuspiciousFile(t *testing.T) {
	for _, ext := range SuspiciousExtensions {
		assert.True(t, IsSuspiciousFile("file"+ext), ext)
	}
	assert.True(t, IsSuspiciousFile("Archive.JaR"))
	assert.False(t, IsSuspiciousFile("photo.jpg"))
	assert.False(t, IsSuspiciousFile("apk"))
}

func TestFileHeuristicCleanup(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.exe"))
	touch(t, filepath.Join(dir, "downloads", "b.apk"))
	touch(t, filepath.Join(dir, "c.txt"))

	report := NewFileHeuristic(logger.NewNop()).Cleanup(dir)
	assert.Equal(t, 2, report.Cleaned)
	assert.Equal(t, 0, report.Quarantined)
	assert.Len(t, report.Files, 2)

	// the dry run never removes anything
	_, err := os.Stat(filepath.Join(dir, "a.exe"))
	assert.NoError(t, err)
}

func TestFileHeuristicCleanupReadOnly(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can write read-only files")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.scr")
	touch(t, path)
	require.NoError(t, os.Chmod(path, 0o444))

	report := NewFileHeuristic(logger.NewNop()).Cleanup(dir)
	assert.Equal(t, 0, report.Cleaned)
	assert.Equal(t, 1, report.Quarantined)
}
