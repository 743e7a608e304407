package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

// sha256("hello")
const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func uuidFrom(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func writeHello(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	return path
}

func TestHashFile(t *testing.T) {
	got, err := HashFile(writeHello(t, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, helloSHA, got)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFileScannerScanFile(t *testing.T) {
	tests := []struct {
		name        string
		rep         FileReputation
		wantLevel   string
		wantDetails string
		wantThreat  bool
	}{
		{
			name:        "no reputation service",
			rep:         nil,
			wantLevel:   models.FileThreatLevelSafe,
			wantDetails: models.FileScanLocalComplete,
		},
		{
			name:        "reputation not configured",
			rep:         &fakeReputation{verdict: models.NewReputationVerdict(3, 0, 50, 10)},
			wantLevel:   models.FileThreatLevelSafe,
			wantDetails: models.FileScanLocalComplete,
		},
		{
			name:        "detected",
			rep:         &fakeReputation{configured: true, verdict: models.NewReputationVerdict(3, 0, 50, 10)},
			wantLevel:   models.VerdictMalware,
			wantDetails: "3 / 63 engines detected threats",
			wantThreat:  true,
		},
		{
			name:        "unknown hash",
			rep:         &fakeReputation{configured: true, verdict: models.NotFoundVerdict()},
			wantLevel:   models.VerdictNotFound,
			wantDetails: "No data available",
		},
		{
			name:        "lookup failed",
			rep:         &fakeReputation{configured: true, err: errors.New("boom")},
			wantLevel:   models.FileThreatLevelSafe,
			wantDetails: "VirusTotal scan failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeHello(t, "Installer.APK")
			s := NewFileScanner(tt.rep, 0, logger.NewNop())

			res, err := s.ScanFile(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, "Installer.APK", res.FileName)
			assert.Equal(t, path, res.FilePath)
			assert.Equal(t, int64(5), res.FileSize)
			assert.Equal(t, "apk", res.FileExtension)
			assert.Equal(t, helloSHA, res.SHA256)
			assert.Equal(t, tt.wantLevel, res.ThreatLevel)
			assert.Equal(t, tt.wantDetails, res.ScanDetails)
			assert.Equal(t, tt.wantThreat, res.ThreatDetected)
		})
	}
}

func TestFileScannerRejectsDirectories(t *testing.T) {
	s := NewFileScanner(nil, 0, logger.NewNop())

	_, err := s.ScanFile(context.Background(), t.TempDir())
	assert.Error(t, err)

	_, err = s.ScanFile(context.Background(), filepath.Join(t.TempDir(), "nope.exe"))
	assert.Error(t, err)
}

func TestFileScannerScanHashNormalisesInput(t *testing.T) {
	s := NewFileScanner(nil, 0, logger.NewNop())
	res := s.ScanHash(context.Background(), "noext", 10, "ABCDEF")
	assert.Equal(t, "abcdef", res.SHA256)
	assert.Empty(t, res.FileExtension)
}
