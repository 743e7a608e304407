package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
)

const testManifest = `device_id: pixel-7
apps:
  - package_name: com.example.maps
    app_name: Maps
    installer: com.android.vending
    permissions:
      - android.permission.INTERNET
  - package_name: com.example.free
    app_name: Free Games
  - package_name: com.example.locker
    app_name: Locker
    installer: com.android.vending
    permissions:
      - android.permission.BIND_DEVICE_ADMIN
`

// setupEnv points the CLI at a fresh SQLite inventory and an empty scan
// directory, with every external adapter disabled
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scanDir := filepath.Join(dir, "downloads")
	require.NoError(t, os.Mkdir(scanDir, 0o755))

	t.Setenv("APPGUARD_SQLITE_PATH", filepath.Join(dir, "inventory.db"))
	t.Setenv("APPGUARD_SCAN_SCAN_DIR", scanDir)
	t.Setenv("APPGUARD_DATABASE_ENABLED", "false")
	t.Setenv("APPGUARD_REDIS_ENABLED", "false")
	t.Setenv("APPGUARD_NATS_ENABLED", "false")
	t.Setenv("APPGUARD_VIRUSTOTAL_ENABLED", "false")
	t.Setenv("APPGUARD_SAFEBROWSING_ENABLED", "false")
	t.Setenv("APPGUARD_ADVISOR_ENABLED", "false")

	path := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o600))
	return path
}

// run executes the root command with fresh flag state
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, deviceID, jsonOutput, verbose = "", "", false, false
	emailSender, emailSubject, emailBody, filesCleanup = "", "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportAndListApps(t *testing.T) {
	manifestPath := setupEnv(t)

	out, err := run(t, "import", manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "Imported 3 apps for device pixel-7\n", out)

	out, err = run(t, "apps", "--device", "pixel-7")
	require.NoError(t, err)
	assert.Contains(t, out, "com.example.maps")
	assert.Contains(t, out, "com.example.locker")
	assert.Contains(t, out, "3 apps\n")

	out, err = run(t, "apps", "--device", "pixel-7", "--json")
	require.NoError(t, err)
	var apps []models.AppFacts
	require.NoError(t, json.Unmarshal([]byte(out), &apps))
	assert.Len(t, apps, 3)
}

func TestImportOverridesDevice(t *testing.T) {
	manifestPath := setupEnv(t)

	_, err := run(t, "import", manifestPath, "--device", "tablet")
	require.NoError(t, err)

	out, err := run(t, "apps", "-d", "tablet")
	require.NoError(t, err)
	assert.Contains(t, out, "3 apps")
}

func TestScanCommand(t *testing.T) {
	manifestPath := setupEnv(t)
	_, err := run(t, "import", manifestPath)
	require.NoError(t, err)

	out, err := run(t, "scan", "--device", "pixel-7")
	require.NoError(t, err)
	assert.Contains(t, out, "[ 33%] 1/3 Maps")
	assert.Contains(t, out, "[100%] 3/3 Locker")
	assert.Contains(t, out, "on pixel-7: completed")

	out, err = run(t, "scan", "--device", "pixel-7", "--json")
	require.NoError(t, err)
	var summary models.ScanSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, models.ScanStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.SafeApps)
	assert.Equal(t, 1, summary.RiskyApps)
	assert.Equal(t, 1, summary.MalwareApps)
	assert.Equal(t, 3, summary.TotalAppsScanned)
}

func TestScanUnknownDevice(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "scan", "--device", "ghost", "--json")
	require.Error(t, err)
	var summary models.ScanSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, models.ScanStatusFailed, summary.Status)
}

func TestAnalyzeCommand(t *testing.T) {
	manifestPath := setupEnv(t)
	_, err := run(t, "import", manifestPath)
	require.NoError(t, err)

	tests := []struct {
		name    string
		pkg     string
		level   models.RiskLevel
		wantErr error
	}{
		{name: "store app", pkg: "com.example.maps", level: models.RiskLevelSafe},
		{name: "sideloaded", pkg: "com.example.free", level: models.RiskLevelRisky},
		{name: "device admin", pkg: "com.example.locker", level: models.RiskLevelMalware},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "analyze", tt.pkg, "--device", "pixel-7", "--json")
			require.NoError(t, err)
			var res models.AnalysisResult
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.level, res.RiskLevel)
		})
	}

	t.Run("not installed", func(t *testing.T) {
		_, err := run(t, "analyze", "com.example.none", "--device", "pixel-7")
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrAppNotFound)
	})
}

func TestCommandsNeedDevice(t *testing.T) {
	setupEnv(t)

	for _, args := range [][]string{{"apps"}, {"scan"}, {"analyze", "com.example.maps"}} {
		t.Run(args[0], func(t *testing.T) {
			_, err := run(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no device selected")
		})
	}
}

func TestFileCommand(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	out, err := run(t, "file", path, "--json")
	require.NoError(t, err)

	var res models.FileScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "notes.txt", res.FileName)
	assert.Equal(t, int64(5), res.FileSize)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", res.SHA256)
	assert.Equal(t, models.FileThreatLevelSafe, res.ThreatLevel)
	assert.Equal(t, models.FileScanLocalComplete, res.ScanDetails)
}

func TestEmailCommand(t *testing.T) {
	_, err := run(t, "email")
	require.Error(t, err)

	out, err := run(t, "email", "--subject", "Team lunch", "--body", "See you at noon", "--json")
	require.NoError(t, err)
	var res models.EmailScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.IsPhishing)
}

func TestFilesCommand(t *testing.T) {
	setupEnv(t)
	scanDir := os.Getenv("APPGUARD_SCAN_SCAN_DIR")
	require.NoError(t, os.WriteFile(filepath.Join(scanDir, "payload.apk"), []byte("x"), 0o600))

	out, err := run(t, "files", "--json")
	require.NoError(t, err)
	var report models.SuspiciousFilesReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, scanDir, report.Directory)
	assert.Len(t, report.Files, 1)
	assert.Equal(t, models.RiskLevelRisky, report.Level)

	out, err = run(t, "files", "--cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "(dry run)")
}

func TestURLCommandNeedsKey(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "url", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Safe Browsing API key")
}

func TestAdaptersCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "adapters")
	require.NoError(t, err)
	assert.Contains(t, out, "virustotal")
	assert.Contains(t, out, "safebrowsing")
	assert.Contains(t, out, "not configured")
}

type scriptedAssistant struct {
	histories [][]models.ChatMessage
	fail      string
}

func (s *scriptedAssistant) IsConfigured() bool { return true }

func (s *scriptedAssistant) Chat(_ context.Context, history []models.ChatMessage, question string) (*models.ChatReply, error) {
	s.histories = append(s.histories, history)
	if question == s.fail {
		return nil, errors.New("provider down")
	}
	return &models.ChatReply{Reply: "answer: " + question}, nil
}

func TestChatLoop(t *testing.T) {
	a := &scriptedAssistant{fail: "broken"}
	in := strings.NewReader("is this safe?\n\nbroken\nand now?\nexit\nignored\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), a, in, &out, false))

	assert.Equal(t, "answer: is this safe?\nassistant error: provider down\nanswer: and now?\n", out.String())
	require.Len(t, a.histories, 3)
	assert.Empty(t, a.histories[0])
	assert.Len(t, a.histories[2], 2)
	assert.Equal(t, "is this safe?", a.histories[2][0].Content)
}

func TestChatLoopBoundsHistory(t *testing.T) {
	a := &scriptedAssistant{}
	var in strings.Builder
	for i := 0; i < 15; i++ {
		in.WriteString("question\n")
	}

	require.NoError(t, chatLoop(context.Background(), a, strings.NewReader(in.String()), &bytes.Buffer{}, false))
	require.Len(t, a.histories, 15)
	assert.Len(t, a.histories[14], maxChatTurns)
}
