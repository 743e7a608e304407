// Package cli implements the appguard command line client. It runs the
// same analysis as the API server against a local inventory.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"appguard-lab/internal/bootstrap"
	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/pkg/logger"
)

var (
	configPath string
	deviceID   string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "appguard",
	Short: "AppGuard - mobile app risk scanner",
	Long: `AppGuard classifies the installed apps of a device as Safe, Risky or
Malware from their permissions, installation source, suspicious files and
optional reputation lookups.

Import a device inventory first, then scan it:

  appguard import inventory.yaml
  appguard scan --device pixel-7`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&deviceID, "device", "d", os.Getenv("APPGUARD_DEVICE"), "Device id of the inventory to use")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
}

// Execute runs the root command
func Execute() error {
	// .env is optional
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// env is what a command needs from configuration
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	inventory *bootstrap.Inventory
	redis     *cache.RedisCache
	adapters  *bootstrap.Adapters
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "console", TimeFormat: "15:04:05", Output: os.Stderr})

	inventory, err := bootstrap.OpenInventory(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}

	e := &env{cfg: cfg, log: log, inventory: inventory}

	var store cache.Store
	store, e.redis = bootstrap.OpenCache(ctx, cfg, log)
	e.adapters, err = bootstrap.NewAdapters(cfg, store, log)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) Close() {
	if e.redis != nil {
		e.redis.Close()
	}
	e.inventory.Close()
}

func (e *env) analyzer() *services.RiskAnalyzer {
	return e.adapters.NewAnalyzer(e.cfg, e.inventory, e.log)
}

func requireDevice() error {
	if deviceID == "" {
		return fmt.Errorf("no device selected: pass --device or set APPGUARD_DEVICE")
	}
	return nil
}

// emit prints v as JSON when --json is set and with render otherwise
func emit(w io.Writer, v interface{}, render func(io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(w)
	return nil
}
