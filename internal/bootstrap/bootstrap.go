// Package bootstrap builds the components shared by the API server and the
// command line client from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/domain/services/ai"
	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/internal/infrastructure/database"
	"appguard-lab/internal/infrastructure/database/repository"
	"appguard-lab/internal/infrastructure/sqlite"
	"appguard-lab/internal/sources"
	"appguard-lab/internal/sources/safebrowsing"
	"appguard-lab/internal/sources/virustotal"
	"appguard-lab/pkg/logger"
)

// NewLogger creates the process logger from configuration
func NewLogger(cfg *config.Config) *logger.Logger {
	lc := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	if cfg.App.Debug {
		lc.Level = "debug"
	}
	return logger.New(lc)
}

// Adapters are the external lookup clients
type Adapters struct {
	VirusTotal   *virustotal.Client
	SafeBrowsing *safebrowsing.Client
	Advisor      *ai.Advisor
	Registry     *sources.Registry
}

// NewAdapters builds every adapter and registers it. store caches lookups;
// it must not be nil.
func NewAdapters(cfg *config.Config, store cache.Store, log *logger.Logger) (*Adapters, error) {
	a := &Adapters{
		VirusTotal:   virustotal.NewClient(cfg.VirusTotal, store, log),
		SafeBrowsing: safebrowsing.NewClient(cfg.SafeBrowsing, store, log),
		Advisor:      ai.NewAdvisor(cfg.Advisor, log),
		Registry:     sources.NewRegistry(log),
	}

	for _, adapter := range []sources.Adapter{a.VirusTotal, a.SafeBrowsing, a.Advisor} {
		if err := a.Registry.Register(adapter); err != nil {
			return nil, fmt.Errorf("failed to register adapter: %w", err)
		}
	}

	log.Info().
		Int("configured", a.Registry.CountConfigured()).
		Msg("external adapters registered")
	return a, nil
}

// NewAnalyzer wires the risk analyzer onto an inventory and the adapters
func (a *Adapters) NewAnalyzer(cfg *config.Config, provenance services.ProvenanceSource, log *logger.Logger) *services.RiskAnalyzer {
	return services.NewRiskAnalyzer(provenance, a.VirusTotal, a.Advisor, services.AnalyzerConfigFrom(cfg), log)
}

// NewFileScanner wires the single-file scanner onto VirusTotal
func (a *Adapters) NewFileScanner(cfg *config.Config, log *logger.Logger) *services.FileScanner {
	return services.NewFileScanner(a.VirusTotal, cfg.Scan.AdapterTimeout, log)
}

// Inventory is an opened inventory backend
type Inventory struct {
	services.InventoryStore
	Backend string
	ping    func(ctx context.Context) error
	close   func()
}

// Ping verifies the backend is reachable
func (i *Inventory) Ping(ctx context.Context) error {
	return i.ping(ctx)
}

// Close releases the backend
func (i *Inventory) Close() {
	i.close()
}

// OpenInventory connects to PostgreSQL when enabled and falls back to the
// local SQLite file otherwise
func OpenInventory(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Inventory, error) {
	if cfg.Database.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database, log)
		if err == nil {
			if err = db.Migrate(ctx); err == nil {
				return &Inventory{
					InventoryStore: repository.NewInventoryRepository(db.Pool(), log),
					Backend:        "postgres",
					ping:           db.Ping,
					close:          db.Close,
				}, nil
			}
			db.Close()
		}
		log.Warn().Err(err).Msg("PostgreSQL unavailable, falling back to SQLite inventory")
	}

	store, err := sqlite.Open(ctx, cfg.SQLite.Path, log)
	if err != nil {
		return nil, err
	}
	return &Inventory{
		InventoryStore: store,
		Backend:        "sqlite",
		ping:           store.Ping,
		close:          func() { store.Close() },
	}, nil
}

// OpenCache connects to Redis when enabled. The returned store is always
// usable; redis is nil when the in-memory store is used instead.
func OpenCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (store cache.Store, redis *cache.RedisCache) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedis(ctx, cfg.Redis, log)
		if err == nil {
			return rc, rc
		}
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryStore(), nil
}
