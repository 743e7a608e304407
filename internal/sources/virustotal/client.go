package virustotal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

const (
	slug           = "virustotal"
	defaultBaseURL = "https://www.virustotal.com/api/v3"

	// public API tier: 4 requests/minute
	requestsPerWindow = 4
	notFoundTTL       = time.Hour
)

// Client looks up file hashes against the VirusTotal v3 API
type Client struct {
	*sources.BaseAdapter
	baseURL     string
	httpClient  *http.Client
	cache       cache.Store
	rateLimiter *sources.RateLimiter
	logger      *logger.Logger
}

// NewClient creates a new VirusTotal client. store may be nil.
func NewClient(cfg config.AdapterConfig, store cache.Store, log *logger.Logger) *Client {
	base := sources.NewBaseAdapter(slug, "VirusTotal", cfg)
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseAdapter: base,
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout: base.Config().Timeout,
		},
		cache:       store,
		rateLimiter: sources.NewRateLimiter(requestsPerWindow, time.Minute),
		logger:      log.WithComponent("virustotal"),
	}
}

type fileResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			SHA256            string         `json:"sha256"`
			LastAnalysisStats map[string]int `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// LookupHash fetches the last analysis statistics for a sha256 hash.
// Unknown hashes yield a "Not found in database" verdict, not an error.
func (c *Client) LookupHash(ctx context.Context, hash string) (*models.ReputationVerdict, error) {
	if !c.IsConfigured() {
		return nil, sources.ErrNotConfigured
	}

	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return nil, errors.New("empty hash")
	}

	cacheKey := cache.KeyFileReputationPrefix + hash
	if c.cache != nil {
		var cached models.ReputationVerdict
		if err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			c.logger.Debug().Str("hash", shortHash(hash)).Msg("cache hit")
			return &cached, nil
		}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, sources.Unavailable("rate limit wait: %v", err)
	}

	url := fmt.Sprintf("%s/files/%s", c.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-apikey", c.APIKey())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sources.Unavailable("request failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		verdict := models.NotFoundVerdict()
		c.store(ctx, cacheKey, verdict, notFoundTTL)
		return verdict, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, sources.ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, sources.Unavailable("VT API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, sources.Unavailable("failed to decode response: %v", err)
	}

	stats := parsed.Data.Attributes.LastAnalysisStats
	verdict := models.NewReputationVerdict(
		stats["malicious"],
		stats["suspicious"],
		stats["harmless"],
		stats["undetected"],
	)
	c.store(ctx, cacheKey, verdict, c.Config().CacheTTL)

	c.logger.Info().
		Str("hash", shortHash(hash)).
		Int("malicious", verdict.Malicious).
		Int("total", verdict.TotalEngines()).
		Msg("VT lookup complete")

	return verdict, nil
}

func (c *Client) store(ctx context.Context, key string, v *models.ReputationVerdict, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, key, v, ttl); err != nil {
		c.logger.Debug().Err(err).Msg("failed to cache verdict")
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
