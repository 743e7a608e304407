package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

const (
	slug           = "safebrowsing"
	defaultBaseURL = "https://safebrowsing.googleapis.com/v4"

	clientID      = "SecurityScanner"
	clientVersion = "1.0.0"
)

// ThreatType is a Safe Browsing threat list
type ThreatType string

const (
	ThreatTypeMalware    ThreatType = "MALWARE"
	ThreatTypeSocialEng  ThreatType = "SOCIAL_ENGINEERING"
	ThreatTypeUnwantedSW ThreatType = "UNWANTED_SOFTWARE"
)

// PlatformAnyPlatform matches every platform list
const PlatformAnyPlatform = "ANY_PLATFORM"

// Client checks URLs against the Safe Browsing v4 Lookup API
type Client struct {
	*sources.BaseAdapter
	baseURL    string
	httpClient *http.Client
	cache      cache.Store
	logger     *logger.Logger
}

// NewClient creates a new Safe Browsing client. store may be nil.
func NewClient(cfg config.AdapterConfig, store cache.Store, log *logger.Logger) *Client {
	base := sources.NewBaseAdapter(slug, "Google Safe Browsing", cfg)
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
		cache:  store,
		logger: log.WithComponent("safebrowsing"),
	}
}

type lookupRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type threatInfo struct {
	ThreatTypes      []ThreatType  `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type lookupResponse struct {
	Matches []struct {
		ThreatType   string      `json:"threatType"`
		PlatformType string      `json:"platformType"`
		Threat       threatEntry `json:"threat"`
	} `json:"matches"`
}

// CheckURL reports whether url is on a threat list. The first match wins;
// no match yields {false, "SAFE", "N/A"}.
func (c *Client) CheckURL(ctx context.Context, url string) (*models.URLVerdict, error) {
	if !c.IsConfigured() {
		return nil, sources.ErrNotConfigured
	}

	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("empty url")
	}

	cacheKey := cache.KeyURLReputationPrefix + url
	if c.cache != nil {
		var cached models.URLVerdict
		if err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	reqBody := lookupRequest{
		ThreatInfo: threatInfo{
			ThreatTypes:      []ThreatType{ThreatTypeMalware, ThreatTypeSocialEng, ThreatTypeUnwantedSW},
			PlatformTypes:    []string{PlatformAnyPlatform},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: url}},
		},
	}
	reqBody.Client.ClientID = clientID
	reqBody.Client.ClientVersion = clientVersion

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/threatMatches:find?key=%s", c.baseURL, c.APIKey())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sources.Unavailable("failed to lookup URL: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, sources.ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, sources.Unavailable("Safe Browsing API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, sources.Unavailable("failed to decode response: %v", err)
	}

	verdict := models.SafeURLVerdict(url)
	if len(parsed.Matches) > 0 {
		m := parsed.Matches[0]
		verdict = &models.URLVerdict{
			URL:          url,
			IsThreat:     true,
			ThreatType:   m.ThreatType,
			PlatformType: m.PlatformType,
		}
		c.logger.Info().Str("url", url).Str("threat_type", m.ThreatType).Msg("URL matched threat list")
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, verdict, c.Config().CacheTTL); err != nil {
			c.logger.Debug().Err(err).Msg("failed to cache verdict")
		}
	}

	return verdict, nil
}
