package virustotal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/internal/config"
	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/infrastructure/cache"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

const testHash = "275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f"

func newTestClient(t *testing.T, url string, store cache.Store) *Client {
	t.Helper()
	cfg := config.AdapterConfig{
		Enabled:  true,
		APIKey:   "test-key",
		BaseURL:  url,
		Timeout:  2 * time.Second,
		CacheTTL: time.Hour,
	}
	return NewClient(cfg, store, logger.NewNop())
}

func TestLookupHash(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantResult *models.ReputationVerdict
	}{
		{
			name:   "malicious",
			status: http.StatusOK,
			body:   `{"data":{"id":"x","attributes":{"last_analysis_stats":{"malicious":7,"suspicious":1,"harmless":50,"undetected":12}}}}`,
			wantResult: &models.ReputationVerdict{
				Malicious: 7, Suspicious: 1, Harmless: 50, Undetected: 12,
				Verdict: models.VerdictMalware, Found: true,
			},
		},
		{
			name:   "suspicious only",
			status: http.StatusOK,
			body:   `{"data":{"attributes":{"last_analysis_stats":{"suspicious":2,"harmless":60}}}}`,
			wantResult: &models.ReputationVerdict{
				Suspicious: 2, Harmless: 60, Verdict: models.VerdictSuspicious, Found: true,
			},
		},
		{
			name:   "clean",
			status: http.StatusOK,
			body:   `{"data":{"attributes":{"last_analysis_stats":{"harmless":60,"undetected":10}}}}`,
			wantResult: &models.ReputationVerdict{
				Harmless: 60, Undetected: 10, Verdict: models.VerdictClean, Found: true,
			},
		},
		{
			name:       "not found",
			status:     http.StatusNotFound,
			wantResult: &models.ReputationVerdict{Verdict: models.VerdictNotFound},
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			wantErr: sources.ErrUnauthorized,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			wantErr: sources.ErrUnavailable,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{not json`,
			wantErr: sources.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/files/"+testHash, r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-apikey"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, nil)
			got, err := c.LookupHash(context.Background(), testHash)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, got)
		})
	}
}

func TestLookupHashNotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AdapterConfig
	}{
		{"disabled", config.AdapterConfig{Enabled: false, APIKey: "k"}},
		{"blank key", config.AdapterConfig{Enabled: true, APIKey: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, nil, logger.NewNop())
			assert.False(t, c.IsConfigured())
			_, err := c.LookupHash(context.Background(), testHash)
			assert.ErrorIs(t, err, sources.ErrNotConfigured)
		})
	}
}

func TestLookupHashUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":1}}}}`))
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	c := newTestClient(t, srv.URL, store)

	first, err := c.LookupHash(context.Background(), testHash)
	require.NoError(t, err)
	second, err := c.LookupHash(context.Background(), testHash)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestDetectionRatio(t *testing.T) {
	v := models.NewReputationVerdict(3, 1, 40, 6)
	assert.Equal(t, "4 / 50 engines detected threats", v.DetectionRatio())
	assert.True(t, v.IsThreat())

	var missing *models.ReputationVerdict
	assert.Equal(t, "No data available", missing.DetectionRatio())
	assert.Equal(t, "No data available", models.NotFoundVerdict().DetectionRatio())
}
