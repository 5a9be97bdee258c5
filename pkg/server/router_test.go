package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	config "stock-transfer-api/configs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		TransferLocations: []string{"Mega_Loja", "Mascote"},
		ReportHeaderRow:   32,
		ReportPlaceholder: "-",
		MaxUploadMB:       1,
		EvaluationWorkers: 2,
		TopProducts:       10,
	}
}

func TestNewRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, err := NewRouter(testConfig(), nil)
	require.NoError(t, err)

	testCases := []struct {
		path     string
		expected int
	}{
		{"/health", http.StatusOK},
		{"/api/v1/transfers/locations", http.StatusOK},
		{"/api/v1/monitoring/logs?period=1h", http.StatusOK},
		{"/api/v1/monitoring/analyses", http.StatusOK},
		{"/api/v1/admin/health-status", http.StatusOK},
		{"/api/v1/unknown", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.expected, w.Code)
		})
	}
}

func TestNewRouter_APIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.APIKey = "secret"
	r, err := NewRouter(cfg, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transfers/locations", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/locations", nil)
	req.Header.Set("X-API-KEY", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// ヘルスチェックは認証不要
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TransferLocations = []string{"A", "A"}

	_, err := NewRouter(cfg, nil)
	assert.Error(t, err)
}
