package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	config "stock-transfer-api/configs"
	"stock-transfer-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)

	// .envファイルを読み込み（テスト環境では無視される可能性がある）
	godotenv.Load("../../.env")

	// テスト実行
	code := m.Run()

	// 終了
	os.Exit(code)
}

func TestApplicationSetup(t *testing.T) {
	// 設定の読み込みテスト
	t.Setenv("TRANSFER_LOCATIONS", "")
	t.Setenv("API_KEY", "")
	cfg := config.LoadConfig()
	require.NotNil(t, cfg, "Config should not be nil")
	assert.NoError(t, cfg.Validate())

	r, err := server.NewRouter(cfg, nil)
	require.NoError(t, err)

	// ヘルスチェックのテスト
	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 店舗一覧のテスト
	req, _ = http.NewRequest("GET", "/api/v1/transfers/locations", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Praia_Grande")
}
