package handler

import (
	"net/http"
	"sync"

	config "stock-transfer-api/configs"
	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/server"

	"github.com/gin-gonic/gin"
)

var (
	app    http.Handler
	appErr error
	once   sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (http.Handler, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		log := logger.New(logger.Config{Environment: cfg.Environment, Level: cfg.LogLevel})
		log.Info().Msg("🟢 [setupApp] Initializing Gin application")

		gin.SetMode(gin.ReleaseMode)
		app, appErr = server.NewRouter(cfg, log)
		if appErr != nil {
			log.Error().Err(appErr).Msg("❌ [setupApp] Router initialization failed")
		}
	})
	return app, appErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	// Ginアプリケーションをセットアップ（初回のみ実行される）
	h, err := setupApp()
	if err != nil {
		http.Error(w, "service misconfigured", http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}
