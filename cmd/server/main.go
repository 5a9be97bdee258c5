package main

import (
	"os"

	config "stock-transfer-api/configs"
	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 設定の読み込み
	cfg := config.LoadConfig()
	log := logger.New(logger.Config{Environment: cfg.Environment, Level: cfg.LogLevel})
	if envErr != nil {
		log.Warn().Err(envErr).Msg(".env file not found or could not be loaded")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := server.NewRouter(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to build router")
		os.Exit(1)
	}

	log.Info().Str("port", cfg.Port).Msg("Starting stock transfer API server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
