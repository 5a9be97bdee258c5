package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	config "stock-transfer-api/configs"
	"stock-transfer-api/pkg/handlers"
	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"
	"stock-transfer-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// APIKeyAuth 認証ミドルウェア（API_KEY未設定なら素通し）
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		providedKey := c.GetHeader("X-API-KEY")
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter builds the gin engine with every service wired from cfg.
func NewRouter(cfg *config.Config, log *logger.Logger) (*gin.Engine, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	locations := make([]models.LocationID, len(cfg.TransferLocations))
	for i, loc := range cfg.TransferLocations {
		locations[i] = models.LocationID(loc)
	}

	// サービスの初期化
	monitoringService := services.NewMonitoringService(log)
	transferService, err := services.NewTransferService(services.TransferServiceConfig{
		Layout: services.ReportLayout{
			HeaderRow:   cfg.ReportHeaderRow,
			SheetName:   cfg.ReportSheet,
			Placeholder: cfg.ReportPlaceholder,
			Locations:   locations,
		},
		Workers: cfg.EvaluationWorkers,
		TopN:    cfg.TopProducts,
	}, monitoringService, log)
	if err != nil {
		return nil, err
	}

	// ハンドラーの初期化
	transferHandler := handlers.NewTransferHandler(transferService, cfg.MaxUploadMB, log)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)
	adminHandler := handlers.NewAdminHandler(cfg, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// ヘルスチェックエンドポイント
	r.GET("/health", adminHandler.HealthCheck)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(APIKeyAuth(cfg.APIKey))
	v1.Use(adminHandler.MaintenanceGuard())
	{
		// 在庫移動提案API
		transfers := v1.Group("/transfers")
		{
			transfers.GET("/locations", transferHandler.Locations)
			transfers.POST("/analyze", transferHandler.Analyze)
			transfers.POST("/export", transferHandler.Export)
			transfers.POST("/evaluate", transferHandler.Evaluate)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
			monitoring.GET("/analyses", monitoringHandler.GetAnalyses)
		}

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}
	}

	log.Info().
		Strs("locations", cfg.TransferLocations).
		Int("header_row", cfg.ReportHeaderRow).
		Int("workers", cfg.EvaluationWorkers).
		Msg("🟢 ルーター初期化完了")
	return r, nil
}
