package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"

	"github.com/gin-gonic/gin"
)

const (
	// maxAnalysisHistory 保持する分析実行履歴の上限
	maxAnalysisHistory = 100
	// maxRequestLogs 保持するリクエストログの上限（古いものから削除）
	maxRequestLogs = 10000
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はリクエストと分析実行の記録を保持します。
type MonitoringService struct {
	logs     []LogEntry
	analyses []models.AnalysisRun
	mu       sync.RWMutex
	logger   *logger.Logger
	now      func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService(log *logger.Logger) *MonitoringService {
	if log == nil {
		log = logger.Nop()
	}
	return &MonitoringService{
		logs:   make([]LogEntry, 0),
		logger: log,
		now:    time.Now,
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxRequestLogs {
		s.logs = s.logs[len(s.logs)-maxRequestLogs:]
	}
}

// RecordAnalysis keeps the most recent analysis runs, oldest dropped first.
func (s *MonitoringService) RecordAnalysis(run models.AnalysisRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, run)
	if len(s.analyses) > maxAnalysisHistory {
		s.analyses = s.analyses[len(s.analyses)-maxAnalysisHistory:]
	}
}

// RecentAnalyses returns up to limit runs, newest first.
func (s *MonitoringService) RecentAnalyses(limit int) []models.AnalysisRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AnalysisRun, 0, len(s.analyses))
	for i := len(s.analyses) - 1; i >= 0; i-- {
		out = append(out, s.analyses[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		path := c.Request.URL.Path
		elapsed := s.now().Sub(start)
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", elapsed).
			Msg("🌐 request")

		// モニタリング自身へのアクセスは集計しない
		if strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: elapsed,
		})
	}
}

// EndpointStat エンドポイントごとの集計
type EndpointStat struct {
	Endpoint      string `json:"endpoint"`
	Requests      int    `json:"requests"`
	AvgResponseMs int64  `json:"avg_response_ms"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	PeriodHours   int            `json:"period_hours"`
	TotalRequests int            `json:"total_requests"`
	Endpoints     []EndpointStat `json:"endpoints"`
	StatusCodes   map[string]int `json:"status_codes"`
	RecentErrors  []LogEntry     `json:"recent_errors"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0)
	for _, entry := range s.logs {
		if entry.Timestamp.After(since) {
			filtered = append(filtered, entry)
		}
	}

	statusCodes := map[string]int{
		"2xx Success":      0,
		"4xx Client Error": 0,
		"5xx Server Error": 0,
	}
	counts := make(map[string]int)
	totalTime := make(map[string]time.Duration)
	for _, entry := range filtered {
		counts[entry.Path]++
		totalTime[entry.Path] += entry.ResponseTime
		switch {
		case entry.StatusCode >= 500:
			statusCodes["5xx Server Error"]++
		case entry.StatusCode >= 400:
			statusCodes["4xx Client Error"]++
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			statusCodes["2xx Success"]++
		}
	}

	endpoints := make([]EndpointStat, 0, len(counts))
	for path, n := range counts {
		endpoints = append(endpoints, EndpointStat{
			Endpoint:      path,
			Requests:      n,
			AvgResponseMs: totalTime[path].Milliseconds() / int64(n),
		})
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Endpoint < endpoints[j].Endpoint })

	// 新しい順に最大10件
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		PeriodHours:   periodHours,
		TotalRequests: len(filtered),
		Endpoints:     endpoints,
		StatusCodes:   statusCodes,
		RecentErrors:  recentErrors,
	}
}
