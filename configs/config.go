package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultLocations 元のレポートの店舗列の並び順
var DefaultLocations = []string{"Mega_Loja", "Mascote", "Tatuape", "Indianopolis", "Praia_Grande", "Fabrica", "Osasco"}

// Config holds the application configuration
type Config struct {
	Port              string
	Environment       string
	APIKey            string
	AdminUsername     string
	AdminPassword     string
	LogLevel          string
	TransferLocations []string // 店舗の正規順（同数時のアンカー決定にも使う）
	ReportHeaderRow   int      // ヘッダー行（1始まり）
	ReportPlaceholder string
	ReportSheet       string
	MaxUploadMB       int
	EvaluationWorkers int
	TopProducts       int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		APIKey:            getEnv("API_KEY", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		TransferLocations: getEnvList("TRANSFER_LOCATIONS", DefaultLocations),
		ReportHeaderRow:   getEnvInt("REPORT_HEADER_ROW", 32),
		ReportPlaceholder: getEnv("REPORT_PLACEHOLDER", "-"),
		ReportSheet:       getEnv("REPORT_SHEET", ""),
		MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 10),
		EvaluationWorkers: getEnvInt("EVALUATION_WORKERS", 4),
		TopProducts:       getEnvInt("TOP_PRODUCTS", 10),
	}
}

// Validate 設定値の整合性を確認
func (c *Config) Validate() error {
	var errs []error
	if len(c.TransferLocations) == 0 {
		errs = append(errs, errors.New("TRANSFER_LOCATIONS must list at least one location"))
	}
	seen := make(map[string]bool, len(c.TransferLocations))
	for _, loc := range c.TransferLocations {
		if seen[loc] {
			errs = append(errs, fmt.Errorf("TRANSFER_LOCATIONS contains %q twice", loc))
		}
		seen[loc] = true
	}
	if c.ReportHeaderRow < 1 {
		errs = append(errs, fmt.Errorf("REPORT_HEADER_ROW must be >= 1, got %d", c.ReportHeaderRow))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be >= 1, got %d", c.MaxUploadMB))
	}
	return errors.Join(errs...)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 数値でない場合はデフォルト値
func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

// getEnvList カンマ区切りのリスト（空要素は無視）
func getEnvList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
