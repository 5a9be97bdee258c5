package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config ロガーの設定
type Config struct {
	Environment string // development -> コンソール出力; それ以外 -> JSON
	Level       string // trace, debug, info, warn, error
}

// Logger wraps zerolog so services receive it by injection
type Logger struct {
	zl zerolog.Logger
}

// New 構造化ロガーを作成
func New(cfg Config) *Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter writes to w instead of stdout (tests capture output this way)
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	out := w
	if cfg.Environment == "development" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stdout}
	}
	zl := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop 何も出力しないロガー
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// With 固定フィールド付きのサブロガーを作成
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}
