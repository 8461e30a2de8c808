package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
)

// Config 日志配置。Path 为空时只输出到 stdout。
type Config struct {
	Level        string        `env:"LOG_LEVEL" envDefault:"info"`
	Format       string        `env:"LOG_FORMAT" envDefault:"text"` // text 或 json
	Path         string        `env:"LOG_PATH"`
	Pattern      string        `env:"LOG_PATTERN" envDefault:"workflow-%Y-%m-%d.log"`
	RotationTime time.Duration `env:"LOG_ROTATION" envDefault:"24h"`
	MaxAge       time.Duration `env:"LOG_MAX_AGE" envDefault:"168h"`
}

// Validate 验证配置
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("invalid level: " + cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		return errors.New("invalid format: " + cfg.Format)
	}
	if cfg.Path != "" {
		if strings.TrimSpace(cfg.Pattern) == "" {
			return errors.New("pattern is required when path is set")
		}
		if cfg.RotationTime <= 0 {
			return errors.New("rotation_time must be > 0")
		}
		if cfg.MaxAge < cfg.RotationTime {
			return errors.New("max_age must be >= rotation_time")
		}
	}
	return nil
}

// Init 初始化全局日志，控制台输出到 stdout
func Init(cfg Config) error {
	return InitWriter(os.Stdout, cfg)
}

// InitWriter 同 Init，但指定控制台输出。命令行工具用 stderr，避免混入结果输出。
func InitWriter(console io.Writer, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := console
	if cfg.Path != "" {
		fileWriter, err := rotatingWriter(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure file logger: %w", err)
		}
		out = io.MultiWriter(console, fileWriter)
	}

	slog.SetDefault(slog.New(newHandler(out, cfg)))
	return nil
}

func newHandler(out io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: mapLevel(cfg.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format("2006-01-02 15:04:05.000000"))
				}
			}
			return a
		},
	}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

func rotatingWriter(cfg Config) (io.Writer, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}
	return rotatelogs.New(
		filepath.Join(cfg.Path, cfg.Pattern),
		rotatelogs.WithRotationTime(cfg.RotationTime),
		rotatelogs.WithMaxAge(cfg.MaxAge),
	)
}

func mapLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger 返回带 module 字段的 logger
func Logger(module string) *slog.Logger {
	return slog.Default().With("module", module)
}

// Discard 返回丢弃全部输出的 logger，测试用。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
