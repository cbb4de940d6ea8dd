package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerConfig struct {
	Level     string
	Format    string
	AddSource bool
}

func configFromViper() loggerConfig {
	cfg := loggerConfig{
		Level:     viper.GetString("logging.level"),
		Format:    viper.GetString("logging.format"),
		AddSource: viper.GetBool("logging.add_source"),
	}
	if !viper.IsSet("logging.level") && viper.GetBool("trace") {
		cfg.Level = "debug"
	}
	return cfg
}

func LoggerFromViper() (*slog.Logger, error) {
	return newLogger(os.Stderr, configFromViper())
}

// ZapFromViper builds the zap logger handed to the MTProto client. It follows
// logging.format but has its own level (userclient.log_level) because the
// protocol layer is far chattier than the bot itself.
func ZapFromViper() (*zap.Logger, error) {
	cfg := configFromViper()
	cfg.Level = viper.GetString("userclient.log_level")
	return newZap(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg loggerConfig) (*slog.Logger, error) {
	level, err := parseSlogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	return slog.New(h), nil
}

func newZap(w io.Writer, cfg loggerConfig) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Level), "off") {
		return zap.NewNop(), nil
	}
	level, err := parseSlogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), slogToZapLevel(level))
	var opts []zap.Option
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level <= slog.LevelInfo:
		return zapcore.InfoLevel
	case level <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func parseSlogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level: %s", s)
	}
}
