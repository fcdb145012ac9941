package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/config"
)

// Setup configures the standard logrus logger from cfg.
func Setup(cfg config.LogConfig) error {
	return Configure(logrus.StandardLogger(), os.Stderr, cfg)
}

// Configure applies level and format to logger and points it at out.
func Configure(logger *logrus.Logger, out io.Writer, cfg config.LogConfig) error {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want text or json", cfg.Format)
	}

	logger.SetOutput(out)
	logger.SetLevel(lvl)
	return nil
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
