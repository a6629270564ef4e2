// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/config"
)

// New returns a logger configured from cfg, writing to stderr.
// Stdout is reserved for MCP stdio and CLI JSON output.
func New(cfg *config.Config) *logrus.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(cfg *config.Config, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	level := logrus.InfoLevel
	format := "text"
	if cfg != nil {
		if lvl, err := logrus.ParseLevel(strings.TrimSpace(cfg.LogLevel)); err == nil {
			level = lvl
		}
		format = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	}
	logger.SetLevel(level)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return logger
}

// Discard returns a logger that writes nothing.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
