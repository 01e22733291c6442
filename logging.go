package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/flouzetrack/flouze-cli/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// configureLogger points l at a rotating LOG_FILE when one is set. Without
// a file, logs go to stderr; on a terminal they are capped at warn so they
// do not tear the TUI.
func configureLogger(l *logrus.Logger, cfg *config.Config, tty bool) (io.Closer, error) {
	level := cfg.Level()

	if cfg.LogFile == "" {
		l.SetOutput(os.Stderr)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if tty && level > logrus.WarnLevel {
			level = logrus.WarnLevel
		}
		l.SetLevel(level)
		return nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.LogFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: failed to create log directory: %w", err)
		}
	}

	w := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
	}
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	l.SetLevel(level)
	return w, nil
}
