// ABOUTME: Logger construction for the CLI and the sync daemon.
// ABOUTME: Terminal output goes to stderr; the daemon writes to a size-rotated file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a config/flag value to a level; unknown values mean info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// New returns a logger writing to w with the periodize prefix.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "periodize",
		Level:           level,
		ReportTimestamp: true,
	})
}

// Stderr is the interactive logger.
func Stderr(level log.Level) *log.Logger {
	return New(os.Stderr, level)
}

// FileConfig controls log rotation.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultFileConfig puts periodize.log under dataDir.
func DefaultFileConfig(dataDir string) FileConfig {
	return FileConfig{
		Path:       filepath.Join(dataDir, "periodize.log"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// NewFile returns a logfmt logger backed by a rotating file, and the closer
// for the file.
func NewFile(cfg FileConfig, level log.Level) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, nil, err
	}
	rot := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	l := log.NewWithOptions(rot, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       log.LogfmtFormatter,
	})
	return l, rot, nil
}
