package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls rotation of a log file.
type FileConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig keeps five compressed 10 MB files for a month.
var DefaultFileConfig = FileConfig{
	MaxSizeMB:  10,
	MaxBackups: 5,
	MaxAgeDays: 30,
	Compress:   true,
}

// NewRotatingFile returns a writer that appends to path and rotates it once
// it grows past cfg.MaxSizeMB. The file is created on the first write.
func NewRotatingFile(path string, cfg FileConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}
