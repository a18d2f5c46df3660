package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures where a Logger writes besides its console stream.
type LogOptions struct {
	Dir        string // rotated log file directory, empty disables the file
	MaxSizeMB  int
	MaxBackups int
	Verbose    bool // emit DEBUG lines
}

type Logger struct {
	file    io.Closer
	logger  *log.Logger
	verbose bool
}

// NewLogger writes to console and, when opts.Dir is set, to <dir>/<name>.log
// rotated by size.
func NewLogger(name string, console io.Writer, opts LogOptions) (*Logger, error) {
	out := console
	var file io.Closer

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}

		sanitized := strings.ReplaceAll(strings.ToLower(name), " ", "_")
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, sanitized+".log"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		file = rotator
		out = io.MultiWriter(console, rotator)
	}

	return &Logger{
		file:    file,
		logger:  log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		verbose: opts.Verbose,
	}, nil
}

// NewConsoleLogger is a Logger without a file, used by tests and the API handlers.
func NewConsoleLogger(console io.Writer) *Logger {
	l, _ := NewLogger("", console, LogOptions{})
	return l
}

func (l *Logger) LogInfo(format string, v ...interface{}) {
	l.log("INFO", format, v...)
}

func (l *Logger) LogWarn(format string, v ...interface{}) {
	l.log("WARN", format, v...)
}

func (l *Logger) LogError(format string, v ...interface{}) {
	l.log("ERROR", format, v...)
}

func (l *Logger) LogDebug(format string, v ...interface{}) {
	if !l.verbose {
		return
	}
	l.log("DEBUG", format, v...)
}

func (l *Logger) log(level string, format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	l.logger.Printf("[%s] %s", level, message)
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
