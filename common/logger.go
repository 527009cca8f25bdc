// Package common provides shared constants, types, and utilities
// used across the VPN launcher.
package common

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps a config value to a level. Unknown values yield LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var levelStyles = map[LogLevel]lipgloss.Style{
	LevelDebug: lipgloss.NewStyle().Faint(true),
	LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	LevelError: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
}

// AppLogger is the application logger. Messages go to the console and,
// once EnableFileLogging succeeds, to a size-rotated file.
type AppLogger struct {
	mu          sync.Mutex
	level       LogLevel
	console     *log.Logger
	styled      bool
	file        *logFile
	logDir      string
	maxFileSize int64
	maxBackups  int
}

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level       LogLevel
	EnableFile  bool
	Dir         string // defaults to <state dir>/logs
	MaxFileSize int64  // in bytes, default 5MB
	MaxBackups  int    // number of rotated files to keep, default 5
}

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

const (
	defaultMaxFileSize = 5 * 1024 * 1024
	defaultMaxBackups  = 5
)

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

// GetLogger returns the singleton logger instance.
// Console output goes to stderr so command output on stdout stays parseable.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = &AppLogger{
			level:       LevelInfo,
			console:     log.New(os.Stderr, "", 0),
			styled:      term.IsTerminal(int(os.Stderr.Fd())),
			maxFileSize: defaultMaxFileSize,
			maxBackups:  defaultMaxBackups,
		}
	})
	return defaultLogger
}

// InitLogger applies config to the default logger.
func InitLogger(config LogConfig) error {
	logger := GetLogger()
	logger.SetLevel(config.Level)

	logger.mu.Lock()
	if config.MaxFileSize > 0 {
		logger.maxFileSize = config.MaxFileSize
	}
	if config.MaxBackups > 0 {
		logger.maxBackups = config.MaxBackups
	}
	if config.Dir != "" {
		logger.logDir = config.Dir
	}
	logger.mu.Unlock()

	if config.EnableFile {
		return logger.EnableFileLogging()
	}
	return nil
}

// SetLevel sets the minimum log level.
func (l *AppLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// EnableFileLogging opens LogFileName in the log directory in addition to
// the console.
// Symlinked log directories and files are refused.
func (l *AppLogger) EnableFileLogging() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logDir := l.logDir
	if logDir == "" {
		if logDir = GetLogDir(); logDir == "" {
			return fmt.Errorf("cannot determine log directory")
		}
	}
	if isSymlink(logDir) {
		return fmt.Errorf("security error: log directory is a symlink")
	}
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}

	maxSize := l.maxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	backups := l.maxBackups
	if backups <= 0 {
		backups = defaultMaxBackups
	}
	lf, err := openLogFile(filepath.Join(logDir, LogFileName), maxSize, backups)
	if err != nil {
		return err
	}

	if l.file != nil {
		l.file.Close()
	}
	l.file = lf
	l.logDir = logDir
	return nil
}

// GetLogDir returns the default log directory path.
func GetLogDir() string {
	stateDir, err := GetStateDir()
	if err != nil {
		return ""
	}
	return filepath.Join(stateDir, "logs")
}

// log writes a formatted log message.
func (l *AppLogger) log(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")
	formattedMsg := msg
	if len(args) > 0 {
		formattedMsg = fmt.Sprintf(msg, args...)
	}

	tag := "[" + level.String() + "]"
	if l.file != nil {
		fmt.Fprintf(l.file, "%s %s %s: %s\n", timestamp, tag, caller, formattedMsg)
	}
	if l.console != nil {
		if l.styled {
			tag = levelStyles[level].Render(tag)
		}
		l.console.Printf("%s %s %s: %s", timestamp, tag, caller, formattedMsg)
	}
}

// Debug logs a debug message.
func (l *AppLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *AppLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *AppLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *AppLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// Shorthand functions for default logger.

// LogDebug logs a debug message to the default logger.
func LogDebug(msg string, args ...interface{}) {
	GetLogger().Debug(msg, args...)
}

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) {
	GetLogger().Info(msg, args...)
}

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) {
	GetLogger().Warn(msg, args...)
}

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) {
	GetLogger().Error(msg, args...)
}

// Close closes the log file. Should be called on application shutdown.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// CloseLogger closes the default logger.
func CloseLogger() error {
	return GetLogger().Close()
}
