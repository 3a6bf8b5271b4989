package common

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Logger prints human-facing CLI messages
type Logger struct {
	Level      LogLevel
	ShowEmojis bool
	SilentMode bool
	Out        io.Writer
}

// NewLogger creates a new logger with default settings
func NewLogger() *Logger {
	return &Logger{
		Level:      LogLevelInfo,
		ShowEmojis: true,
		Out:        os.Stdout,
	}
}

// SetSilentMode enables or disables silent mode
func (l *Logger) SetSilentMode(silent bool) {
	l.SilentMode = silent
}

func (l *Logger) emit(emoji, tag, format string, args ...interface{}) {
	prefix := emoji
	if !l.ShowEmojis {
		prefix = tag
	}
	fmt.Fprintf(l.Out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// Header prints a formatted header
func (l *Logger) Header(title string) {
	if l.SilentMode {
		return
	}
	l.emit("🎯", "***", "%s", strings.ToUpper(title))
	fmt.Fprintln(l.Out, strings.Repeat("=", len(title)+5))
}

// Info prints an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.SilentMode || l.Level < LogLevelInfo {
		return
	}
	l.emit("ℹ️ ", "[INFO]", format, args...)
}

// Error prints an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("❌", "[ERROR]", format, args...)
}

// Success prints a success message
func (l *Logger) Success(format string, args ...interface{}) {
	if l.SilentMode {
		return
	}
	l.emit("✅", "[SUCCESS]", format, args...)
}

// Warn prints a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.Level < LogLevelWarn {
		return
	}
	l.emit("⚠️ ", "[WARN]", format, args...)
}

// Debug prints a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.Level < LogLevelDebug {
		return
	}
	l.emit("🔍", "[DEBUG]", format, args...)
}

// Progress prints a progress message
func (l *Logger) Progress(format string, args ...interface{}) {
	if l.SilentMode {
		return
	}
	l.emit("🔄", "[PROGRESS]", format, args...)
}

// EnvLoader provides environment loading utilities
type EnvLoader struct {
	logger *Logger
}

// NewEnvLoader creates a new environment loader
func NewEnvLoader(logger *Logger) *EnvLoader {
	return &EnvLoader{logger: logger}
}

// LoadEnvFile loads environment variables from a file. A missing file is
// not an error; variables already set in the process win.
func (e *EnvLoader) LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		e.logger.Debug("Environment file %s not found, using system environment", path)
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		e.logger.Warn("Could not load environment file %s: %v", path, err)
		return err
	}
	e.logger.Debug("Environment loaded from %s", path)
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func (e *EnvLoader) GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseDuration parses durations with day and week suffixes on top of
// time.ParseDuration
func ParseDuration(str string) (time.Duration, error) {
	str = strings.ToLower(strings.TrimSpace(str))

	if strings.HasSuffix(str, "d") || strings.HasSuffix(str, "days") {
		str = strings.TrimSuffix(str, "days")
		str = strings.TrimSuffix(str, "d")
		days, err := strconv.Atoi(str)
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if strings.HasSuffix(str, "w") || strings.HasSuffix(str, "weeks") {
		str = strings.TrimSuffix(str, "weeks")
		str = strings.TrimSuffix(str, "w")
		weeks, err := strconv.Atoi(str)
		if err != nil {
			return 0, err
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}
	return time.ParseDuration(str)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}

// LoadEngineConfig loads the engine config named by the common flags and
// applies the -profile override
func LoadEngineConfig(flags *CommonFlags) (*config.EngineConfig, error) {
	cfg, err := config.Load(*flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(*flags.Profile); p != "" {
		cfg.RiskProfile = p
		if err := cfg.Resolve(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	if *flags.LogDir != "" {
		cfg.LogDir = *flags.LogDir
	}
	return cfg, nil
}

// Global instances for convenience
var (
	DefaultLogger    = NewLogger()
	DefaultEnvLoader = NewEnvLoader(DefaultLogger)
)

// Convenience functions using global instances
func Header(title string)                         { DefaultLogger.Header(title) }
func Info(format string, args ...interface{})     { DefaultLogger.Info(format, args...) }
func Error(format string, args ...interface{})    { DefaultLogger.Error(format, args...) }
func Success(format string, args ...interface{})  { DefaultLogger.Success(format, args...) }
func Warn(format string, args ...interface{})     { DefaultLogger.Warn(format, args...) }
func Debug(format string, args ...interface{})    { DefaultLogger.Debug(format, args...) }
func Progress(format string, args ...interface{}) { DefaultLogger.Progress(format, args...) }

func LoadEnvFile(path string) error            { return DefaultEnvLoader.LoadEnvFile(path) }
func GetEnvWithDefault(key, def string) string { return DefaultEnvLoader.GetEnvWithDefault(key, def) }
