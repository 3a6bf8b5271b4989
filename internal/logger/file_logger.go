package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a per-session structured logger for trading activity. Entries are
// JSON lines written to a session file and, optionally, to the console.
type Logger struct {
	session string
	symbol  string
	logFile *os.File
	logPath string
	zl      zerolog.Logger
	mu      sync.Mutex
	closed  bool
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo      LogLevel = "INFO"
	LogLevelWarning   LogLevel = "WARN"
	LogLevelError     LogLevel = "ERROR"
	LogLevelTrade     LogLevel = "TRADE"
	LogLevelStatus    LogLevel = "STATUS"
	LogLevelViolation LogLevel = "VIOLATION"
)

// NewConsole returns a plain zerolog console logger at the given level
func NewConsole(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().Level(lvl)
}

// NewLogger creates a file logger for the session under logDir. When console
// is set, entries are mirrored to stderr in human-readable form.
func NewLogger(logDir, session, symbol string, console bool) (*Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.log", sanitize(session), sanitize(symbol), time.Now().Format("2006-01-02"))
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var out io.Writer = file
	if console {
		out = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}

	l := &Logger{
		session: session,
		symbol:  symbol,
		logFile: file,
		logPath: logPath,
		zl:      zerolog.New(out).With().Timestamp().Str("session", session).Logger(),
	}
	l.writeSessionHeader()
	return l, nil
}

// New wraps an existing zerolog logger without a backing file
func New(zl zerolog.Logger, session string) *Logger {
	return &Logger{session: session, zl: zl.With().Str("session", session).Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) writeSessionHeader() {
	l.zl.Info().
		Str("level_tag", string(LogLevelStatus)).
		Str("symbol", l.symbol).
		Str("log_file", l.logPath).
		Msg("trading session started")
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	var ev *zerolog.Event
	switch level {
	case LogLevelError:
		ev = l.zl.Error()
	case LogLevelWarning, LogLevelViolation:
		ev = l.zl.Warn()
	default:
		ev = l.zl.Info()
	}
	ev.Str("level_tag", string(level)).Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs portfolio status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogTradeExecution logs an executed fill
func (l *Logger) LogTradeExecution(tradeID, symbol, side, reason string, quantity, price, commission, realizedPnL float64) {
	l.zl.Info().
		Str("level_tag", string(LogLevelTrade)).
		Str("trade_id", tradeID).
		Str("symbol", symbol).
		Str("side", side).
		Str("reason", reason).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("commission", commission).
		Float64("realized_pnl", realizedPnL).
		Msg("trade executed")
}

// LogPortfolioStatus logs the equity breakdown after a mark-to-market
func (l *Logger) LogPortfolioStatus(cash, positionsValue, equity, drawdown float64, openPositions int) {
	l.zl.Info().
		Str("level_tag", string(LogLevelStatus)).
		Float64("cash", cash).
		Float64("positions_value", positionsValue).
		Float64("equity", equity).
		Float64("drawdown", drawdown).
		Int("open_positions", openPositions).
		Msg("portfolio status")
}

// LogViolation logs a rejected order
func (l *Logger) LogViolation(symbol, rule, detail string) {
	l.zl.Warn().
		Str("level_tag", string(LogLevelViolation)).
		Str("symbol", symbol).
		Str("rule", rule).
		Msg(detail)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error().Str("level_tag", string(LogLevelError)).Err(err).Msg(context)
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.Warning("%s: %s", context, fmt.Sprintf(message, args...))
}

// Zerolog exposes the underlying logger for components that log structured fields
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.logFile != nil {
		l.zl.Info().Str("level_tag", string(LogLevelStatus)).Msg("trading session ended")
		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path, empty when not file-backed
func (l *Logger) GetLogPath() string {
	return l.logPath
}

func sanitize(s string) string {
	if s == "" {
		return "session"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, s)
}
