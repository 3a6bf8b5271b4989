package notifications

import "context"

// Alert levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier delivers operator alerts for live sessions
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(ctx context.Context, level, message string) error
}

// Nop discards alerts
type Nop struct{}

// SendAlert implements Notifier
func (Nop) SendAlert(context.Context, string, string) error { return nil }
