package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed transport round trip
func LogRequest(l Logger, method, host string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"host":        host,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("Backend server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("Backend client error", fields)
	default:
		l.DebugWithFields("Request completed", fields)
	}
}

// LogRateLimit logs a 429 cooldown
func LogRateLimit(l Logger, host string, retryAfter time.Duration, attempt int) {
	l.WarnWithFields("Rate limited, cooling down", map[string]interface{}{
		"host":        host,
		"retry_after": retryAfter,
		"attempt":     attempt,
	})
}

// LogChannelProgress logs one finished day of a channel walk
func LogChannelProgress(l Logger, channelID, day, status string, messages int) {
	l.InfoWithFields("Day processed", map[string]interface{}{
		"channel_id": channelID,
		"day":        day,
		"status":     status,
		"messages":   messages,
	})
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string)                                  {}
func (nopLogger) Info(string)                                   {}
func (nopLogger) Warn(string)                                   {}
func (nopLogger) Error(string)                                  {}
func (nopLogger) Fatal(string)                                  {}
func (n nopLogger) WithField(string, interface{}) Logger        { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger    { return n }
func (n nopLogger) WithError(error) Logger                      { return n }
func (n nopLogger) WithContext(context.Context) Logger          { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (nopLogger) FatalWithFields(string, map[string]interface{}) {}

func (nopLogger) GetZerolog() *zerolog.Logger {
	zl := zerolog.Nop()
	return &zl
}
