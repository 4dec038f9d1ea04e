package logger

import (
	"context"
	"log/slog"
)

// AuditEvent is a security-relevant event. Identifiers are fine here;
// passwords, verification codes, and derived keys are never logged.
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	Success       bool
	FailureReason string
}

// AuditLogger emits structured audit records through slog.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthEvent records a login, second-factor, or reset-flow event.
func (al *AuditLogger) LogAuthEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogSecretAccess records vault operations by id only; plaintext and
// record contents never appear in logs.
func (al *AuditLogger) LogSecretAccess(eventType, userID, secretID string, success bool) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit",
		slog.String("audit_type", "vault"),
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
		slog.String("secret_id", secretID),
		slog.Bool("success", success),
	)
}
