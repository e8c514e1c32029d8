package vault

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditRegister             AuditEvent = "register"
	AuditLoginPasswordOK      AuditEvent = "login_password_ok"
	AuditLoginFailure         AuditEvent = "login_failure"
	AuditLoginTOTPFailure     AuditEvent = "login_totp_failure"
	AuditLoginSuccess         AuditEvent = "login_success"
	AuditLoginRateLimited     AuditEvent = "login_rate_limited"
	AuditDataIntegrityFailure AuditEvent = "data_integrity_failure"
	AuditLogout               AuditEvent = "logout"
	AuditSessionIdleLocked    AuditEvent = "session_idle_locked"
	AuditEntryCreated         AuditEvent = "entry_created"
	AuditEntryUpdated         AuditEvent = "entry_updated"
	AuditEntryDeleted         AuditEvent = "entry_deleted"
	AuditPasswordRotated      AuditEvent = "password_rotated"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// It never receives passwords, seeds, keys or decrypted fields.
type auditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

func newAuditLogger(logger *slog.Logger, now func() time.Time) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
		now:    now,
	}
}

func (al *auditLogger) log(ctx context.Context, level slog.Level, event AuditEvent, username string, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("username", username),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(ctx, level, "audit", baseAttrs...)
}

func (al *auditLogger) info(ctx context.Context, event AuditEvent, username string, attrs ...slog.Attr) {
	al.log(ctx, slog.LevelInfo, event, username, attrs...)
}

func (al *auditLogger) warn(ctx context.Context, event AuditEvent, username string, attrs ...slog.Attr) {
	al.log(ctx, slog.LevelWarn, event, username, attrs...)
}

func (al *auditLogger) alarm(ctx context.Context, event AuditEvent, username string, attrs ...slog.Attr) {
	al.log(ctx, slog.LevelError, event, username, attrs...)
}
