package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/bokohub/domain"
)

// ZapAuditLogger writes one structured log line per audit event
type ZapAuditLogger struct {
	log *zap.Logger
}

// NewZapAuditLogger creates an audit logger on a named child of logger
func NewZapAuditLogger(logger *zap.Logger) *ZapAuditLogger {
	return &ZapAuditLogger{log: logger.Named("audit")}
}

// LogEvent implements domain.AuditLogger
func (a *ZapAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.EventType)),
		zap.Bool("success", event.Success),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.UserID != 0 {
		fields = append(fields, zap.Uint("user_id", event.UserID))
	}
	if event.Username != "" {
		fields = append(fields, zap.String("username", event.Username))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip", event.IPAddress))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("ua", event.UserAgent))
	}
	if event.ErrorMsg != "" {
		fields = append(fields, zap.String("error", event.ErrorMsg))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	if ce := a.log.Check(level, "audit event"); ce != nil {
		ce.Write(fields...)
	}
}

var _ domain.AuditLogger = (*ZapAuditLogger)(nil)
