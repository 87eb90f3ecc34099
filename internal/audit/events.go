// Package audit provides audit event emission for auth lifecycle operations.
//
// Purpose:
//
//	Login, registration, logout, and identity-resolution degradations are
//	recorded as structured audit events. Events go to Kafka when brokers are
//	configured; otherwise they are logged, which keeps development and tests
//	free of infrastructure.
//
// Key Responsibilities:
//   - Event struct defines the audit event schema
//   - Emitter interface abstracts Kafka vs logger implementations
//   - LoggerEmitter logs events as structured JSON
//   - KafkaEmitter produces to the configured topic
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Actions emitted by the identity core.
const (
	ActionLogin              = "auth.login"
	ActionLoginFailed        = "auth.login_failed"
	ActionRegister           = "auth.register"
	ActionLogout             = "auth.logout"
	ActionResolutionFallback = "identity.resolution_fallback"
	ActionMembershipDegraded = "identity.membership_degraded"
)

// Event is one audit record.
type Event struct {
	EventID   uuid.UUID      `json:"event_id"`
	SubjectID string         `json:"subject_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	Action    string         `json:"action"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Emitter sends audit events. Implementations must be safe for concurrent
// use; emission failures are returned for monitoring but callers treat them
// as best effort.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// NewEvent constructs an event with a fresh id and timestamp.
func NewEvent(action, subjectID string) Event {
	return Event{
		EventID:   uuid.New(),
		SubjectID: subjectID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
}

// LoggerEmitter logs audit events as structured JSON.
type LoggerEmitter struct {
	logger zerolog.Logger
}

// NewLoggerEmitter creates a logger-based audit emitter.
func NewLoggerEmitter(logger zerolog.Logger) *LoggerEmitter {
	return &LoggerEmitter{logger: logger.With().Str("component", "audit").Logger()}
}

// Emit logs the event. Never fails.
func (e *LoggerEmitter) Emit(ctx context.Context, event Event) error {
	e.logger.Info().
		Str("event_id", event.EventID.String()).
		Str("subject_id", event.SubjectID).
		Str("action", event.Action).
		Str("ip_address", event.IPAddress).
		Interface("metadata", event.Metadata).
		Msg("audit event")
	return nil
}

// NoopEmitter discards all events. Used in tests.
type NoopEmitter struct{}

// NewNoopEmitter creates a no-op audit emitter.
func NewNoopEmitter() *NoopEmitter { return &NoopEmitter{} }

// Emit discards the event.
func (e *NoopEmitter) Emit(ctx context.Context, event Event) error { return nil }
