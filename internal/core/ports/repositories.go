package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// StreamRepository is the persistence collaborator for durable stream
// records. The core treats it as best-effort: a write failure must never
// fail the live operation that triggered it.
type StreamRepository interface {
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	Update(ctx context.Context, stream *domain.Stream) error
	ListLive(ctx context.Context) ([]*domain.Stream, error)
}

// PresenceRepository is the cache collaborator: the source of truth for
// live viewer counts, per-stream stats, and the chat ring buffer.
type PresenceRepository interface {
	// AddViewer records a viewer and returns the new live count.
	AddViewer(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (int, error)
	// RemoveViewer removes a viewer and returns the new live count.
	RemoveViewer(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (int, error)
	GetStats(ctx context.Context, streamID domain.StreamID) (*domain.StreamStats, error)
	AppendChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	RecentChatMessages(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error)
	// ClearStream drops all ephemeral live-session state for a stream.
	ClearStream(ctx context.Context, streamID domain.StreamID) error
}

// EventBus is the fire-and-forget analytics/lifecycle fan-out collaborator.
// Publish failures are logged by implementations, never propagated.
type EventBus interface {
	Publish(ctx context.Context, event *domain.Event)
}
