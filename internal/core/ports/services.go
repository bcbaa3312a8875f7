package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// JoinResult is everything a viewer needs to render the stream page.
type JoinResult struct {
	Stream    *domain.Stream        `json:"stream"`
	Viewers   int                   `json:"viewers"`
	Stats     *domain.StreamStats   `json:"stats"`
	Messages  []*domain.ChatMessage `json:"messages"`
	Producers []domain.ProducerInfo `json:"producers"`
}

// StreamSummary is the finalized record returned by EndStream.
type StreamSummary struct {
	Stream      *domain.Stream `json:"stream"`
	Duration    int64          `json:"duration_seconds"`
	PeakViewers int            `json:"peak_viewers"`
	TotalViews  int            `json:"total_views"`
}

// SessionService orchestrates rooms, participants, transports, producers
// and consumers, and drives the stream lifecycle.
type SessionService interface {
	CreateStream(ctx context.Context, userID domain.UserID, title string) (*domain.Stream, error)
	JoinStream(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*JoinResult, error)
	RouterCapabilities(ctx context.Context, streamID domain.StreamID) ([]domain.CodecCapability, error)

	CreateTransport(ctx context.Context, streamID domain.StreamID, userID domain.UserID, direction domain.TransportDirection) (*domain.TransportInfo, error)
	ConnectTransport(ctx context.Context, streamID domain.StreamID, userID domain.UserID, transportID domain.TransportID, params domain.HandshakeParams) error

	Produce(ctx context.Context, streamID domain.StreamID, userID domain.UserID, transportID domain.TransportID, kind domain.MediaKind, params domain.MediaParams) (domain.ProducerID, error)
	ListProducers(ctx context.Context, streamID domain.StreamID, userID domain.UserID) ([]domain.ProducerInfo, error)
	Consume(ctx context.Context, streamID domain.StreamID, userID domain.UserID, producerID domain.ProducerID, caps domain.ReceiverCapabilities) (*domain.ConsumerInfo, error)
	ResumeConsumer(ctx context.Context, streamID domain.StreamID, userID domain.UserID, consumerID domain.ConsumerID) error

	SendChatMessage(ctx context.Context, streamID domain.StreamID, userID domain.UserID, text string) (*domain.ChatMessage, error)

	CloseParticipant(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error
	EndStream(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*StreamSummary, error)
	// AbortStream force-ends a stream whose room lost its media worker.
	AbortStream(ctx context.Context, streamID domain.StreamID) error

	GetStream(ctx context.Context, streamID domain.StreamID) (*domain.Stream, error)
	ListLiveStreams(ctx context.Context) ([]*domain.Stream, error)
	GetStreamStats(ctx context.Context, streamID domain.StreamID) (*domain.StreamStats, error)
}
