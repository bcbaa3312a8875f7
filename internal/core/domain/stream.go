package domain

import (
	"time"
)

type StreamID string
type UserID string
type TransportID string
type ProducerID string
type ConsumerID string

// StreamStatus is the logical lifecycle of a broadcast, independent of the
// room that carries it. A room can exist before the stream goes live and can
// be torn down while the record is still being finalized.
type StreamStatus string

const (
	StreamCreated StreamStatus = "created"
	StreamLive    StreamStatus = "live"
	StreamEnded   StreamStatus = "ended"
)

// Stream is the durable broadcast record.
type Stream struct {
	ID          StreamID     `json:"id"`
	Title       string       `json:"title"`
	OwnerID     UserID       `json:"owner_id"`
	Status      StreamStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	Duration    int64        `json:"duration_seconds,omitempty"`
	PeakViewers int          `json:"peak_viewers,omitempty"`
	TotalViews  int          `json:"total_views,omitempty"`
}

// StreamStats is the live presence snapshot served from the cache.
type StreamStats struct {
	Viewers    int `json:"viewers"`
	Views      int `json:"views"`
	ChatCount  int `json:"chat_count"`
	MaxViewers int `json:"max_viewers"`
}

// ChatMessage is one entry in a stream's chat ring buffer.
type ChatMessage struct {
	ID       string    `json:"id"`
	StreamID StreamID  `json:"stream_id"`
	UserID   UserID    `json:"user_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}
