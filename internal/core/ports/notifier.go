package ports

import "streamcast/internal/core/domain"

// NotificationType names a server-initiated room broadcast.
type NotificationType string

const (
	NotifyNewProducer    NotificationType = "new-producer"
	NotifyProducerClosed NotificationType = "producer-closed"
	NotifyViewerJoined   NotificationType = "viewer-joined"
	NotifyViewerLeft     NotificationType = "viewer-left"
	NotifyChatMessage    NotificationType = "chat-message"
	NotifyStreamEnded    NotificationType = "stream-ended"
	NotifyStreamAborted  NotificationType = "stream-aborted"
	NotifyServerShutdown NotificationType = "server-shutdown"
)

// Notification is one room-wide fan-out message.
type Notification struct {
	Type NotificationType `json:"type"`
	Data any              `json:"data,omitempty"`
}

// RoomNotifier fans a notification out to every signaling channel currently
// associated with the room. Exclude suppresses delivery to one user, usually
// the one whose action raised the notification.
type RoomNotifier interface {
	BroadcastToRoom(streamID domain.StreamID, notification Notification, exclude ...domain.UserID)
}

// NopNotifier discards notifications. Used until the gateway registers.
type NopNotifier struct{}

func (NopNotifier) BroadcastToRoom(domain.StreamID, Notification, ...domain.UserID) {}
