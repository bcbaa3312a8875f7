package domain

import "errors"

var (
	ErrStreamNotFound      = errors.New("stream not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTransportNotFound   = errors.New("transport not found")
	ErrProducerNotFound    = errors.New("producer not found")
	ErrConsumerNotFound    = errors.New("consumer not found")

	ErrInvalidDirection         = errors.New("transport direction must be send or recv")
	ErrDuplicateTransport       = errors.New("participant already has a transport for this direction")
	ErrNoReceiveTransport       = errors.New("participant has no recv transport")
	ErrIncompatibleCapabilities = errors.New("receiver cannot decode producer format")
	ErrInvalidMediaParams       = errors.New("media parameters do not match declared kind")

	ErrStreamEnded       = errors.New("stream already ended")
	ErrRoomFull          = errors.New("room participant capacity reached")
	ErrWorkerPoolDrained = errors.New("no live media workers available")
	ErrTransportClosed   = errors.New("transport already closed")
)
