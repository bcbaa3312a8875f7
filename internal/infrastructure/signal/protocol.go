package signal

import (
	"encoding/json"
	"errors"

	"streamcast/internal/core/domain"
	apperrors "streamcast/pkg/errors"
)

// Request is one client frame. The id correlates the single response the
// server sends back; it is opaque to the server beyond echoing.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Response answers exactly one request.
type Response struct {
	ID    uint64        `json:"id"`
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Request payloads.

type createStreamData struct {
	Title string `json:"title"`
}

type streamRefData struct {
	StreamID domain.StreamID `json:"stream_id"`
}

type createTransportData struct {
	StreamID  domain.StreamID           `json:"stream_id"`
	Direction domain.TransportDirection `json:"direction"`
}

type connectTransportData struct {
	StreamID    domain.StreamID        `json:"stream_id"`
	TransportID domain.TransportID     `json:"transport_id"`
	Handshake   domain.HandshakeParams `json:"handshake"`
}

type produceData struct {
	StreamID    domain.StreamID    `json:"stream_id"`
	TransportID domain.TransportID `json:"transport_id"`
	Kind        domain.MediaKind   `json:"kind"`
	Params      domain.MediaParams `json:"params"`
}

type consumeData struct {
	StreamID     domain.StreamID             `json:"stream_id"`
	ProducerID   domain.ProducerID           `json:"producer_id"`
	Capabilities domain.ReceiverCapabilities `json:"capabilities"`
}

type resumeConsumerData struct {
	StreamID   domain.StreamID   `json:"stream_id"`
	ConsumerID domain.ConsumerID `json:"consumer_id"`
}

type chatData struct {
	StreamID domain.StreamID `json:"stream_id"`
	Text     string          `json:"text"`
}

// errorPayload maps any orchestrator error onto the wire taxonomy.
func errorPayload(err error) *ErrorPayload {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return &ErrorPayload{Code: string(appErr.Code), Message: appErr.Message}
	}

	code := apperrors.ErrCodeInternal
	switch {
	case errors.Is(err, domain.ErrStreamNotFound),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrTransportNotFound),
		errors.Is(err, domain.ErrProducerNotFound),
		errors.Is(err, domain.ErrConsumerNotFound),
		errors.Is(err, domain.ErrStreamEnded),
		errors.Is(err, domain.ErrTransportClosed):
		code = apperrors.ErrCodeNotFound
	case errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrDuplicateTransport),
		errors.Is(err, domain.ErrNoReceiveTransport),
		errors.Is(err, domain.ErrInvalidMediaParams):
		code = apperrors.ErrCodeInvalidArgument
	case errors.Is(err, domain.ErrIncompatibleCapabilities):
		code = apperrors.ErrCodeIncompatibleCapabilities
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrWorkerPoolDrained):
		code = apperrors.ErrCodeResourceExhausted
	}
	return &ErrorPayload{Code: string(code), Message: err.Error()}
}

func okResponse(id uint64, data any) Response {
	return Response{ID: id, OK: true, Data: data}
}

func errResponse(id uint64, err error) Response {
	return Response{ID: id, OK: false, Error: errorPayload(err)}
}
