package domain

import "strings"

// MediaKind is the kind of a single media flow.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}

// TransportDirection is fixed at transport creation and never changes.
type TransportDirection string

const (
	DirectionSend TransportDirection = "send"
	DirectionRecv TransportDirection = "recv"
)

func (d TransportDirection) Valid() bool {
	return d == DirectionSend || d == DirectionRecv
}

// CodecCapability describes one codec a routing context is able to relay.
// The set is fixed per deployment and never renegotiated per room.
type CodecCapability struct {
	MimeType  string `json:"mime_type"`
	ClockRate int    `json:"clock_rate"`
	Channels  int    `json:"channels,omitempty"`
}

// DefaultCodecSet is the pre-negotiated codec set for every room.
func DefaultCodecSet() []CodecCapability {
	return []CodecCapability{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{MimeType: "video/VP8", ClockRate: 90000},
	}
}

// HandshakeParams is the connection material exchanged out of band to
// finalize a transport: the local description on create, the remote
// description on connect.
type HandshakeParams struct {
	Type string `json:"type"` // offer or answer
	SDP  string `json:"sdp"`
}

// MediaParams describes the RTP parameters of a flow being produced.
type MediaParams struct {
	MimeType    string `json:"mime_type"`
	ClockRate   int    `json:"clock_rate"`
	PayloadType uint8  `json:"payload_type"`
	SSRC        uint32 `json:"ssrc"`
}

// MatchesKind reports whether the mime type belongs to the declared kind.
func (p MediaParams) MatchesKind(kind MediaKind) bool {
	return strings.HasPrefix(strings.ToLower(p.MimeType), string(kind)+"/")
}

// ReceiverCapabilities lists the mime types a receiver can decode.
type ReceiverCapabilities struct {
	MimeTypes []string `json:"mime_types"`
}

// CanDecode reports whether the receiver can decode the given mime type.
func (rc ReceiverCapabilities) CanDecode(mimeType string) bool {
	for _, mt := range rc.MimeTypes {
		if strings.EqualFold(mt, mimeType) {
			return true
		}
	}
	return false
}

// TransportInfo is the caller-facing description of a created transport.
type TransportInfo struct {
	ID        TransportID        `json:"id"`
	Direction TransportDirection `json:"direction"`
	Handshake HandshakeParams    `json:"handshake"`
}

// ProducerInfo describes one outbound flow, visible room-wide.
type ProducerInfo struct {
	ID     ProducerID `json:"id"`
	UserID UserID     `json:"user_id"`
	Kind   MediaKind  `json:"kind"`
}

// ConsumerInfo describes one inbound flow. Consumers start paused so the
// caller can finish client-side setup before media flows.
type ConsumerInfo struct {
	ID         ConsumerID  `json:"id"`
	ProducerID ProducerID  `json:"producer_id"`
	Kind       MediaKind   `json:"kind"`
	Paused     bool        `json:"paused"`
	Params     MediaParams `json:"params"`
}
