package session

import (
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// Transport is one registered network path of a participant. It wraps the
// media-engine transport and tracks the producers and consumers it carries
// so closing it can cascade to them.
type Transport struct {
	media     ports.MediaTransport
	direction domain.TransportDirection
	closed    bool

	producerIDs map[domain.ProducerID]struct{}
	consumerIDs map[domain.ConsumerID]struct{}
}

func (t *Transport) ID() domain.TransportID                 { return t.media.ID() }
func (t *Transport) Direction() domain.TransportDirection   { return t.direction }
func (t *Transport) Media() ports.MediaTransport            { return t.media }

// Producer is one outbound flow registered in a room, visible room-wide.
type Producer struct {
	media       ports.MediaProducer
	ownerID     domain.UserID
	transportID domain.TransportID
}

func (p *Producer) ID() domain.ProducerID  { return p.media.ID() }
func (p *Producer) Kind() domain.MediaKind { return p.media.Kind() }
func (p *Producer) Owner() domain.UserID   { return p.ownerID }
func (p *Producer) Media() ports.MediaProducer { return p.media }

// Info returns the caller-facing descriptor.
func (p *Producer) Info() domain.ProducerInfo {
	return domain.ProducerInfo{ID: p.ID(), UserID: p.ownerID, Kind: p.Kind()}
}

// Consumer is one inbound flow registered under its owning participant.
type Consumer struct {
	media       ports.MediaConsumer
	ownerID     domain.UserID
	transportID domain.TransportID
}

func (c *Consumer) ID() domain.ConsumerID          { return c.media.ID() }
func (c *Consumer) ProducerID() domain.ProducerID  { return c.media.ProducerID() }
func (c *Consumer) Media() ports.MediaConsumer     { return c.media }

// Participant is one user's presence within a room: its transports, its
// producers, and its consumers. At most one transport per direction.
type Participant struct {
	userID   domain.UserID
	joinedAt time.Time

	transports map[domain.TransportID]*Transport
	byDir      map[domain.TransportDirection]*Transport
	producers  map[domain.ProducerID]*Producer
	consumers  map[domain.ConsumerID]*Consumer
}

func newParticipant(userID domain.UserID) *Participant {
	return &Participant{
		userID:     userID,
		joinedAt:   time.Now(),
		transports: make(map[domain.TransportID]*Transport),
		byDir:      make(map[domain.TransportDirection]*Transport),
		producers:  make(map[domain.ProducerID]*Producer),
		consumers:  make(map[domain.ConsumerID]*Consumer),
	}
}

func (p *Participant) UserID() domain.UserID { return p.userID }
func (p *Participant) JoinedAt() time.Time   { return p.joinedAt }

// transport lookup helpers; callers hold the room lock.

func (p *Participant) transport(id domain.TransportID) (*Transport, bool) {
	t, ok := p.transports[id]
	return t, ok
}

func (p *Participant) transportByDirection(dir domain.TransportDirection) (*Transport, bool) {
	t, ok := p.byDir[dir]
	return t, ok
}
