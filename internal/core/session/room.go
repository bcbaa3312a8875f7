package session

import (
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// Room is the live state of one stream: a routing context pinned to one
// worker plus the set of active participants. All mutations are serialized
// by the room's own lock; unrelated rooms never contend.
type Room struct {
	streamID         domain.StreamID
	workerIndex      int
	workerGeneration uint64
	router           ports.RoutingContext
	maxParticipants  int

	mu           sync.Mutex
	participants map[domain.UserID]*Participant
	live         bool
	closed       bool
}

// NewRoom wraps a freshly created routing context. The worker assignment is
// immutable for the room's lifetime.
func NewRoom(streamID domain.StreamID, worker ports.Worker, router ports.RoutingContext, maxParticipants int) *Room {
	return &Room{
		streamID:         streamID,
		workerIndex:      worker.Index(),
		workerGeneration: worker.Generation(),
		router:           router,
		maxParticipants:  maxParticipants,
		participants:     make(map[domain.UserID]*Participant),
	}
}

func (r *Room) StreamID() domain.StreamID    { return r.streamID }
func (r *Room) WorkerIndex() int             { return r.workerIndex }
func (r *Room) WorkerGeneration() uint64     { return r.workerGeneration }
func (r *Room) Router() ports.RoutingContext { return r.router }

// Join adds the participant if absent. The second return value reports
// whether a new participant was created.
func (r *Room) Join(userID domain.UserID) (*Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, domain.ErrRoomNotFound
	}
	if p, ok := r.participants[userID]; ok {
		return p, false, nil
	}
	if r.maxParticipants > 0 && len(r.participants) >= r.maxParticipants {
		return nil, false, domain.ErrRoomFull
	}

	p := newParticipant(userID)
	r.participants[userID] = p
	return p, true, nil
}

// RegisterTransport records a media transport under the participant,
// creating the participant lazily. A participant holds at most one
// transport per direction.
func (r *Room) RegisterTransport(userID domain.UserID, media ports.MediaTransport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomNotFound
	}

	p, ok := r.participants[userID]
	if !ok {
		if r.maxParticipants > 0 && len(r.participants) >= r.maxParticipants {
			return domain.ErrRoomFull
		}
		p = newParticipant(userID)
		r.participants[userID] = p
	}

	dir := media.Direction()
	if _, exists := p.byDir[dir]; exists {
		return domain.ErrDuplicateTransport
	}

	t := &Transport{
		media:       media,
		direction:   dir,
		producerIDs: make(map[domain.ProducerID]struct{}),
		consumerIDs: make(map[domain.ConsumerID]struct{}),
	}
	p.transports[t.ID()] = t
	p.byDir[dir] = t
	return nil
}

// Transport resolves a participant's transport for out-of-band connect.
func (r *Room) Transport(userID domain.UserID, transportID domain.TransportID) (ports.MediaTransport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	t, ok := p.transport(transportID)
	if !ok || t.closed {
		return nil, domain.ErrTransportNotFound
	}
	return t.media, nil
}

// RecvTransport returns the participant's recv-direction transport.
func (r *Room) RecvTransport(userID domain.UserID) (ports.MediaTransport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	t, ok := p.transportByDirection(domain.DirectionRecv)
	if !ok || t.closed {
		return nil, domain.ErrNoReceiveTransport
	}
	return t.media, nil
}

// RegisterProducer records a producer under its owner and carrying
// transport. The transport must still be live.
func (r *Room) RegisterProducer(userID domain.UserID, transportID domain.TransportID, media ports.MediaProducer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	t, ok := p.transport(transportID)
	if !ok {
		return domain.ErrTransportNotFound
	}
	if t.closed {
		return domain.ErrTransportClosed
	}

	prod := &Producer{media: media, ownerID: userID, transportID: transportID}
	p.producers[prod.ID()] = prod
	t.producerIDs[prod.ID()] = struct{}{}
	return nil
}

// RegisterConsumer records a consumer under its owner and carrying
// transport.
func (r *Room) RegisterConsumer(userID domain.UserID, transportID domain.TransportID, media ports.MediaConsumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	t, ok := p.transport(transportID)
	if !ok {
		return domain.ErrTransportNotFound
	}
	if t.closed {
		return domain.ErrTransportClosed
	}

	cons := &Consumer{media: media, ownerID: userID, transportID: transportID}
	p.consumers[cons.ID()] = cons
	t.consumerIDs[cons.ID()] = struct{}{}
	return nil
}

// FindProducer locates a producer by scanning all participants: a producer
// is visible room-wide, not scoped to its owner.
func (r *Room) FindProducer(producerID domain.ProducerID) (*Producer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if prod, ok := p.producers[producerID]; ok {
			return prod, nil
		}
	}
	return nil, domain.ErrProducerNotFound
}

// Consumer resolves a participant's consumer.
func (r *Room) Consumer(userID domain.UserID, consumerID domain.ConsumerID) (ports.MediaConsumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	c, ok := p.consumers[consumerID]
	if !ok {
		return nil, domain.ErrConsumerNotFound
	}
	return c.media, nil
}

// MarkLive latches the room's first-producer transition. It returns true
// exactly once.
func (r *Room) MarkLive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live {
		return false
	}
	r.live = true
	return true
}

// Live reports whether the first producer has been created in this room.
func (r *Room) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Producers returns a snapshot of every producer currently in the room.
func (r *Room) Producers() []domain.ProducerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.ProducerInfo
	for _, p := range r.participants {
		for _, prod := range p.producers {
			out = append(out, prod.Info())
		}
	}
	return out
}

// Participants returns a snapshot of current participant ids.
func (r *Room) Participants() []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.UserID, 0, len(r.participants))
	for id := range r.participants {
		out = append(out, id)
	}
	return out
}

func (r *Room) Has(userID domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[userID]
	return ok
}

func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func (r *Room) HasProducers() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if len(p.producers) > 0 {
			return true
		}
	}
	return false
}

// CloseProducer closes the producer and cascade-closes every consumer in
// the room derived from it. It returns the ids of closed consumers keyed by
// their owner so callers can notify those participants.
func (r *Room) CloseProducer(producerID domain.ProducerID) (map[domain.UserID][]domain.ConsumerID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owner *Participant
	var prod *Producer
	for _, p := range r.participants {
		if pr, ok := p.producers[producerID]; ok {
			owner, prod = p, pr
			break
		}
	}
	if prod == nil {
		return nil, domain.ErrProducerNotFound
	}

	prod.media.Close()
	delete(owner.producers, producerID)
	if t, ok := owner.transport(prod.transportID); ok {
		delete(t.producerIDs, producerID)
	}

	return r.cascadeConsumersLocked(producerID), nil
}

// cascadeConsumersLocked closes every consumer sourced from producerID.
// Callers hold r.mu.
func (r *Room) cascadeConsumersLocked(producerID domain.ProducerID) map[domain.UserID][]domain.ConsumerID {
	closed := make(map[domain.UserID][]domain.ConsumerID)
	for _, p := range r.participants {
		for id, c := range p.consumers {
			if c.ProducerID() != producerID {
				continue
			}
			c.media.Close()
			delete(p.consumers, id)
			if t, ok := p.transport(c.transportID); ok {
				delete(t.consumerIDs, id)
			}
			closed[p.userID] = append(closed[p.userID], id)
		}
	}
	return closed
}

// RemoveParticipant closes all of the participant's transports, cascading
// to its producers and consumers, then removes it from the room. It is a
// single cleanup unit: partial teardown is never left behind. It returns
// the producers that were closed (so other participants can be told their
// consumers are gone) and whether the room is now empty.
func (r *Room) RemoveParticipant(userID domain.UserID) (closedProducers []domain.ProducerID, empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return nil, len(r.participants) == 0, domain.ErrParticipantNotFound
	}

	for id := range p.producers {
		closedProducers = append(closedProducers, id)
	}

	// Closing the engine transport cascades to the media producers and
	// consumers it carries.
	for _, t := range p.transports {
		t.closed = true
		t.media.Close()
	}
	p.producers = make(map[domain.ProducerID]*Producer)
	p.consumers = make(map[domain.ConsumerID]*Consumer)

	delete(r.participants, userID)

	// Other participants' consumers sourced from this user's producers are
	// now invalid.
	for _, producerID := range closedProducers {
		r.cascadeConsumersLocked(producerID)
	}

	return closedProducers, len(r.participants) == 0, nil
}

// Close tears the room down: every remaining participant's transports and
// the routing context itself. Idempotent.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for _, p := range r.participants {
		for _, t := range p.transports {
			t.closed = true
			t.media.Close()
		}
	}
	r.participants = make(map[domain.UserID]*Participant)
	r.router.Close()
}

// Closed reports whether the room has been torn down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
