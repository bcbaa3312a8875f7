package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// MediaEngine creates isolated media-processing workers. It is the only
// factory the worker pool uses, both at startup and on respawn.
type MediaEngine interface {
	// NewWorker creates the worker at the given pool index. The index
	// determines the worker's disjoint RTC port range.
	NewWorker(ctx context.Context, index int) (Worker, error)
}

// Worker is one isolated media-processing execution context.
type Worker interface {
	// Index is the worker's stable pool position, preserved across respawn.
	Index() int
	// Generation increments every time the slot is respawned, letting the
	// reconciler detect rooms pinned to a dead incarnation.
	Generation() uint64
	// CreateRoutingContext allocates a routing context with a fixed codec
	// set. The context is bound to this worker for its whole lifetime.
	CreateRoutingContext(ctx context.Context, codecs []domain.CodecCapability) (RoutingContext, error)
	// Died is closed (or receives an error) when the worker dies
	// unexpectedly.
	Died() <-chan error
	Close() error
}

// RoutingContext is a per-room media-routing context (the SFU router).
type RoutingContext interface {
	Capabilities() []domain.CodecCapability
	CreateTransport(ctx context.Context, direction domain.TransportDirection) (MediaTransport, error)
	// Close is idempotent and cascades to every transport created from this
	// context.
	Close() error
}

// MediaTransport is one negotiated network path for one participant in one
// direction.
type MediaTransport interface {
	ID() domain.TransportID
	Direction() domain.TransportDirection
	// Handshake returns the local connection material the caller completes
	// out of band.
	Handshake() domain.HandshakeParams
	// Connect finalizes the network/crypto handshake with the remote
	// parameters.
	Connect(ctx context.Context, params domain.HandshakeParams) error
	Produce(ctx context.Context, kind domain.MediaKind, params domain.MediaParams) (MediaProducer, error)
	// Consume attaches a receiver to the given producer. It fails with
	// domain.ErrIncompatibleCapabilities when the receiver cannot decode the
	// producer's format. The consumer starts paused.
	Consume(ctx context.Context, producer MediaProducer, caps domain.ReceiverCapabilities) (MediaConsumer, error)
	// Close is idempotent and cascades to producers and consumers carried by
	// this transport.
	Close() error
}

// MediaProducer is one outbound media flow.
type MediaProducer interface {
	ID() domain.ProducerID
	Kind() domain.MediaKind
	Params() domain.MediaParams
	// Close is idempotent; closing a producer invalidates every consumer
	// derived from it.
	Close() error
}

// MediaConsumer is one inbound media flow derived from a producer.
type MediaConsumer interface {
	ID() domain.ConsumerID
	ProducerID() domain.ProducerID
	Kind() domain.MediaKind
	Paused() bool
	Resume(ctx context.Context) error
	Close() error
}

// WorkerPool load-balances routing-context creation across workers.
type WorkerPool interface {
	// AcquireNext returns a live worker using round-robin selection. A dead
	// worker is never handed out; it is replaced before handoff.
	AcquireNext() (Worker, error)
	Size() int
	Close() error
}
