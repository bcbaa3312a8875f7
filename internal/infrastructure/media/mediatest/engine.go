// Package mediatest provides an in-memory media engine for tests. It honors
// the engine contract (cascading idempotent closes, paused consumers,
// capability checks) without touching the network.
package mediatest

import (
	"context"
	"fmt"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/utils"
)

// Engine is a fake ports.MediaEngine.
type Engine struct {
	mu          sync.Mutex
	generations map[int]uint64
	workers     map[int]*Worker

	// NewWorkerErr, when set, makes NewWorker fail.
	NewWorkerErr error
	// RouterErr, when set, makes CreateRoutingContext fail.
	RouterErr error

	routersCreated int
}

func NewEngine() *Engine {
	return &Engine{
		generations: make(map[int]uint64),
		workers:     make(map[int]*Worker),
	}
}

func (e *Engine) NewWorker(_ context.Context, index int) (ports.Worker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.NewWorkerErr != nil {
		return nil, e.NewWorkerErr
	}

	e.generations[index]++
	w := &Worker{
		engine:     e,
		index:      index,
		generation: e.generations[index],
		died:       make(chan error, 1),
	}
	e.workers[index] = w
	return w, nil
}

// WorkerAt returns the latest worker spawned at index.
func (e *Engine) WorkerAt(index int) *Worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workers[index]
}

// RoutersCreated reports how many routing contexts were ever allocated.
func (e *Engine) RoutersCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.routersCreated
}

// Worker is a fake ports.Worker.
type Worker struct {
	engine     *Engine
	index      int
	generation uint64
	died       chan error

	mu     sync.Mutex
	closed bool
}

func (w *Worker) Index() int         { return w.index }
func (w *Worker) Generation() uint64 { return w.generation }
func (w *Worker) Died() <-chan error { return w.died }

func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Kill simulates unexpected worker death.
func (w *Worker) Kill(err error) {
	w.died <- err
}

func (w *Worker) CreateRoutingContext(_ context.Context, codecs []domain.CodecCapability) (ports.RoutingContext, error) {
	w.engine.mu.Lock()
	routerErr := w.engine.RouterErr
	if routerErr == nil {
		w.engine.routersCreated++
	}
	w.engine.mu.Unlock()
	if routerErr != nil {
		return nil, routerErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("worker %d is closed", w.index)
	}
	return &Router{codecs: codecs}, nil
}

// Router is a fake ports.RoutingContext.
type Router struct {
	codecs []domain.CodecCapability

	mu         sync.Mutex
	transports []*Transport
	closed     bool
}

func (r *Router) Capabilities() []domain.CodecCapability { return r.codecs }

func (r *Router) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Router) CreateTransport(_ context.Context, direction domain.TransportDirection) (ports.MediaTransport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("routing context is closed")
	}

	t := &Transport{
		id:        domain.TransportID(utils.GenerateTransportID()),
		direction: direction,
		handshake: domain.HandshakeParams{Type: "offer", SDP: "v=0 fake"},
	}
	r.transports = append(r.transports, t)
	return t, nil
}

func (r *Router) Close() error {
	r.mu.Lock()
	transports := r.transports
	r.closed = true
	r.transports = nil
	r.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
	return nil
}

// Transport is a fake ports.MediaTransport.
type Transport struct {
	id        domain.TransportID
	direction domain.TransportDirection
	handshake domain.HandshakeParams

	mu        sync.Mutex
	connected bool
	closed    bool
	producers []*Producer
	consumers []*Consumer

	// ProduceErr and ConsumeErr, when set, fail the respective calls.
	ProduceErr error
	ConsumeErr error
}

func (t *Transport) ID() domain.TransportID               { return t.id }
func (t *Transport) Direction() domain.TransportDirection { return t.direction }
func (t *Transport) Handshake() domain.HandshakeParams    { return t.handshake }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Connect(_ context.Context, params domain.HandshakeParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return domain.ErrTransportClosed
	}
	if params.SDP == "" {
		return fmt.Errorf("empty remote description")
	}
	t.connected = true
	return nil
}

func (t *Transport) Produce(_ context.Context, kind domain.MediaKind, params domain.MediaParams) (ports.MediaProducer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ProduceErr != nil {
		return nil, t.ProduceErr
	}
	if t.closed {
		return nil, domain.ErrTransportClosed
	}

	p := &Producer{
		id:     domain.ProducerID(utils.GenerateProducerID()),
		kind:   kind,
		params: params,
	}
	t.producers = append(t.producers, p)
	return p, nil
}

func (t *Transport) Consume(_ context.Context, producer ports.MediaProducer, caps domain.ReceiverCapabilities) (ports.MediaConsumer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ConsumeErr != nil {
		return nil, t.ConsumeErr
	}
	if t.closed {
		return nil, domain.ErrTransportClosed
	}
	if !caps.CanDecode(producer.Params().MimeType) {
		return nil, domain.ErrIncompatibleCapabilities
	}

	c := &Consumer{
		id:         domain.ConsumerID(utils.GenerateConsumerID()),
		producerID: producer.ID(),
		kind:       producer.Kind(),
		paused:     true,
	}
	t.consumers = append(t.consumers, c)
	return c, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	t.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
	for _, c := range consumers {
		c.Close()
	}
	return nil
}

// Producer is a fake ports.MediaProducer.
type Producer struct {
	id     domain.ProducerID
	kind   domain.MediaKind
	params domain.MediaParams

	mu     sync.Mutex
	closed bool
}

func (p *Producer) ID() domain.ProducerID      { return p.id }
func (p *Producer) Kind() domain.MediaKind     { return p.kind }
func (p *Producer) Params() domain.MediaParams { return p.params }

func (p *Producer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Consumer is a fake ports.MediaConsumer.
type Consumer struct {
	id         domain.ConsumerID
	producerID domain.ProducerID
	kind       domain.MediaKind

	mu     sync.Mutex
	paused bool
	closed bool
}

func (c *Consumer) ID() domain.ConsumerID         { return c.id }
func (c *Consumer) ProducerID() domain.ProducerID { return c.producerID }
func (c *Consumer) Kind() domain.MediaKind        { return c.kind }

func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Consumer) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Consumer) Resume(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrConsumerNotFound
	}
	c.paused = false
	return nil
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
