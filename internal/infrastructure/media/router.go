package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/utils"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

var errRouterClosed = errors.New("routing context is closed")

// router is one per-room routing context: it relays producer RTP to
// consumer tracks without re-encoding.
type router struct {
	worker *worker
	codecs []domain.CodecCapability
	logger *zap.SugaredLogger

	mu         sync.Mutex
	transports []*transport
	closed     bool
}

func (r *router) Capabilities() []domain.CodecCapability {
	return r.codecs
}

func (r *router) CreateTransport(_ context.Context, direction domain.TransportDirection) (ports.MediaTransport, error) {
	t, err := r.createTransport(direction)
	if err != nil {
		// A closed routing context is a caller mistake, not worker illness.
		if !errors.Is(err, errRouterClosed) {
			r.worker.noteFailure(err)
		}
		return nil, err
	}
	r.worker.noteSuccess()
	return t, nil
}

func (r *router) createTransport(direction domain.TransportDirection) (*transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRouterClosed
	}

	pc, err := r.worker.api.NewPeerConnection(webrtc.Configuration{ICEServers: r.worker.iceServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &transport{
		id:        domain.TransportID(utils.GenerateTransportID()),
		direction: direction,
		pc:        pc,
		logger:    r.logger,
	}

	switch direction {
	case domain.DirectionSend:
		// The client sends media toward us.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
			}
		}
		pc.OnTrack(t.onRemoteTrack)
	case domain.DirectionRecv:
		// We send media toward the client; consumer tracks attach later.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionSendonly,
			}); err != nil {
				pc.Close()
				return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
			}
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	t.handshake = domain.HandshakeParams{Type: "offer", SDP: offer.SDP}
	r.transports = append(r.transports, t)
	return t, nil
}

func (r *router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	transports := r.transports
	r.transports = nil
	r.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
	return nil
}

// transport is one peer connection in one direction.
type transport struct {
	id        domain.TransportID
	direction domain.TransportDirection
	pc        *webrtc.PeerConnection
	handshake domain.HandshakeParams
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	producers []*producer
	consumers []*consumer
	closed    bool
}

func (t *transport) ID() domain.TransportID               { return t.id }
func (t *transport) Direction() domain.TransportDirection { return t.direction }
func (t *transport) Handshake() domain.HandshakeParams    { return t.handshake }

func (t *transport) Connect(_ context.Context, params domain.HandshakeParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return domain.ErrTransportClosed
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: params.SDP}
	if params.Type == "offer" {
		desc.Type = webrtc.SDPTypeOffer
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

func (t *transport) Produce(_ context.Context, kind domain.MediaKind, params domain.MediaParams) (ports.MediaProducer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, domain.ErrTransportClosed
	}
	if t.direction != domain.DirectionSend {
		return nil, fmt.Errorf("produce requires a send transport")
	}

	p := &producer{
		id:        domain.ProducerID(utils.GenerateProducerID()),
		kind:      kind,
		params:    params,
		transport: t,
		consumers: make(map[domain.ConsumerID]*consumer),
		logger:    t.logger,
	}
	t.producers = append(t.producers, p)
	return p, nil
}

func (t *transport) Consume(_ context.Context, mp ports.MediaProducer, caps domain.ReceiverCapabilities) (ports.MediaConsumer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, domain.ErrTransportClosed
	}
	if t.direction != domain.DirectionRecv {
		return nil, fmt.Errorf("consume requires a recv transport")
	}
	if !caps.CanDecode(mp.Params().MimeType) {
		return nil, domain.ErrIncompatibleCapabilities
	}

	src, ok := mp.(*producer)
	if !ok {
		return nil, fmt.Errorf("producer was not created by this engine")
	}

	track, err := webrtc.NewTrackLocalStaticRTP(codecCapability(mp.Params()), string(mp.ID()), string(t.id))
	if err != nil {
		return nil, fmt.Errorf("failed to create local track: %w", err)
	}
	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	c := &consumer{
		id:         domain.ConsumerID(utils.GenerateConsumerID()),
		producerID: mp.ID(),
		kind:       mp.Kind(),
		source:     src,
		track:      track,
		sender:     sender,
		transport:  t,
		paused:     true,
	}

	// Drain sender RTCP so interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	src.attach(c)
	t.consumers = append(t.consumers, c)
	return c, nil
}

// onRemoteTrack pairs an incoming remote track with the pending producer of
// the same kind and starts forwarding its RTP.
func (t *transport) onRemoteTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	kind := domain.MediaKind(remote.Kind().String())

	t.mu.Lock()
	var target *producer
	for _, p := range t.producers {
		if p.kind == kind && !p.hasRemote() {
			target = p
			break
		}
	}
	t.mu.Unlock()

	if target == nil {
		t.logger.Warnw("remote track with no matching producer", "transport", t.id, "kind", kind)
		return
	}

	target.setRemote(remote)
	go target.forwardLoop(remote)
}

func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	t.producers = nil
	t.consumers = nil
	t.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
	for _, c := range consumers {
		c.Close()
	}
	return t.pc.Close()
}

// producer forwards one remote flow to every attached consumer track.
type producer struct {
	id        domain.ProducerID
	kind      domain.MediaKind
	params    domain.MediaParams
	transport *transport
	logger    *zap.SugaredLogger

	mu        sync.RWMutex
	remote    *webrtc.TrackRemote
	consumers map[domain.ConsumerID]*consumer
	closed    bool
}

func (p *producer) ID() domain.ProducerID      { return p.id }
func (p *producer) Kind() domain.MediaKind     { return p.kind }
func (p *producer) Params() domain.MediaParams { return p.params }

func (p *producer) hasRemote() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remote != nil
}

func (p *producer) setRemote(remote *webrtc.TrackRemote) {
	p.mu.Lock()
	p.remote = remote
	p.mu.Unlock()
}

func (p *producer) attach(c *consumer) {
	p.mu.Lock()
	p.consumers[c.id] = c
	p.mu.Unlock()
}

func (p *producer) detach(id domain.ConsumerID) {
	p.mu.Lock()
	delete(p.consumers, id)
	p.mu.Unlock()
}

func (p *producer) forwardLoop(remote *webrtc.TrackRemote) {
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if err != io.EOF {
				p.logger.Debugw("producer read ended", "producer", p.id, "error", err)
			}
			return
		}
		p.forward(pkt)
	}
}

func (p *producer) forward(pkt *rtp.Packet) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	for _, c := range p.consumers {
		if c.isPaused() {
			continue
		}
		if err := c.track.WriteRTP(pkt); err != nil && err != io.ErrClosedPipe {
			p.logger.Debugw("failed to forward packet", "consumer", c.id, "error", err)
		}
	}
}

// requestKeyFrame asks the publisher for a fresh keyframe, so a newly
// resumed consumer does not wait for the next natural one.
func (p *producer) requestKeyFrame() {
	p.mu.RLock()
	remote := p.remote
	p.mu.RUnlock()

	if remote == nil || p.kind != domain.MediaVideo {
		return
	}
	err := p.transport.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
	})
	if err != nil {
		p.logger.Debugw("failed to send PLI", "producer", p.id, "error", err)
	}
}

func (p *producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	consumers := make([]*consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.consumers = make(map[domain.ConsumerID]*consumer)
	p.mu.Unlock()

	// A producer going away invalidates every consumer derived from it.
	for _, c := range consumers {
		c.Close()
	}
	return nil
}

// consumer is one forwarded flow toward one receiver.
type consumer struct {
	id         domain.ConsumerID
	producerID domain.ProducerID
	kind       domain.MediaKind
	source     *producer
	track      *webrtc.TrackLocalStaticRTP
	sender     *webrtc.RTPSender
	transport  *transport

	mu     sync.Mutex
	paused bool
	closed bool
}

func (c *consumer) ID() domain.ConsumerID         { return c.id }
func (c *consumer) ProducerID() domain.ProducerID { return c.producerID }
func (c *consumer) Kind() domain.MediaKind        { return c.kind }

func (c *consumer) Paused() bool { return c.isPaused() }

func (c *consumer) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused || c.closed
}

func (c *consumer) Resume(context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrConsumerNotFound
	}
	c.paused = false
	c.mu.Unlock()

	c.source.requestKeyFrame()
	return nil
}

func (c *consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.source.detach(c.id)
	if err := c.transport.pc.RemoveTrack(c.sender); err != nil && err != webrtc.ErrConnectionClosed {
		c.transport.logger.Debugw("failed to remove track", "consumer", c.id, "error", err)
	}
	return nil
}
