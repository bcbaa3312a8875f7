package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config holds the engine-wide settings shared by all workers.
type Config struct {
	// RTCPortBase is the first UDP port of worker 0's range.
	RTCPortBase uint16
	// PortsPerWorker is the width of each worker's disjoint range.
	PortsPerWorker uint16
	ICEServers     []webrtc.ICEServer
}

// Engine creates pion-backed media workers. Each worker gets its own
// webrtc.API with an ephemeral UDP port range derived from its index, so
// port exhaustion on one worker cannot starve another.
type Engine struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu          sync.Mutex
	generations map[int]uint64
}

func NewEngine(cfg Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:         cfg,
		logger:      logger,
		generations: make(map[int]uint64),
	}
}

// PortRange returns the disjoint UDP range for a worker index.
func (e *Engine) PortRange(index int) (uint16, uint16) {
	min := e.cfg.RTCPortBase + uint16(index)*e.cfg.PortsPerWorker
	return min, min + e.cfg.PortsPerWorker - 1
}

func (e *Engine) NewWorker(_ context.Context, index int) (ports.Worker, error) {
	minPort, maxPort := e.PortRange(index)

	settings := webrtc.SettingEngine{}
	if err := settings.SetEphemeralUDPPortRange(minPort, maxPort); err != nil {
		return nil, fmt.Errorf("failed to set port range [%d,%d] for worker %d: %w", minPort, maxPort, index, err)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs for worker %d: %w", index, err)
	}

	e.mu.Lock()
	e.generations[index]++
	generation := e.generations[index]
	e.mu.Unlock()

	w := &worker{
		index:      index,
		generation: generation,
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithSettingEngine(settings)),
		iceServers: e.cfg.ICEServers,
		died:       make(chan error, 1),
		logger:     e.logger.With("worker", index, "generation", generation),
	}

	e.logger.Infow("media worker created",
		"index", index,
		"generation", generation,
		"port_min", minPort,
		"port_max", maxPort,
	)
	return w, nil
}

// workerFailureThreshold is how many consecutive transport-setup failures
// a worker tolerates before it is declared dead. A single failed peer
// connection can be the client's fault; a streak means the worker's API or
// port range is unusable.
const workerFailureThreshold = 3

// worker is one isolated media execution context: its own API, its own
// port range, its own routing contexts.
type worker struct {
	index      int
	generation uint64
	api        *webrtc.API
	iceServers []webrtc.ICEServer
	logger     *zap.SugaredLogger

	mu       sync.Mutex
	routers  []*router
	closed   bool
	failures int

	died     chan error
	diedOnce sync.Once
}

func (w *worker) Index() int         { return w.index }
func (w *worker) Generation() uint64 { return w.generation }
func (w *worker) Died() <-chan error { return w.died }

func (w *worker) CreateRoutingContext(_ context.Context, codecs []domain.CodecCapability) (ports.RoutingContext, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("worker %d is closed", w.index)
	}

	r := &router{
		worker: w,
		codecs: codecs,
		logger: w.logger,
	}
	w.routers = append(w.routers, r)
	return r, nil
}

// fail reports the worker dead exactly once.
func (w *worker) fail(err error) {
	w.diedOnce.Do(func() {
		w.died <- err
	})
}

// noteFailure records one failed transport setup. Crossing the streak
// threshold declares the worker dead so the pool can respawn it.
func (w *worker) noteFailure(err error) {
	w.mu.Lock()
	w.failures++
	streak := w.failures
	w.mu.Unlock()

	if streak >= workerFailureThreshold {
		w.logger.Errorw("worker declared dead after consecutive transport failures",
			"streak", streak, "error", err)
		w.fail(fmt.Errorf("worker %d: %d consecutive transport failures: %w", w.index, streak, err))
	}
}

// noteSuccess resets the failure streak.
func (w *worker) noteSuccess() {
	w.mu.Lock()
	w.failures = 0
	w.mu.Unlock()
}

func (w *worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	routers := w.routers
	w.routers = nil
	w.mu.Unlock()

	for _, r := range routers {
		r.Close()
	}
	return nil
}

// codecCapability maps a configured codec onto pion's RTP capability.
func codecCapability(params domain.MediaParams) webrtc.RTPCodecCapability {
	cap := webrtc.RTPCodecCapability{
		MimeType:  params.MimeType,
		ClockRate: uint32(params.ClockRate),
	}
	if strings.HasPrefix(strings.ToLower(params.MimeType), "audio/") {
		cap.Channels = 2
	}
	return cap
}
