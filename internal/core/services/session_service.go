package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/session"
	"streamcast/pkg/circuitbreaker"
	apperrors "streamcast/pkg/errors"
	"streamcast/pkg/retry"
	"streamcast/pkg/tracing"
	"streamcast/pkg/utils"
	"streamcast/pkg/validation"

	"go.uber.org/zap"
)

// SessionConfig carries the room-level tunables the orchestrator needs.
type SessionConfig struct {
	MaxParticipants int
	EndGraceWindow  time.Duration
	ChatHistorySize int
}

// SessionService orchestrates the whole broadcast lifecycle: stream records,
// lazy room creation against the worker pool, transport/producer/consumer
// registration, and finalization. It is the only writer of room state; the
// gateway and REST handlers go through it.
//
// Collaborator policy: the presence cache is the source of truth for live
// state, durable persistence is best-effort (retried behind a circuit
// breaker, failures logged), and event publication is fire-and-forget.
type SessionService struct {
	cfg      SessionConfig
	pool     ports.WorkerPool
	registry *session.Registry
	streams  ports.StreamRepository
	presence ports.PresenceRepository
	bus      ports.EventBus
	metrics  Metrics
	logger   *zap.SugaredLogger

	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config

	notifierMu sync.RWMutex
	notifier   ports.RoomNotifier

	recordsMu sync.RWMutex
	records   map[domain.StreamID]*domain.Stream
}

var _ ports.SessionService = (*SessionService)(nil)

func NewSessionService(
	cfg SessionConfig,
	pool ports.WorkerPool,
	registry *session.Registry,
	streams ports.StreamRepository,
	presence ports.PresenceRepository,
	bus ports.EventBus,
	metrics Metrics,
	logger *zap.SugaredLogger,
) *SessionService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &SessionService{
		cfg:      cfg,
		pool:     pool,
		registry: registry,
		streams:  streams,
		presence: presence,
		bus:      bus,
		metrics:  metrics,
		logger:   logger,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retryCfg: retry.DefaultConfig(),
		notifier: ports.NopNotifier{},
		records:  make(map[domain.StreamID]*domain.Stream),
	}
}

// SetNotifier binds the signaling gateway once it is up. Until then
// broadcasts are discarded.
func (s *SessionService) SetNotifier(n ports.RoomNotifier) {
	s.notifierMu.Lock()
	s.notifier = n
	s.notifierMu.Unlock()
}

func (s *SessionService) broadcast(streamID domain.StreamID, n ports.Notification, exclude ...domain.UserID) {
	s.notifierMu.RLock()
	notifier := s.notifier
	s.notifierMu.RUnlock()
	notifier.BroadcastToRoom(streamID, n, exclude...)
}

// persist runs a durable write on its own deadline, detached from the live
// operation. Failures trip the breaker and are logged, never returned.
func (s *SessionService) persist(op string, streamID domain.StreamID, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := s.breaker.Execute(ctx, func() error {
			return retry.Do(ctx, s.retryCfg, func() error { return fn(ctx) })
		})
		if err != nil {
			s.logger.Warnw("durable write failed", "op", op, "stream_id", streamID, "error", err)
		}
	}()
}

// observe reports one operation's latency into the collector.
func (s *SessionService) observe(op string, start time.Time) {
	s.metrics.OperationObserved(op, time.Since(start))
}

// record returns a copy of the in-memory stream record. The map values are
// only mutated under recordsMu, so callers get a consistent snapshot.
func (s *SessionService) record(streamID domain.StreamID) (*domain.Stream, bool) {
	s.recordsMu.RLock()
	defer s.recordsMu.RUnlock()
	rec, ok := s.records[streamID]
	if !ok {
		return nil, false
	}
	return snapshotStream(rec), true
}

func (s *SessionService) CreateStream(ctx context.Context, userID domain.UserID, title string) (*domain.Stream, error) {
	defer s.observe("create_stream", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "create_stream", "")
	defer span.End()

	if err := validation.ValidateStreamTitle(title); err != nil {
		return nil, apperrors.NewInvalidArgumentError(err.Error())
	}

	stream := &domain.Stream{
		ID:        domain.StreamID(utils.GenerateStreamID()),
		Title:     title,
		OwnerID:   userID,
		Status:    domain.StreamCreated,
		CreatedAt: time.Now().UTC(),
	}

	s.recordsMu.Lock()
	s.records[stream.ID] = stream
	s.recordsMu.Unlock()

	snapshot := snapshotStream(stream)
	s.persist("create", stream.ID, func(ctx context.Context) error {
		return s.streams.Create(ctx, snapshot)
	})
	s.bus.Publish(ctx, domain.NewEvent(domain.EventStreamCreated, stream.ID, userID))

	s.logger.Infow("stream created", "stream_id", stream.ID, "owner_id", userID)
	return snapshotStream(stream), nil
}

// roomFor creates the room on first reference: the next round-robin worker
// hands out a routing context with the fixed codec set, and the room pins
// that worker's index and generation.
func (s *SessionService) roomFor(ctx context.Context, streamID domain.StreamID) (*session.Room, error) {
	rec, ok := s.record(streamID)
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	if rec.Status == domain.StreamEnded {
		return nil, domain.ErrStreamEnded
	}

	return s.registry.GetOrCreate(streamID, func() (*session.Room, error) {
		worker, err := s.pool.AcquireNext()
		if err != nil {
			return nil, apperrors.WrapError(err, apperrors.ErrCodeResourceExhausted, "no media workers available", http.StatusServiceUnavailable)
		}
		router, err := worker.CreateRoutingContext(ctx, domain.DefaultCodecSet())
		if err != nil {
			return nil, apperrors.NewUpstreamUnavailableError(err, "media engine rejected routing context")
		}
		s.metrics.RoomOpened()
		s.logger.Infow("room created",
			"stream_id", streamID,
			"worker_index", worker.Index(),
			"worker_generation", worker.Generation())
		return session.NewRoom(streamID, worker, router, s.cfg.MaxParticipants), nil
	})
}

func (s *SessionService) JoinStream(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*ports.JoinResult, error) {
	defer s.observe("join_stream", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "join_stream", string(streamID))
	defer span.End()

	rec, ok := s.record(streamID)
	if !ok {
		return nil, domain.ErrStreamNotFound
	}

	room, err := s.roomFor(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if _, _, err := room.Join(userID); err != nil {
		return nil, err
	}

	viewers, err := s.presence.AddViewer(ctx, streamID, userID)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(err, "presence cache unavailable")
	}
	stats, err := s.presence.GetStats(ctx, streamID)
	if err != nil {
		s.logger.Warnw("stats snapshot failed", "stream_id", streamID, "error", err)
		stats = &domain.StreamStats{Viewers: viewers}
	}
	messages, err := s.presence.RecentChatMessages(ctx, streamID, s.cfg.ChatHistorySize)
	if err != nil {
		s.logger.Warnw("chat history fetch failed", "stream_id", streamID, "error", err)
	}

	s.metrics.ViewerJoined()
	s.bus.Publish(ctx, domain.NewEvent(domain.EventViewerJoined, streamID, userID))
	s.broadcast(streamID, ports.Notification{
		Type: ports.NotifyViewerJoined,
		Data: map[string]any{"user_id": userID, "viewers": viewers},
	}, userID)

	return &ports.JoinResult{
		Stream:    rec,
		Viewers:   viewers,
		Stats:     stats,
		Messages:  messages,
		Producers: room.Producers(),
	}, nil
}

func (s *SessionService) RouterCapabilities(ctx context.Context, streamID domain.StreamID) ([]domain.CodecCapability, error) {
	room, err := s.roomFor(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return room.Router().Capabilities(), nil
}

func (s *SessionService) CreateTransport(ctx context.Context, streamID domain.StreamID, userID domain.UserID, direction domain.TransportDirection) (*domain.TransportInfo, error) {
	defer s.observe("create_transport", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "create_transport", string(streamID))
	defer span.End()

	if !direction.Valid() {
		return nil, domain.ErrInvalidDirection
	}

	room, err := s.roomFor(ctx, streamID)
	if err != nil {
		return nil, err
	}

	// The engine call happens outside the room lock; registration compensates
	// by closing the fresh transport if the room rejects it.
	transport, err := room.Router().CreateTransport(ctx, direction)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(err, "media engine rejected transport")
	}
	if err := room.RegisterTransport(userID, transport); err != nil {
		transport.Close()
		return nil, err
	}

	return &domain.TransportInfo{
		ID:        transport.ID(),
		Direction: direction,
		Handshake: transport.Handshake(),
	}, nil
}

func (s *SessionService) ConnectTransport(ctx context.Context, streamID domain.StreamID, userID domain.UserID, transportID domain.TransportID, params domain.HandshakeParams) error {
	defer s.observe("connect_transport", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "connect_transport", string(streamID))
	defer span.End()

	room, ok := s.registry.Get(streamID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	transport, err := room.Transport(userID, transportID)
	if err != nil {
		return err
	}
	if err := transport.Connect(ctx, params); err != nil {
		return apperrors.NewUpstreamUnavailableError(err, "transport handshake failed")
	}
	return nil
}

func (s *SessionService) Produce(ctx context.Context, streamID domain.StreamID, userID domain.UserID, transportID domain.TransportID, kind domain.MediaKind, params domain.MediaParams) (domain.ProducerID, error) {
	defer s.observe("produce", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "produce", string(streamID))
	defer span.End()

	if !kind.Valid() {
		return "", apperrors.NewInvalidArgumentError("media kind must be audio or video")
	}
	if !params.MatchesKind(kind) {
		return "", domain.ErrInvalidMediaParams
	}

	room, ok := s.registry.Get(streamID)
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	transport, err := room.Transport(userID, transportID)
	if err != nil {
		return "", err
	}

	producer, err := transport.Produce(ctx, kind, params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDirection) {
			return "", err
		}
		return "", apperrors.NewUpstreamUnavailableError(err, "media engine rejected producer")
	}
	if err := room.RegisterProducer(userID, transportID, producer); err != nil {
		producer.Close()
		return "", err
	}

	if room.MarkLive() {
		s.markStreamLive(ctx, streamID)
	}

	s.metrics.ProducerCreated(string(kind))
	s.bus.Publish(ctx, domain.NewEvent(domain.EventProducerCreated, streamID, userID).
		WithPayload(map[string]any{"producer_id": producer.ID(), "kind": kind}))
	s.broadcast(streamID, ports.Notification{
		Type: ports.NotifyNewProducer,
		Data: domain.ProducerInfo{ID: producer.ID(), UserID: userID, Kind: kind},
	}, userID)

	s.logger.Infow("producer created",
		"stream_id", streamID, "user_id", userID, "producer_id", producer.ID(), "kind", kind)
	return producer.ID(), nil
}

// markStreamLive records the first-producer transition. The room latch
// guarantees this runs at most once per room.
func (s *SessionService) markStreamLive(ctx context.Context, streamID domain.StreamID) {
	s.recordsMu.Lock()
	rec, ok := s.records[streamID]
	if ok && rec.Status == domain.StreamCreated {
		now := time.Now().UTC()
		rec.Status = domain.StreamLive
		rec.StartedAt = &now
	}
	var snapshot *domain.Stream
	if ok {
		snapshot = snapshotStream(rec)
	}
	s.recordsMu.Unlock()

	if snapshot == nil {
		return
	}
	s.persist("mark_live", streamID, func(ctx context.Context) error {
		return s.streams.Update(ctx, snapshot)
	})
	s.bus.Publish(ctx, domain.NewEvent(domain.EventStreamStarted, streamID, snapshot.OwnerID))
	s.logger.Infow("stream live", "stream_id", streamID)
}

func (s *SessionService) ListProducers(ctx context.Context, streamID domain.StreamID, userID domain.UserID) ([]domain.ProducerInfo, error) {
	room, ok := s.registry.Get(streamID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	// The caller's own producers are filtered out: a broadcaster never
	// consumes itself.
	var out []domain.ProducerInfo
	for _, info := range room.Producers() {
		if info.UserID == userID {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *SessionService) Consume(ctx context.Context, streamID domain.StreamID, userID domain.UserID, producerID domain.ProducerID, caps domain.ReceiverCapabilities) (*domain.ConsumerInfo, error) {
	defer s.observe("consume", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "consume", string(streamID))
	defer span.End()

	room, ok := s.registry.Get(streamID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	producer, err := room.FindProducer(producerID)
	if err != nil {
		return nil, err
	}
	transport, err := room.RecvTransport(userID)
	if err != nil {
		return nil, err
	}

	consumer, err := transport.Consume(ctx, producer.Media(), caps)
	if err != nil {
		if errors.Is(err, domain.ErrIncompatibleCapabilities) {
			appErr := apperrors.NewIncompatibleCapabilitiesError("receiver capabilities cannot decode this producer")
			appErr.Cause = err
			return nil, appErr
		}
		return nil, apperrors.NewUpstreamUnavailableError(err, "media engine rejected consumer")
	}
	if err := room.RegisterConsumer(userID, transport.ID(), consumer); err != nil {
		consumer.Close()
		return nil, err
	}

	s.metrics.ConsumerCreated()
	s.bus.Publish(ctx, domain.NewEvent(domain.EventConsumerCreated, streamID, userID).
		WithPayload(map[string]any{"consumer_id": consumer.ID(), "producer_id": producerID}))

	return &domain.ConsumerInfo{
		ID:         consumer.ID(),
		ProducerID: producerID,
		Kind:       consumer.Kind(),
		Paused:     true,
		Params:     producer.Media().Params(),
	}, nil
}

func (s *SessionService) ResumeConsumer(ctx context.Context, streamID domain.StreamID, userID domain.UserID, consumerID domain.ConsumerID) error {
	defer s.observe("resume_consumer", time.Now())

	room, ok := s.registry.Get(streamID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	consumer, err := room.Consumer(userID, consumerID)
	if err != nil {
		return err
	}
	if err := consumer.Resume(ctx); err != nil {
		return apperrors.NewUpstreamUnavailableError(err, "consumer resume failed")
	}
	return nil
}

func (s *SessionService) SendChatMessage(ctx context.Context, streamID domain.StreamID, userID domain.UserID, text string) (*domain.ChatMessage, error) {
	defer s.observe("send_chat_message", time.Now())

	if err := validation.ValidateChatText(text); err != nil {
		return nil, apperrors.NewInvalidArgumentError(err.Error())
	}
	rec, ok := s.record(streamID)
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	if rec.Status == domain.StreamEnded {
		return nil, domain.ErrStreamEnded
	}

	msg := &domain.ChatMessage{
		ID:       utils.GenerateMessageID(),
		StreamID: streamID,
		UserID:   userID,
		Text:     text,
		SentAt:   time.Now().UTC(),
	}
	if err := s.presence.AppendChatMessage(ctx, msg); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(err, "presence cache unavailable")
	}

	s.broadcast(streamID, ports.Notification{Type: ports.NotifyChatMessage, Data: msg})
	return msg, nil
}

// CloseParticipant tears down one user's media state as a unit and, when the
// room empties, tears the room down too. A live stream whose room empties is
// finalized here: the broadcaster leaving without endStream must not leave
// the record dangling.
func (s *SessionService) CloseParticipant(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error {
	defer s.observe("close_participant", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "close_participant", string(streamID))
	defer span.End()

	room, ok := s.registry.Get(streamID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	closedProducers, empty, err := room.RemoveParticipant(userID)
	if err != nil {
		return err
	}

	viewers, perr := s.presence.RemoveViewer(ctx, streamID, userID)
	haveCount := perr == nil
	if perr != nil {
		s.logger.Warnw("presence remove failed", "stream_id", streamID, "user_id", userID, "error", perr)
		// Fall back to a fresh read rather than broadcasting a zero count.
		if stats, serr := s.presence.GetStats(ctx, streamID); serr == nil {
			viewers = stats.Viewers
			haveCount = true
		}
	}

	for _, producerID := range closedProducers {
		s.bus.Publish(ctx, domain.NewEvent(domain.EventProducerClosed, streamID, userID).
			WithPayload(map[string]any{"producer_id": producerID}))
		s.broadcast(streamID, ports.Notification{
			Type: ports.NotifyProducerClosed,
			Data: map[string]any{"producer_id": producerID, "user_id": userID},
		})
	}

	s.metrics.ViewerLeft()
	s.bus.Publish(ctx, domain.NewEvent(domain.EventViewerLeft, streamID, userID))
	leftPayload := map[string]any{"user_id": userID}
	if haveCount {
		leftPayload["viewers"] = viewers
	}
	s.broadcast(streamID, ports.Notification{
		Type: ports.NotifyViewerLeft,
		Data: leftPayload,
	})

	if empty {
		s.teardownRoom(ctx, room)
	}
	return nil
}

// teardownRoom closes an empty room and finalizes the record if the stream
// was still live.
func (s *SessionService) teardownRoom(ctx context.Context, room *session.Room) {
	streamID := room.StreamID()
	s.registry.Remove(streamID)
	room.Close()
	s.metrics.RoomClosed()
	s.logger.Infow("room closed", "stream_id", streamID)

	rec, ok := s.record(streamID)
	if ok && rec.Status == domain.StreamLive {
		s.finalizeStream(ctx, streamID, domain.EventStreamEnded)
	}
}

func (s *SessionService) EndStream(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*ports.StreamSummary, error) {
	defer s.observe("end_stream", time.Now())

	ctx, span := tracing.TraceSessionOp(ctx, "end_stream", string(streamID))
	defer span.End()

	// Ending twice is NotFound, not a silent success. The record flips to
	// ended before participant teardown so the empty-room path does not
	// finalize a second time.
	s.recordsMu.Lock()
	rec, ok := s.records[streamID]
	if !ok || rec.Status == domain.StreamEnded {
		s.recordsMu.Unlock()
		return nil, domain.ErrStreamNotFound
	}
	s.recordsMu.Unlock()

	summary := s.finalizeStream(ctx, streamID, domain.EventStreamEnded)
	if summary == nil {
		return nil, domain.ErrStreamNotFound
	}

	if room, ok := s.registry.Get(streamID); ok {
		s.broadcast(streamID, ports.Notification{
			Type: ports.NotifyStreamEnded,
			Data: summary,
		}, userID)
		if room.Has(userID) {
			if err := s.CloseParticipant(ctx, streamID, userID); err != nil && !errors.Is(err, domain.ErrParticipantNotFound) {
				s.logger.Warnw("ending participant close failed", "stream_id", streamID, "error", err)
			}
		}
	}

	return summary, nil
}

// finalizeStream flips the record to ended exactly once, snapshots
// peak-viewer and view counts from the presence cache, persists the final
// record, and schedules the grace-window cleanup of ephemeral state.
func (s *SessionService) finalizeStream(ctx context.Context, streamID domain.StreamID, event domain.EventType) *ports.StreamSummary {
	s.recordsMu.Lock()
	rec, ok := s.records[streamID]
	if !ok || rec.Status == domain.StreamEnded {
		s.recordsMu.Unlock()
		return nil
	}
	now := time.Now().UTC()
	rec.Status = domain.StreamEnded
	rec.EndedAt = &now
	if rec.StartedAt != nil {
		rec.Duration = int64(now.Sub(*rec.StartedAt).Seconds())
	}
	s.recordsMu.Unlock()

	stats, err := s.presence.GetStats(ctx, streamID)
	if err != nil {
		s.logger.Warnw("final stats snapshot failed", "stream_id", streamID, "error", err)
		stats = &domain.StreamStats{}
	}

	s.recordsMu.Lock()
	rec.PeakViewers = stats.MaxViewers
	rec.TotalViews = stats.Views
	snapshot := snapshotStream(rec)
	s.recordsMu.Unlock()

	s.persist("finalize", streamID, func(ctx context.Context) error {
		return s.streams.Update(ctx, snapshot)
	})
	s.bus.Publish(ctx, domain.NewEvent(event, streamID, snapshot.OwnerID))
	s.logger.Infow("stream ended",
		"stream_id", streamID, "duration_seconds", snapshot.Duration, "peak_viewers", snapshot.PeakViewers)

	// In-flight viewers get the grace window to observe the end notification
	// before ephemeral state disappears.
	time.AfterFunc(s.cfg.EndGraceWindow, func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.presence.ClearStream(cctx, streamID); err != nil {
			s.logger.Warnw("grace-window cleanup failed", "stream_id", streamID, "error", err)
		}
		s.recordsMu.Lock()
		delete(s.records, streamID)
		s.recordsMu.Unlock()
	})

	return &ports.StreamSummary{
		Stream:      snapshot,
		Duration:    snapshot.Duration,
		PeakViewers: snapshot.PeakViewers,
		TotalViews:  snapshot.TotalViews,
	}
}

// AbortStream force-ends a stream whose room lost its media worker. Viewers
// get a stream-aborted broadcast instead of stream-ended.
func (s *SessionService) AbortStream(ctx context.Context, streamID domain.StreamID) error {
	ctx, span := tracing.TraceSessionOp(ctx, "abort_stream", string(streamID))
	defer span.End()

	room, ok := s.registry.Get(streamID)
	if ok {
		s.broadcast(streamID, ports.Notification{
			Type: ports.NotifyStreamAborted,
			Data: map[string]any{"stream_id": streamID},
		})
		s.registry.Remove(streamID)
		room.Close()
		s.metrics.RoomClosed()
	}

	if s.finalizeStream(ctx, streamID, domain.EventStreamAborted) == nil && !ok {
		return domain.ErrStreamNotFound
	}
	s.logger.Warnw("stream aborted", "stream_id", streamID)
	return nil
}

func (s *SessionService) GetStream(ctx context.Context, streamID domain.StreamID) (*domain.Stream, error) {
	if rec, ok := s.record(streamID); ok {
		return rec, nil
	}
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return nil, domain.ErrStreamNotFound
	}
	return stream, nil
}

func (s *SessionService) ListLiveStreams(ctx context.Context) ([]*domain.Stream, error) {
	s.recordsMu.RLock()
	defer s.recordsMu.RUnlock()

	out := make([]*domain.Stream, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Status == domain.StreamLive {
			out = append(out, snapshotStream(rec))
		}
	}
	return out, nil
}

func (s *SessionService) GetStreamStats(ctx context.Context, streamID domain.StreamID) (*domain.StreamStats, error) {
	if _, ok := s.record(streamID); !ok {
		return nil, domain.ErrStreamNotFound
	}
	stats, err := s.presence.GetStats(ctx, streamID)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(err, "presence cache unavailable")
	}
	return stats, nil
}

// snapshotStream copies the record so callers never alias the orchestrator's
// mutable state.
func snapshotStream(rec *domain.Stream) *domain.Stream {
	cp := *rec
	return &cp
}
