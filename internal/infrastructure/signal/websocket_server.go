package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"
	apperrors "streamcast/pkg/errors"
	pkglogger "streamcast/pkg/logger"
	"streamcast/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Config carries the gateway timeouts and per-connection rate limit.
type Config struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MessagesPerSecond float64
	Burst             int
}

// ConnMetrics is the connection gauge surface the prometheus collector
// implements.
type ConnMetrics interface {
	SignalConnected()
	SignalDisconnected()
}

// client is one authenticated signaling channel.
type client struct {
	conn     *websocket.Conn
	userID   domain.UserID
	username string
	send     chan []byte
	limiter  *rate.Limiter

	mu     sync.Mutex
	joined map[domain.StreamID]struct{}
	closed bool
}

func (c *client) joinedRooms() []domain.StreamID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.StreamID, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	return out
}

func (c *client) trackJoin(id domain.StreamID) {
	c.mu.Lock()
	c.joined[id] = struct{}{}
	c.mu.Unlock()
}

func (c *client) trackLeave(id domain.StreamID) {
	c.mu.Lock()
	delete(c.joined, id)
	c.mu.Unlock()
}

// enqueue never blocks the caller: a client that cannot drain its send
// buffer is dropped by the writer.
func (c *client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.closed = true
		close(c.send)
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WebSocketServer is the signaling gateway: one long-lived authenticated
// connection per client, request/response correlation by id, and room-wide
// broadcast fan-out. It performs no session logic itself; every request is
// delegated to the orchestrator.
type WebSocketServer struct {
	sessions ports.SessionService
	auth     services.AuthService
	cfg      Config
	metrics  ConnMetrics
	logger   *zap.SugaredLogger
	ctxLog   *pkglogger.ContextLogger

	mu          sync.RWMutex
	connections map[domain.UserID]*client
	rooms       map[domain.StreamID]map[domain.UserID]*client
}

func NewWebSocketServer(
	sessions ports.SessionService,
	auth services.AuthService,
	cfg Config,
	metrics ConnMetrics,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 100
	}
	return &WebSocketServer{
		sessions:    sessions,
		auth:        auth,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
		ctxLog:      pkglogger.NewContextLogger(logger.Desugar()),
		connections: make(map[domain.UserID]*client),
		rooms:       make(map[domain.StreamID]map[domain.UserID]*client),
	}
}

var _ ports.RoomNotifier = (*WebSocketServer)(nil)

// HandleWebSocket authenticates and upgrades one connection, then serves it
// until it closes. Authentication happens once, before the upgrade.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.auth.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:     conn,
		userID:   claims.UserID,
		username: claims.Username,
		send:     make(chan []byte, 64),
		limiter:  rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst),
		joined:   make(map[domain.StreamID]struct{}),
	}

	s.register(c)
	s.logger.Infow("signaling channel opened", "user_id", c.userID)

	go s.writePump(c)
	s.readLoop(c)
	s.disconnect(c)
}

// register indexes the client, closing any previous connection for the same
// user: reconnects replace, never duplicate.
func (s *WebSocketServer) register(c *client) {
	s.mu.Lock()
	old, reconnect := s.connections[c.userID]
	s.connections[c.userID] = c
	s.mu.Unlock()

	if reconnect {
		s.logger.Infow("closing previous connection for reconnecting user", "user_id", c.userID)
		old.shutdown()
		old.conn.Close()
	}
	if s.metrics != nil {
		s.metrics.SignalConnected()
	}
}

func (s *WebSocketServer) readLoop(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read error", "user_id", c.userID, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.respond(c, errResponse(0, apperrors.NewInvalidArgumentError("malformed request frame")))
			continue
		}
		s.respond(c, s.handleRequest(context.Background(), c, req))
	}
}

func (s *WebSocketServer) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketServer) respond(c *client, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Errorw("failed to marshal response", "error", err)
		return
	}
	c.enqueue(data)
}

// handleRequest dispatches one frame. Every request gets exactly one
// response carrying the request's id.
func (s *WebSocketServer) handleRequest(ctx context.Context, c *client, req Request) Response {
	if !c.limiter.Allow() {
		return errResponse(req.ID, apperrors.NewResourceExhaustedError("message rate limit exceeded"))
	}

	ctx = pkglogger.WithRequestID(ctx, strconv.FormatUint(req.ID, 10))
	ctx = pkglogger.WithUserID(ctx, string(c.userID))

	ctx, span := tracing.TraceSignalRequest(ctx, req.Method, string(c.userID))
	defer span.End()

	data, err := s.dispatch(ctx, c, req)
	if err != nil {
		s.ctxLog.WithContext(ctx).Debug("request failed",
			zap.String("method", req.Method), zap.Error(err))
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, data)
}

func (s *WebSocketServer) dispatch(ctx context.Context, c *client, req Request) (any, error) {
	switch req.Method {
	case "create-stream":
		var d createStreamData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		return s.sessions.CreateStream(ctx, c.userID, d.Title)

	case "join-stream":
		var d streamRefData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		result, err := s.sessions.JoinStream(ctx, d.StreamID, c.userID)
		if err != nil {
			return nil, err
		}
		s.trackRoomJoin(c, d.StreamID)
		return result, nil

	case "get-router-capabilities":
		var d streamRefData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		codecs, err := s.sessions.RouterCapabilities(ctx, d.StreamID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"codecs": codecs}, nil

	case "create-transport":
		var d createTransportData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		return s.sessions.CreateTransport(ctx, d.StreamID, c.userID, d.Direction)

	case "connect-transport":
		var d connectTransportData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		if err := s.sessions.ConnectTransport(ctx, d.StreamID, c.userID, d.TransportID, d.Handshake); err != nil {
			return nil, err
		}
		return map[string]any{"connected": true}, nil

	case "produce":
		var d produceData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		producerID, err := s.sessions.Produce(ctx, d.StreamID, c.userID, d.TransportID, d.Kind, d.Params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"producer_id": producerID}, nil

	case "list-producers":
		var d streamRefData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		producers, err := s.sessions.ListProducers(ctx, d.StreamID, c.userID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"producers": producers}, nil

	case "consume":
		var d consumeData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		return s.sessions.Consume(ctx, d.StreamID, c.userID, d.ProducerID, d.Capabilities)

	case "resume-consumer":
		var d resumeConsumerData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		if err := s.sessions.ResumeConsumer(ctx, d.StreamID, c.userID, d.ConsumerID); err != nil {
			return nil, err
		}
		return map[string]any{"resumed": true}, nil

	case "chat":
		var d chatData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		return s.sessions.SendChatMessage(ctx, d.StreamID, c.userID, d.Text)

	case "end-stream":
		var d streamRefData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		summary, err := s.sessions.EndStream(ctx, d.StreamID, c.userID)
		if err != nil {
			return nil, err
		}
		s.trackRoomLeave(c, d.StreamID)
		return summary, nil

	case "leave-stream":
		var d streamRefData
		if err := unmarshalData(req.Data, &d); err != nil {
			return nil, err
		}
		if err := s.sessions.CloseParticipant(ctx, d.StreamID, c.userID); err != nil {
			return nil, err
		}
		s.trackRoomLeave(c, d.StreamID)
		return map[string]any{"left": true}, nil

	default:
		return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperrors.NewInvalidArgumentError("request data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.NewInvalidArgumentError("malformed request data")
	}
	return nil
}

func (s *WebSocketServer) trackRoomJoin(c *client, streamID domain.StreamID) {
	c.trackJoin(streamID)
	s.mu.Lock()
	if s.rooms[streamID] == nil {
		s.rooms[streamID] = make(map[domain.UserID]*client)
	}
	s.rooms[streamID][c.userID] = c
	s.mu.Unlock()
}

func (s *WebSocketServer) trackRoomLeave(c *client, streamID domain.StreamID) {
	c.trackLeave(streamID)
	s.mu.Lock()
	if members, ok := s.rooms[streamID]; ok {
		delete(members, c.userID)
		if len(members) == 0 {
			delete(s.rooms, streamID)
		}
	}
	s.mu.Unlock()
}

// leaveRoomIfCurrent removes c from a room's membership only when c is
// still the registered connection for its user. A reconnected user's
// replacement client keeps its membership untouched.
func (s *WebSocketServer) leaveRoomIfCurrent(c *client, streamID domain.StreamID) bool {
	c.trackLeave(streamID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[streamID]
	if !ok || members[c.userID] != c {
		return false
	}
	delete(members, c.userID)
	if len(members) == 0 {
		delete(s.rooms, streamID)
	}
	return true
}

// disconnect synthesizes a leave for every room the client had joined. An
// abrupt close must clean up exactly like an explicit leave-stream, except
// where a replacement connection has already rejoined the room.
func (s *WebSocketServer) disconnect(c *client) {
	s.mu.Lock()
	if s.connections[c.userID] == c {
		delete(s.connections, c.userID)
	}
	s.mu.Unlock()

	for _, streamID := range c.joinedRooms() {
		if !s.leaveRoomIfCurrent(c, streamID) {
			continue
		}
		if err := s.sessions.CloseParticipant(context.Background(), streamID, c.userID); err != nil {
			s.logger.Debugw("disconnect cleanup",
				"user_id", c.userID, "stream_id", streamID, "error", err)
		}
	}

	c.shutdown()
	c.conn.Close()
	if s.metrics != nil {
		s.metrics.SignalDisconnected()
	}
	s.logger.Infow("signaling channel closed", "user_id", c.userID)
}

// BroadcastToRoom fans a notification out to every channel joined to the
// room, skipping excluded users.
func (s *WebSocketServer) BroadcastToRoom(streamID domain.StreamID, notification ports.Notification, exclude ...domain.UserID) {
	data, err := json.Marshal(notification)
	if err != nil {
		s.logger.Errorw("failed to marshal notification", "type", notification.Type, "error", err)
		return
	}

	excluded := make(map[domain.UserID]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	members := make([]*client, 0, len(s.rooms[streamID]))
	for userID, c := range s.rooms[streamID] {
		if _, skip := excluded[userID]; skip {
			continue
		}
		members = append(members, c)
	}
	s.mu.RUnlock()

	for _, c := range members {
		c.enqueue(data)
	}
}

// ConnectionCount reports the number of open channels.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Shutdown tells every connected client the server is going away, then
// closes all channels.
func (s *WebSocketServer) Shutdown(ctx context.Context) {
	data, _ := json.Marshal(ports.Notification{Type: ports.NotifyServerShutdown})

	s.mu.Lock()
	clients := make([]*client, 0, len(s.connections))
	for _, c := range s.connections {
		clients = append(clients, c)
	}
	s.connections = make(map[domain.UserID]*client)
	s.rooms = make(map[domain.StreamID]map[domain.UserID]*client)
	s.mu.Unlock()

	for _, c := range clients {
		c.enqueue(data)
	}

	// Give the writers a moment to flush the shutdown frame.
	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
	}

	for _, c := range clients {
		c.shutdown()
		c.conn.Close()
	}
}
