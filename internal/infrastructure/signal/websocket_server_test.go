package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"
	apperrors "streamcast/pkg/errors"
)

type fakeSessions struct {
	mu           sync.Mutex
	joinErr      error
	closedRooms  []domain.StreamID
	closedUsers  []domain.UserID
	createdTitle string
}

func (f *fakeSessions) CreateStream(ctx context.Context, userID domain.UserID, title string) (*domain.Stream, error) {
	f.mu.Lock()
	f.createdTitle = title
	f.mu.Unlock()
	return &domain.Stream{ID: "str_1", Title: title, OwnerID: userID, Status: domain.StreamCreated}, nil
}

func (f *fakeSessions) JoinStream(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*ports.JoinResult, error) {
	f.mu.Lock()
	err := f.joinErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &ports.JoinResult{Stream: &domain.Stream{ID: streamID}, Viewers: 1}, nil
}

func (f *fakeSessions) RouterCapabilities(ctx context.Context, streamID domain.StreamID) ([]domain.CodecCapability, error) {
	return domain.DefaultCodecSet(), nil
}

func (f *fakeSessions) CreateTransport(ctx context.Context, streamID domain.StreamID, userID domain.UserID, direction domain.TransportDirection) (*domain.TransportInfo, error) {
	return &domain.TransportInfo{ID: "tr_1", Direction: direction}, nil
}

func (f *fakeSessions) ConnectTransport(ctx context.Context, streamID domain.StreamID, userID domain.UserID, transportID domain.TransportID, params domain.HandshakeParams) error {
	return nil
}

func (f *fakeSessions) Produce(ctx context.Context, streamID domain.StreamID, userID domain.UserID, transportID domain.TransportID, kind domain.MediaKind, params domain.MediaParams) (domain.ProducerID, error) {
	return "prod_1", nil
}

func (f *fakeSessions) ListProducers(ctx context.Context, streamID domain.StreamID, userID domain.UserID) ([]domain.ProducerInfo, error) {
	return nil, nil
}

func (f *fakeSessions) Consume(ctx context.Context, streamID domain.StreamID, userID domain.UserID, producerID domain.ProducerID, caps domain.ReceiverCapabilities) (*domain.ConsumerInfo, error) {
	return nil, domain.ErrIncompatibleCapabilities
}

func (f *fakeSessions) ResumeConsumer(ctx context.Context, streamID domain.StreamID, userID domain.UserID, consumerID domain.ConsumerID) error {
	return nil
}

func (f *fakeSessions) SendChatMessage(ctx context.Context, streamID domain.StreamID, userID domain.UserID, text string) (*domain.ChatMessage, error) {
	return &domain.ChatMessage{Text: text, UserID: userID}, nil
}

func (f *fakeSessions) CloseParticipant(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error {
	f.mu.Lock()
	f.closedRooms = append(f.closedRooms, streamID)
	f.closedUsers = append(f.closedUsers, userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSessions) EndStream(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*ports.StreamSummary, error) {
	return &ports.StreamSummary{Stream: &domain.Stream{ID: streamID, Status: domain.StreamEnded}}, nil
}

func (f *fakeSessions) AbortStream(ctx context.Context, streamID domain.StreamID) error { return nil }

func (f *fakeSessions) GetStream(ctx context.Context, streamID domain.StreamID) (*domain.Stream, error) {
	return nil, domain.ErrStreamNotFound
}

func (f *fakeSessions) ListLiveStreams(ctx context.Context) ([]*domain.Stream, error) {
	return nil, nil
}

func (f *fakeSessions) GetStreamStats(ctx context.Context, streamID domain.StreamID) (*domain.StreamStats, error) {
	return nil, domain.ErrStreamNotFound
}

func (f *fakeSessions) closeCalls() []domain.StreamID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.StreamID, len(f.closedRooms))
	copy(out, f.closedRooms)
	return out
}

type gatewayFixture struct {
	server   *WebSocketServer
	sessions *fakeSessions
	auth     services.AuthService
	ts       *httptest.Server
}

func newGatewayFixture(t *testing.T, cfg Config) *gatewayFixture {
	t.Helper()
	sessions := &fakeSessions{}
	auth := services.NewAuthService("test-secret", time.Hour)
	server := NewWebSocketServer(sessions, auth, cfg, nil, zap.NewNop().Sugar())
	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)
	return &gatewayFixture{server: server, sessions: sessions, auth: auth, ts: ts}
}

func (f *gatewayFixture) dial(t *testing.T, userID domain.UserID) *websocket.Conn {
	t.Helper()
	token, err := f.auth.GenerateToken(userID, string(userID))
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func call(t *testing.T, conn *websocket.Conn, id uint64, method string, data any) Response {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	req := Request{ID: id, Method: method, Data: payload}
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var resp Response
		require.NoError(t, conn.ReadJSON(&resp))
		// Skip interleaved broadcasts, which carry no id.
		if resp.ID == id {
			return resp
		}
	}
}

func TestUpgradeRequiresValidToken(t *testing.T) {
	f := newGatewayFixture(t, Config{})

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestResponseCorrelation(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	conn := f.dial(t, "alice")

	resp := call(t, conn, 7, "create-stream", createStreamData{Title: "morning show"})
	assert.True(t, resp.OK)
	assert.EqualValues(t, 7, resp.ID)
	assert.Nil(t, resp.Error)

	f.sessions.mu.Lock()
	title := f.sessions.createdTitle
	f.sessions.mu.Unlock()
	assert.Equal(t, "morning show", title)
}

func TestUnknownMethod(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	conn := f.dial(t, "alice")

	resp := call(t, conn, 1, "no-such-method", struct{}{})
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(apperrors.ErrCodeInvalidArgument), resp.Error.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	f.sessions.joinErr = domain.ErrStreamNotFound
	conn := f.dial(t, "alice")

	resp := call(t, conn, 2, "join-stream", streamRefData{StreamID: "str_missing"})
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(apperrors.ErrCodeNotFound), resp.Error.Code)

	resp = call(t, conn, 3, "consume", consumeData{StreamID: "str_1", ProducerID: "prod_1"})
	require.False(t, resp.OK)
	assert.Equal(t, string(apperrors.ErrCodeIncompatibleCapabilities), resp.Error.Code)
}

func TestRateLimit(t *testing.T) {
	f := newGatewayFixture(t, Config{MessagesPerSecond: 0.001, Burst: 1})
	conn := f.dial(t, "alice")

	resp := call(t, conn, 1, "list-producers", streamRefData{StreamID: "str_1"})
	assert.True(t, resp.OK)

	resp = call(t, conn, 2, "list-producers", streamRefData{StreamID: "str_1"})
	require.False(t, resp.OK)
	assert.Equal(t, string(apperrors.ErrCodeResourceExhausted), resp.Error.Code)
}

func TestBroadcastReachesJoinedClientsOnly(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	resp := call(t, alice, 1, "join-stream", streamRefData{StreamID: "str_1"})
	require.True(t, resp.OK)
	resp = call(t, bob, 1, "join-stream", streamRefData{StreamID: "str_1"})
	require.True(t, resp.OK)

	f.server.BroadcastToRoom("str_1", ports.Notification{
		Type: ports.NotifyChatMessage,
		Data: map[string]string{"text": "hi"},
	}, "alice")

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var note struct {
		Type ports.NotificationType `json:"type"`
	}
	require.NoError(t, bob.ReadJSON(&note))
	assert.Equal(t, ports.NotifyChatMessage, note.Type)

	// The excluded sender must not see it.
	alice.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var stray Response
	err := alice.ReadJSON(&stray)
	require.Error(t, err)
}

func TestLeaveStopsBroadcastDelivery(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	conn := f.dial(t, "alice")

	require.True(t, call(t, conn, 1, "join-stream", streamRefData{StreamID: "str_1"}).OK)
	require.True(t, call(t, conn, 2, "leave-stream", streamRefData{StreamID: "str_1"}).OK)

	f.server.BroadcastToRoom("str_1", ports.Notification{Type: ports.NotifyViewerJoined})

	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var stray Response
	require.Error(t, conn.ReadJSON(&stray))

	assert.Equal(t, []domain.StreamID{"str_1"}, f.sessions.closeCalls())
}

func TestAbruptDisconnectSynthesizesLeave(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	conn := f.dial(t, "alice")

	require.True(t, call(t, conn, 1, "join-stream", streamRefData{StreamID: "str_1"}).OK)
	require.True(t, call(t, conn, 2, "join-stream", streamRefData{StreamID: "str_2"}).OK)

	conn.Close()

	require.Eventually(t, func() bool {
		return len(f.sessions.closeCalls()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []domain.StreamID{"str_1", "str_2"}, f.sessions.closeCalls())
	assert.Equal(t, 0, f.server.ConnectionCount())
}

func TestReconnectReplacesConnection(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	first := f.dial(t, "alice")
	_ = first

	second := f.dial(t, "alice")
	require.Eventually(t, func() bool {
		return f.server.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := call(t, second, 1, "create-stream", createStreamData{Title: "back again"})
	assert.True(t, resp.OK)
}

// serverSideConn returns the server half of a live websocket pair.
func serverSideConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(ts.Close)

	dialed, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dialed.Close() })
	return <-conns
}

func TestStaleDisconnectKeepsRejoinedMembership(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	s := f.server

	old := &client{conn: serverSideConn(t), userID: "alice", send: make(chan []byte, 4), joined: make(map[domain.StreamID]struct{})}
	s.register(old)
	s.trackRoomJoin(old, "str_1")

	replacement := &client{conn: serverSideConn(t), userID: "alice", send: make(chan []byte, 4), joined: make(map[domain.StreamID]struct{})}
	s.register(replacement)
	s.trackRoomJoin(replacement, "str_1")

	// The old connection's teardown runs after the replacement rejoined;
	// it must not tear down the replacement's participant or membership.
	s.disconnect(old)

	assert.Empty(t, f.sessions.closeCalls())

	s.mu.RLock()
	member := s.rooms["str_1"]["alice"]
	s.mu.RUnlock()
	assert.Same(t, replacement, member)
	assert.Equal(t, 1, s.ConnectionCount())
}

func TestShutdownNotifiesClients(t *testing.T) {
	f := newGatewayFixture(t, Config{})
	conn := f.dial(t, "alice")
	require.True(t, call(t, conn, 1, "join-stream", streamRefData{StreamID: "str_1"}).OK)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.server.Shutdown(ctx)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var note struct {
		Type ports.NotificationType `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&note))
	assert.Equal(t, ports.NotifyServerShutdown, note.Type)
}
