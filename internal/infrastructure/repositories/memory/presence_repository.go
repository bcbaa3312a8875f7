package memory

import (
	"context"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

type streamPresence struct {
	viewers    map[domain.UserID]struct{}
	views      int
	maxViewers int
	chat       []*domain.ChatMessage
}

// MemoryPresenceRepository mirrors the Redis presence collaborator for
// single-node deployments and tests.
type MemoryPresenceRepository struct {
	mu       sync.Mutex
	streams  map[domain.StreamID]*streamPresence
	chatSize int
}

func NewMemoryPresenceRepository(chatSize int) ports.PresenceRepository {
	return &MemoryPresenceRepository{
		streams:  make(map[domain.StreamID]*streamPresence),
		chatSize: chatSize,
	}
}

func (r *MemoryPresenceRepository) presence(id domain.StreamID) *streamPresence {
	p, ok := r.streams[id]
	if !ok {
		p = &streamPresence{viewers: make(map[domain.UserID]struct{})}
		r.streams[id] = p
	}
	return p
}

func (r *MemoryPresenceRepository) AddViewer(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.presence(streamID)
	if _, ok := p.viewers[userID]; !ok {
		p.viewers[userID] = struct{}{}
		p.views++
	}
	if len(p.viewers) > p.maxViewers {
		p.maxViewers = len(p.viewers)
	}
	return len(p.viewers), nil
}

func (r *MemoryPresenceRepository) RemoveViewer(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.presence(streamID)
	delete(p.viewers, userID)
	return len(p.viewers), nil
}

func (r *MemoryPresenceRepository) GetStats(ctx context.Context, streamID domain.StreamID) (*domain.StreamStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.presence(streamID)
	return &domain.StreamStats{
		Viewers:    len(p.viewers),
		Views:      p.views,
		ChatCount:  len(p.chat),
		MaxViewers: p.maxViewers,
	}, nil
}

func (r *MemoryPresenceRepository) AppendChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.presence(msg.StreamID)
	p.chat = append(p.chat, msg)
	if r.chatSize > 0 && len(p.chat) > r.chatSize {
		p.chat = p.chat[len(p.chat)-r.chatSize:]
	}
	return nil
}

func (r *MemoryPresenceRepository) RecentChatMessages(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.presence(streamID)
	msgs := p.chat
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]*domain.ChatMessage(nil), msgs...), nil
}

func (r *MemoryPresenceRepository) ClearStream(ctx context.Context, streamID domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.streams, streamID)
	return nil
}
