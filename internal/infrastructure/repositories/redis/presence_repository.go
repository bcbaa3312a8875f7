package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/distributed"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceRepository is the live-state collaborator: viewer sets,
// per-stream counters, and the chat ring buffer. It is the source of truth
// while a stream is live; the finalized record snapshots from it.
type RedisPresenceRepository struct {
	client   *redis.Client
	prefix   string
	chatSize int
	locks    *distributed.LockManager
}

func NewRedisPresenceRepository(client *redis.Client, chatSize int) ports.PresenceRepository {
	return &RedisPresenceRepository{
		client:   client,
		prefix:   "streamcast:presence:",
		chatSize: chatSize,
		locks:    distributed.NewLockManager(client, "streamcast:lock:"),
	}
}

func (r *RedisPresenceRepository) viewersKey(id domain.StreamID) string {
	return r.prefix + string(id) + ":viewers"
}

func (r *RedisPresenceRepository) viewsKey(id domain.StreamID) string {
	return r.prefix + string(id) + ":views"
}

func (r *RedisPresenceRepository) maxViewersKey(id domain.StreamID) string {
	return r.prefix + string(id) + ":max_viewers"
}

func (r *RedisPresenceRepository) chatKey(id domain.StreamID) string {
	return r.prefix + string(id) + ":chat"
}

func (r *RedisPresenceRepository) AddViewer(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (int, error) {
	added, err := r.client.SAdd(ctx, r.viewersKey(streamID), string(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add viewer: %w", err)
	}
	if added > 0 {
		if err := r.client.Incr(ctx, r.viewsKey(streamID)).Err(); err != nil {
			return 0, fmt.Errorf("failed to bump view count: %w", err)
		}
	}

	count, err := r.client.SCard(ctx, r.viewersKey(streamID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count viewers: %w", err)
	}

	if err := r.recordPeak(ctx, streamID, count); err != nil {
		return int(count), err
	}
	return int(count), nil
}

// recordPeak updates the peak viewer counter under a short-lived
// distributed lock so concurrent joins across instances never regress
// the stored maximum. A contended lock skips the update; the next join
// observes the same or higher count and retries.
func (r *RedisPresenceRepository) recordPeak(ctx context.Context, streamID domain.StreamID, count int64) error {
	lock := r.locks.AcquireLock(string(streamID)+":peak", 2*time.Second)
	acquired, err := lock.TryLock(ctx)
	if err != nil || !acquired {
		return nil
	}
	defer lock.Unlock(ctx)

	max, _ := r.client.Get(ctx, r.maxViewersKey(streamID)).Int64()
	if count > max {
		if err := r.client.Set(ctx, r.maxViewersKey(streamID), count, 0).Err(); err != nil {
			return fmt.Errorf("failed to record peak viewers: %w", err)
		}
	}
	return nil
}

func (r *RedisPresenceRepository) RemoveViewer(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (int, error) {
	if err := r.client.SRem(ctx, r.viewersKey(streamID), string(userID)).Err(); err != nil {
		return 0, fmt.Errorf("failed to remove viewer: %w", err)
	}
	count, err := r.client.SCard(ctx, r.viewersKey(streamID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count viewers: %w", err)
	}
	return int(count), nil
}

func (r *RedisPresenceRepository) GetStats(ctx context.Context, streamID domain.StreamID) (*domain.StreamStats, error) {
	pipe := r.client.Pipeline()
	viewers := pipe.SCard(ctx, r.viewersKey(streamID))
	views := pipe.Get(ctx, r.viewsKey(streamID))
	chatLen := pipe.LLen(ctx, r.chatKey(streamID))
	maxViewers := pipe.Get(ctx, r.maxViewersKey(streamID))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read stream stats: %w", err)
	}

	viewCount, _ := views.Int64()
	maxCount, _ := maxViewers.Int64()
	return &domain.StreamStats{
		Viewers:    int(viewers.Val()),
		Views:      int(viewCount),
		ChatCount:  int(chatLen.Val()),
		MaxViewers: int(maxCount),
	}, nil
}

func (r *RedisPresenceRepository) AppendChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := r.chatKey(msg.StreamID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(r.chatSize)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) RecentChatMessages(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > r.chatSize {
		limit = r.chatSize
	}
	raw, err := r.client.LRange(ctx, r.chatKey(streamID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	// The list is newest-first; callers expect chronological order.
	out := make([]*domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			continue
		}
		out = append(out, &msg)
	}
	return out, nil
}

func (r *RedisPresenceRepository) ClearStream(ctx context.Context, streamID domain.StreamID) error {
	keys := []string{
		r.viewersKey(streamID),
		r.viewsKey(streamID),
		r.maxViewersKey(streamID),
		r.chatKey(streamID),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear stream state: %w", err)
	}
	return nil
}
