package repositories

import (
	"context"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/cache"
)

const liveListKey = "streams:live"

// CachedStreamRepository decorates a StreamRepository with a short-TTL
// read cache. Stream records change rarely relative to how often the
// HTTP surface reads them, so GetByID and ListLive hits are served from
// memory and every write invalidates the affected keys.
type CachedStreamRepository struct {
	inner ports.StreamRepository
	cache *cache.Cache
}

func NewCachedStreamRepository(inner ports.StreamRepository, ttl time.Duration) *CachedStreamRepository {
	return &CachedStreamRepository{
		inner: inner,
		cache: cache.NewCache(ttl),
	}
}

func streamKey(id domain.StreamID) string {
	return "stream:" + string(id)
}

func (r *CachedStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	if err := r.inner.Create(ctx, stream); err != nil {
		return err
	}
	r.cache.Delete(streamKey(stream.ID))
	r.cache.Delete(liveListKey)
	return nil
}

func (r *CachedStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	if v, ok := r.cache.Get(streamKey(id)); ok {
		if s, ok := v.(*domain.Stream); ok {
			copied := *s
			return &copied, nil
		}
	}
	stream, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	copied := *stream
	r.cache.Set(streamKey(id), &copied)
	return stream, nil
}

func (r *CachedStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	if err := r.inner.Update(ctx, stream); err != nil {
		return err
	}
	r.cache.Delete(streamKey(stream.ID))
	r.cache.Delete(liveListKey)
	return nil
}

func (r *CachedStreamRepository) ListLive(ctx context.Context) ([]*domain.Stream, error) {
	if v, ok := r.cache.Get(liveListKey); ok {
		if streams, ok := v.([]*domain.Stream); ok {
			out := make([]*domain.Stream, len(streams))
			for i, s := range streams {
				copied := *s
				out[i] = &copied
			}
			return out, nil
		}
	}
	streams, err := r.inner.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	cached := make([]*domain.Stream, len(streams))
	for i, s := range streams {
		copied := *s
		cached[i] = &copied
	}
	r.cache.Set(liveListKey, cached)
	return streams, nil
}

// Stop releases the cache cleanup goroutine.
func (r *CachedStreamRepository) Stop() {
	r.cache.Stop()
}
