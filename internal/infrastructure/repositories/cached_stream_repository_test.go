package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/repositories/memory"
)

type countingStreamRepo struct {
	ports.StreamRepository
	gets  int
	lists int
}

func (c *countingStreamRepo) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	c.gets++
	return c.StreamRepository.GetByID(ctx, id)
}

func (c *countingStreamRepo) ListLive(ctx context.Context) ([]*domain.Stream, error) {
	c.lists++
	return c.StreamRepository.ListLive(ctx)
}

func newLiveStream(id string) *domain.Stream {
	return &domain.Stream{
		ID:        domain.StreamID(id),
		Title:     "test stream",
		OwnerID:   domain.UserID("owner"),
		Status:    domain.StreamLive,
		CreatedAt: time.Now(),
	}
}

func TestCachedGetByIDServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStreamRepo{StreamRepository: memory.NewMemoryStreamRepository()}
	repo := NewCachedStreamRepository(inner, time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Create(ctx, newLiveStream("s1")))

	first, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedUpdateInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingStreamRepo{StreamRepository: memory.NewMemoryStreamRepository()}
	repo := NewCachedStreamRepository(inner, time.Minute)
	defer repo.Stop()

	stream := newLiveStream("s1")
	require.NoError(t, repo.Create(ctx, stream))

	_, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)

	stream.Title = "renamed"
	require.NoError(t, repo.Update(ctx, stream))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedListLive(t *testing.T) {
	ctx := context.Background()
	inner := &countingStreamRepo{StreamRepository: memory.NewMemoryStreamRepository()}
	repo := NewCachedStreamRepository(inner, time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Create(ctx, newLiveStream("s1")))
	require.NoError(t, repo.Create(ctx, newLiveStream("s2")))

	streams, err := repo.ListLive(ctx)
	require.NoError(t, err)
	assert.Len(t, streams, 2)

	_, err = repo.ListLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.lists)

	require.NoError(t, repo.Create(ctx, newLiveStream("s3")))
	streams, err = repo.ListLive(ctx)
	require.NoError(t, err)
	assert.Len(t, streams, 3)
	assert.Equal(t, 2, inner.lists)
}

func TestCachedReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	inner := &countingStreamRepo{StreamRepository: memory.NewMemoryStreamRepository()}
	repo := NewCachedStreamRepository(inner, time.Minute)
	defer repo.Stop()

	require.NoError(t, repo.Create(ctx, newLiveStream("s1")))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	got.Title = "mutated by caller"

	again, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "test stream", again.Title)
}
