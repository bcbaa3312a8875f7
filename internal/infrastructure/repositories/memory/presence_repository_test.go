package memory

import (
	"context"
	"testing"
	"time"

	"streamcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewerCounting(t *testing.T) {
	repo := NewMemoryPresenceRepository(10)
	ctx := context.Background()

	n, err := repo.AddViewer(ctx, "str_1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-adding the same viewer does not inflate counts.
	n, err = repo.AddViewer(ctx, "str_1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.AddViewer(ctx, "str_1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.RemoveViewer(ctx, "str_1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := repo.GetStats(ctx, "str_1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Viewers)
	assert.Equal(t, 2, stats.Views)
	assert.Equal(t, 2, stats.MaxViewers)
}

func TestChatRingBuffer(t *testing.T) {
	repo := NewMemoryPresenceRepository(3)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		err := repo.AppendChatMessage(ctx, &domain.ChatMessage{
			ID:       text,
			StreamID: "str_1",
			UserID:   "alice",
			Text:     text,
			SentAt:   time.Now(),
		})
		require.NoError(t, err)
	}

	msgs, err := repo.RecentChatMessages(ctx, "str_1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "three", msgs[0].Text)
	assert.Equal(t, "five", msgs[2].Text)

	msgs, err = repo.RecentChatMessages(ctx, "str_1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "four", msgs[0].Text)
}

func TestClearStream(t *testing.T) {
	repo := NewMemoryPresenceRepository(10)
	ctx := context.Background()

	_, err := repo.AddViewer(ctx, "str_1", "alice")
	require.NoError(t, err)
	require.NoError(t, repo.ClearStream(ctx, "str_1"))

	stats, err := repo.GetStats(ctx, "str_1")
	require.NoError(t, err)
	assert.Zero(t, stats.Viewers)
	assert.Zero(t, stats.Views)
	assert.Zero(t, stats.MaxViewers)
}
