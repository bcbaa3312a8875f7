package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/internal/infrastructure/repositories/memory"
	"streamcast/pkg/backup"
)

func TestSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop().Sugar()

	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	service := backup.NewBackupService(storage, "1.0.0")

	streams := memory.NewMemoryStreamRepository()
	presence := memory.NewMemoryPresenceRepository(10)

	now := time.Now().UTC()
	require.NoError(t, streams.Create(ctx, &domain.Stream{
		ID:        "str_1",
		Title:     "morning show",
		OwnerID:   "alice",
		Status:    domain.StreamLive,
		CreatedAt: now,
		StartedAt: &now,
	}))
	_, err = presence.AddViewer(ctx, "str_1", "bob")
	require.NoError(t, err)

	scheduler := NewScheduler(service, streams, presence, Config{
		Interval:      time.Hour,
		RetentionDays: 7,
	}, log)
	scheduler.runBackup(ctx)

	names, err := service.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)

	// Restore into a fresh repository, as after a restart.
	fresh := memory.NewMemoryStreamRepository()
	restore := NewRestoreService(service, fresh, log)
	require.NoError(t, restore.RestoreLatest(ctx, RestoreOptions{}))

	restored, err := fresh.GetByID(ctx, "str_1")
	require.NoError(t, err)
	assert.Equal(t, "morning show", restored.Title)
	assert.Equal(t, domain.StreamLive, restored.Status)
}

func TestRestoreSkipsExistingRecords(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop().Sugar()

	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	service := backup.NewBackupService(storage, "1.0.0")

	_, err = service.CreateBackup(ctx, &backup.BackupData{
		Streams: map[string]interface{}{
			"str_1": &domain.Stream{ID: "str_1", Title: "from backup", Status: domain.StreamLive},
		},
	})
	require.NoError(t, err)

	streams := memory.NewMemoryStreamRepository()
	require.NoError(t, streams.Create(ctx, &domain.Stream{ID: "str_1", Title: "current", Status: domain.StreamLive}))

	restore := NewRestoreService(service, streams, log)
	require.NoError(t, restore.RestoreLatest(ctx, RestoreOptions{}))

	rec, err := streams.GetByID(ctx, "str_1")
	require.NoError(t, err)
	assert.Equal(t, "current", rec.Title)

	require.NoError(t, restore.RestoreLatest(ctx, RestoreOptions{OverwriteExisting: true}))
	rec, err = streams.GetByID(ctx, "str_1")
	require.NoError(t, err)
	assert.Equal(t, "from backup", rec.Title)
}

func TestRestoreLatestWithNoBackups(t *testing.T) {
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	service := backup.NewBackupService(storage, "1.0.0")

	restore := NewRestoreService(service, memory.NewMemoryStreamRepository(), zap.NewNop().Sugar())
	assert.NoError(t, restore.RestoreLatest(context.Background(), RestoreOptions{}))
}
