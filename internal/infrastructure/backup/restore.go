package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/backup"

	"go.uber.org/zap"
)

// RestoreService loads a snapshot back into the stream repository. Used at
// boot to recover records after a deployment wiped in-memory state.
type RestoreService struct {
	backupService *backup.BackupService
	streams       ports.StreamRepository
	logger        *zap.SugaredLogger
}

// NewRestoreService creates a new restore service
func NewRestoreService(
	backupService *backup.BackupService,
	streams ports.StreamRepository,
	logger *zap.SugaredLogger,
) *RestoreService {
	return &RestoreService{
		backupService: backupService,
		streams:       streams,
		logger:        logger,
	}
}

// RestoreOptions contains restore options
type RestoreOptions struct {
	// OverwriteExisting replaces records that already exist in the
	// repository; otherwise existing records win.
	OverwriteExisting bool
}

// RestoreLatest restores the newest available snapshot. Restoring from an
// empty storage is a no-op, not an error.
func (rs *RestoreService) RestoreLatest(ctx context.Context, options RestoreOptions) error {
	name, err := rs.backupService.LatestBackup(ctx)
	if err != nil {
		return fmt.Errorf("failed to find latest backup: %w", err)
	}
	if name == "" {
		rs.logger.Info("no backups to restore")
		return nil
	}
	return rs.RestoreFromBackup(ctx, name, options)
}

// RestoreFromBackup restores stream records from a specific backup.
func (rs *RestoreService) RestoreFromBackup(ctx context.Context, backupName string, options RestoreOptions) error {
	rs.logger.Infow("starting restore", "backup_name", backupName)

	backupData, err := rs.backupService.RestoreBackup(ctx, backupName)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}
	if backupData.Version == "" {
		return fmt.Errorf("invalid backup: missing version")
	}

	restored := 0
	for id, raw := range backupData.Streams {
		stream, err := decodeStream(raw)
		if err != nil {
			rs.logger.Warnw("skipping malformed stream record", "stream_id", id, "error", err)
			continue
		}

		if _, err := rs.streams.GetByID(ctx, stream.ID); err == nil {
			if !options.OverwriteExisting {
				continue
			}
			if err := rs.streams.Update(ctx, stream); err != nil {
				rs.logger.Warnw("failed to overwrite stream record", "stream_id", id, "error", err)
				continue
			}
			restored++
			continue
		}

		if err := rs.streams.Create(ctx, stream); err != nil {
			rs.logger.Warnw("failed to restore stream record", "stream_id", id, "error", err)
			continue
		}
		restored++
	}

	rs.logger.Infow("restore completed", "backup_name", backupName, "restored", restored)
	return nil
}

// decodeStream round-trips the generic snapshot value into a typed record.
func decodeStream(raw interface{}) (*domain.Stream, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var stream domain.Stream
	if err := json.Unmarshal(data, &stream); err != nil {
		return nil, err
	}
	if stream.ID == "" {
		return nil, fmt.Errorf("record has no id")
	}
	return &stream, nil
}
