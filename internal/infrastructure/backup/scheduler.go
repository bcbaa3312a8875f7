package backup

import (
	"context"
	"fmt"
	"time"

	"streamcast/internal/core/ports"
	"streamcast/pkg/backup"

	"go.uber.org/zap"
)

// Scheduler periodically snapshots live stream records and their presence
// stats. Snapshots are a disaster-recovery net for deployments running the
// in-memory repository; with Postgres enabled they double as cold archives.
type Scheduler struct {
	backupService *backup.BackupService
	streams       ports.StreamRepository
	presence      ports.PresenceRepository
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

// Config contains scheduler configuration
type Config struct {
	Interval      time.Duration
	RetentionDays int
}

// NewScheduler creates a new backup scheduler
func NewScheduler(
	backupService *backup.BackupService,
	streams ports.StreamRepository,
	presence ports.PresenceRepository,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		backupService: backupService,
		streams:       streams,
		presence:      presence,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start runs snapshots on the configured interval until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the backup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runBackup(ctx context.Context) {
	backupData, err := s.collectData(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect backup data", "error", err)
		return
	}

	backupName, err := s.backupService.CreateBackup(ctx, backupData)
	if err != nil {
		s.logger.Errorw("failed to create backup", "error", err)
		return
	}

	s.logger.Infow("backup created", "backup_name", backupName, "streams", len(backupData.Streams))

	if err := s.cleanupOldBackups(ctx); err != nil {
		s.logger.Warnw("failed to cleanup old backups", "error", err)
	}
}

func (s *Scheduler) collectData(ctx context.Context) (*backup.BackupData, error) {
	data := &backup.BackupData{
		Streams:  make(map[string]interface{}),
		Stats:    make(map[string]interface{}),
		Metadata: make(map[string]interface{}),
	}

	streams, err := s.streams.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	for _, stream := range streams {
		data.Streams[string(stream.ID)] = stream

		stats, err := s.presence.GetStats(ctx, stream.ID)
		if err != nil {
			s.logger.Warnw("failed to read stats for stream", "stream_id", stream.ID, "error", err)
			continue
		}
		data.Stats[string(stream.ID)] = stats
	}

	data.Metadata["stream_count"] = len(data.Streams)
	data.Metadata["backup_type"] = "scheduled"

	return data, nil
}

// cleanupOldBackups removes backups older than the retention period.
func (s *Scheduler) cleanupOldBackups(ctx context.Context) error {
	backups, err := s.backupService.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	cutoffTime := time.Now().AddDate(0, 0, -s.retentionDays)

	for _, backupName := range backups {
		// Names look like backup-20060102-150405.json
		if len(backupName) < 22 {
			continue
		}
		timestamp, err := time.Parse("20060102-150405", backupName[7:22])
		if err != nil {
			s.logger.Warnw("failed to parse backup timestamp", "backup_name", backupName, "error", err)
			continue
		}

		if timestamp.Before(cutoffTime) {
			if err := s.backupService.DeleteBackup(ctx, backupName); err != nil {
				s.logger.Warnw("failed to delete old backup", "backup_name", backupName, "error", err)
				continue
			}
			s.logger.Infow("deleted old backup", "backup_name", backupName)
		}
	}

	return nil
}
