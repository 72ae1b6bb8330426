package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/carebridge/support-service/internal/config"
	"github.com/carebridge/support-service/internal/observability"
	"github.com/carebridge/support-service/internal/repository"
)

// RetentionJanitor hard-deletes chat messages older than the retention
// horizon, per channel, regardless of read or delete flags. Tickets are
// never touched. Sweeps are idempotent: a second run right after the first
// removes nothing.
type RetentionJanitor struct {
	channels repository.ChannelRepository
	messages repository.MessageRepository
	metrics  *observability.Metrics
	horizon  time.Duration
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewRetentionJanitor constructs the janitor.
func NewRetentionJanitor(channels repository.ChannelRepository, messages repository.MessageRepository, metrics *observability.Metrics, cfg config.RetentionConfig, logger *zap.Logger) *RetentionJanitor {
	return &RetentionJanitor{
		channels: channels,
		messages: messages,
		metrics:  metrics,
		horizon:  cfg.Horizon(),
		schedule: cfg.Schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the janitor clock, for tests.
func (j *RetentionJanitor) SetClock(now func() time.Time) {
	j.now = now
}

// Start registers the sweep on the cron schedule.
func (j *RetentionJanitor) Start() error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Error("retention sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("retention janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("horizon", j.horizon))
	return nil
}

// Stop halts the schedule. A sweep already in flight finishes.
func (j *RetentionJanitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// RunOnce sweeps every channel and returns the number of purged messages.
// A failure on one channel is logged and does not block the others; an
// error is returned only when the channel listing itself fails.
func (j *RetentionJanitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.horizon)
	channels, err := j.channels.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, channel := range channels {
		purged, err := j.messages.PurgeOlderThan(ctx, channel.ID, cutoff)
		if err != nil {
			j.logger.Error("purge failed for channel",
				zap.String("channel_id", channel.ID),
				zap.Error(err))
			continue
		}
		total += purged
		if purged > 0 {
			j.logger.Info("purged expired messages",
				zap.String("channel_id", channel.ID),
				zap.Int64("count", purged))
		}
	}
	j.metrics.RecordPurged(total)
	return total, nil
}
