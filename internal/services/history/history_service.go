package history

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/common"
	"github.com/ternarybob/mapscout/internal/interfaces"
)

// Service purges run summaries past their retention window on a cron
// schedule. The sweep also runs once at startup so a long-stopped instance
// catches up immediately.
type Service struct {
	cfg    common.HistoryConfig
	store  interfaces.RunStore
	logger arbor.ILogger
	cron   *cron.Cron
}

// NewService creates the retention service
func NewService(cfg common.HistoryConfig, store interfaces.RunStore, logger arbor.ILogger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the daily retention sweep. No-op when retention is
// disabled or no store is configured.
func (s *Service) Start() error {
	if !s.cfg.Enabled || s.store == nil || s.cfg.RetentionDays <= 0 {
		s.logger.Debug().Msg("Run history retention disabled")
		return nil
	}

	schedule := s.cfg.SweepSchedule
	if schedule == "" {
		schedule = "@daily"
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Int("retention_days", s.cfg.RetentionDays).
		Str("schedule", schedule).
		Msg("Run history retention scheduled")

	common.SafeGo(s.logger, "history-initial-sweep", s.sweep)
	return nil
}

// Stop halts the schedule; a sweep in flight runs to completion
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) sweep() {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteRunsBefore(ctx, cutoff.Unix())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Run history sweep failed")
		return
	}

	if deleted > 0 {
		s.logger.Info().
			Int("deleted", deleted).
			Str("cutoff", cutoff.Format(time.RFC3339)).
			Msg("Run history sweep removed stale summaries")
	}
}
