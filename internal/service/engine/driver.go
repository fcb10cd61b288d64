package engine

import (
	"context"
	"time"

	"tourney-service/internal/model"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
)

// Start launches the clock driver goroutine. Every TickInterval it advances
// the countdown of each tournament currently running or on break. Safe to
// call more than once.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.tickLoop(ctx)
	})
}

func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	elapsed := int(s.cfg.TickInterval / time.Second)
	if elapsed < 1 {
		elapsed = 1
	}

	logger.Log.Info("clock driver started",
		zap.Duration("interval", s.cfg.TickInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("clock driver stopped")
			return
		case <-ticker.C:
			s.tickAll(ctx, elapsed)
		}
	}
}

func (s *Service) tickAll(ctx context.Context, elapsed int) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.LiveTournamentState{}).
		Where("status IN ?", []string{model.TournamentRunning, model.TournamentBreak}).
		Pluck("tournament_id", &ids).Error
	if err != nil {
		logger.Log.Error("clock driver: list tournaments failed", zap.Error(err))
		return
	}

	for _, id := range ids {
		if _, err := s.Tick(ctx, id, elapsed); err != nil {
			logger.Log.Error("clock driver: tick failed",
				zap.Int64("tournamentID", id),
				zap.Error(err))
		}
	}
}
