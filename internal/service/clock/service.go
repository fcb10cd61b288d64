package clock

import (
	"context"
	"fmt"
	"time"

	"tourney-service/internal/model"
	"tourney-service/internal/service/template"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service drives the pending -> running <-> paused, running -> break ->
// running, -> completed lifecycle and the per-level countdown. Level
// durations and blinds come from the template resolver; the clock owns no
// schedule data of its own.
type Service struct {
	db        *gorm.DB
	templates *template.Service
}

type StartRequest struct {
	TournamentID int64
	TemplateID   int64
	TotalPlayers int
	IsPractice   bool
}

func NewService(db *gorm.DB, templates *template.Service) *Service {
	return &Service{db: db, templates: templates}
}

func (s *Service) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *Service) loadState(ctx context.Context, tx *gorm.DB, tournamentID int64) (*model.LiveTournamentState, error) {
	var state model.LiveTournamentState
	err := s.handle(tx).WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrTournamentNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Start creates the live state in running status at level 1. Exactly one
// state may exist per tournament.
func (s *Service) Start(ctx context.Context, tx *gorm.DB, req StartRequest) (*model.LiveTournamentState, error) {
	db := s.handle(tx).WithContext(ctx)

	var existing int64
	if err := db.Model(&model.LiveTournamentState{}).
		Where("tournament_id = ?", req.TournamentID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, appErr.ErrAlreadyStarted
	}

	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	level, err := template.LevelFor(tpl, 1)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	state := model.LiveTournamentState{
		TournamentID:         req.TournamentID,
		TemplateID:           req.TemplateID,
		Status:               model.TournamentRunning,
		CurrentLevel:         1,
		TimeRemainingSeconds: level.DurationSeconds,
		TotalPlayers:         req.TotalPlayers,
		RemainingPlayers:     req.TotalPlayers,
		IsPractice:           req.IsPractice,
		StartedAt:            &now,
	}
	if err := db.Create(&state).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("tournament started",
		zap.Int64("tournamentID", req.TournamentID),
		zap.Int64("templateID", req.TemplateID),
		zap.Int("players", req.TotalPlayers),
	)
	return &state, nil
}

// Pause freezes a running clock. A client-reported remaining time is
// accepted when it does not exceed the server's value, tolerating tick
// drift without ever winding the clock forward.
func (s *Service) Pause(ctx context.Context, tx *gorm.DB, tournamentID int64, clientRemaining *int) (*model.LiveTournamentState, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != model.TournamentRunning {
		return nil, fmt.Errorf("%w: status is %s", appErr.ErrNotRunning, state.Status)
	}

	now := time.Now()
	state.Status = model.TournamentPaused
	state.PausedAt = &now
	if clientRemaining != nil && *clientRemaining >= 0 && *clientRemaining <= state.TimeRemainingSeconds {
		state.TimeRemainingSeconds = *clientRemaining
	}

	if err := s.handle(tx).WithContext(ctx).Save(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Service) Resume(ctx context.Context, tx *gorm.DB, tournamentID int64) (*model.LiveTournamentState, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != model.TournamentPaused {
		return nil, fmt.Errorf("%w: status is %s", appErr.ErrNotPaused, state.Status)
	}

	state.Status = model.TournamentRunning
	state.PausedAt = nil
	if err := s.handle(tx).WithContext(ctx).Save(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

// Tick counts elapsed seconds off the clock, floored at zero, and advances
// the level automatically when the segment expires. Breaks have a countdown
// too, so tick serves both running and break status; anything else is a
// no-op.
func (s *Service) Tick(ctx context.Context, tx *gorm.DB, tournamentID int64, elapsedSeconds int) (*model.LiveTournamentState, bool, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, false, err
	}
	if state.Status != model.TournamentRunning && state.Status != model.TournamentBreak {
		return state, false, nil
	}
	if elapsedSeconds <= 0 {
		return state, false, nil
	}

	state.TimeRemainingSeconds -= elapsedSeconds
	if state.TimeRemainingSeconds > 0 {
		if err := s.handle(tx).WithContext(ctx).Save(state).Error; err != nil {
			return nil, false, err
		}
		return state, false, nil
	}

	state.TimeRemainingSeconds = 0
	state, err = s.advance(ctx, tx, state)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// AdvanceLevel moves to the next level immediately, resetting the countdown
// from the schedule. Entering a break level parks the status in break;
// leaving one restores running.
func (s *Service) AdvanceLevel(ctx context.Context, tx *gorm.DB, tournamentID int64) (*model.LiveTournamentState, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.TournamentCompleted {
		return nil, appErr.ErrTournamentComplete
	}
	return s.advance(ctx, tx, state)
}

func (s *Service) advance(ctx context.Context, tx *gorm.DB, state *model.LiveTournamentState) (*model.LiveTournamentState, error) {
	tpl, err := s.templates.Get(ctx, state.TemplateID)
	if err != nil {
		return nil, err
	}

	next := state.CurrentLevel + 1
	level, err := template.LevelFor(tpl, next)
	if err != nil {
		return nil, err
	}

	state.CurrentLevel = next
	state.TimeRemainingSeconds = level.DurationSeconds
	if level.IsBreak {
		state.Status = model.TournamentBreak
	} else if state.Status == model.TournamentBreak {
		state.Status = model.TournamentRunning
	}

	if err := s.handle(tx).WithContext(ctx).Save(state).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("level advanced",
		zap.Int64("tournamentID", state.TournamentID),
		zap.Int("level", state.CurrentLevel),
		zap.Bool("break", level.IsBreak),
	)
	return state, nil
}

// StartBreak cuts the current level short and puts the clock on an ad hoc
// break of the given length. The break ends into the next scheduled level.
func (s *Service) StartBreak(ctx context.Context, tx *gorm.DB, tournamentID int64, durationSeconds int) (*model.LiveTournamentState, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != model.TournamentRunning {
		return nil, fmt.Errorf("%w: status is %s", appErr.ErrNotRunning, state.Status)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("%w: break duration must be positive", appErr.ErrInvalidOperation)
	}

	state.Status = model.TournamentBreak
	state.TimeRemainingSeconds = durationSeconds
	if err := s.handle(tx).WithContext(ctx).Save(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

// EndBreak ends a break early, advancing into the next level.
func (s *Service) EndBreak(ctx context.Context, tx *gorm.DB, tournamentID int64) (*model.LiveTournamentState, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != model.TournamentBreak {
		return nil, fmt.Errorf("%w: status is %s", appErr.ErrNotOnBreak, state.Status)
	}
	return s.advance(ctx, tx, state)
}

// Complete is terminal and callable from any non-completed status.
func (s *Service) Complete(ctx context.Context, tx *gorm.DB, tournamentID int64) (*model.LiveTournamentState, error) {
	state, err := s.loadState(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status == model.TournamentCompleted {
		return nil, appErr.ErrTournamentComplete
	}

	now := time.Now()
	state.Status = model.TournamentCompleted
	state.CompletedAt = &now
	if err := s.handle(tx).WithContext(ctx).Save(state).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("tournament completed", zap.Int64("tournamentID", tournamentID))
	return state, nil
}
