package elimination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourney-service/internal/model"
	"tourney-service/internal/service/clock"
	"tourney-service/internal/service/ledger"
	"tourney-service/internal/service/seating"
	"tourney-service/internal/service/template"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger is the slice of the audit ledger the tracker needs. Every
// chip-affecting step appends through it; when an append fails the whole
// operation rolls back with it.
type Ledger interface {
	Append(ctx context.Context, tx *gorm.DB, req ledger.AppendRequest) (int64, error)
}

type Service struct {
	db             *gorm.DB
	ledger         Ledger
	seats          *seating.Service
	clock          *clock.Service
	templates      *template.Service
	finalTableSize int
}

type BustOutRequest struct {
	TournamentID  int64
	EntryID       int64
	EliminatorIDs []int64
	ActorID       int64
}

type BustOutResult struct {
	EntryID          int64         `json:"entryId"`
	FinishPosition   *int          `json:"finishPosition,omitempty"`
	ReentryEligible  bool          `json:"reentryEligible"`
	RemainingPlayers int           `json:"remainingPlayers"`
	FinalTable       bool          `json:"finalTable"`
	Bounties         []BountyAward `json:"bounties,omitempty"`
	Winner           *WinnerResult `json:"winner,omitempty"`
	LedgerEntryID    int64         `json:"ledgerEntryId"`
}

type WithdrawalRequest struct {
	TournamentID int64
	EntryID      int64
	Reason       string
	Type         string // voluntary or declined_reentry
	ActorID      int64
}

type WithdrawalResult struct {
	EntryID          int64         `json:"entryId"`
	FinishPosition   *int          `json:"finishPosition,omitempty"`
	RemainingPlayers int           `json:"remainingPlayers"`
	Winner           *WinnerResult `json:"winner,omitempty"`
	LedgerEntryID    int64         `json:"ledgerEntryId"`
}

type WinnerResult struct {
	EntryID  int64 `json:"entryId"`
	PlayerID int64 `json:"playerId"`
}

func NewService(db *gorm.DB, lg Ledger, seats *seating.Service, clk *clock.Service, templates *template.Service, finalTableSize int) *Service {
	if finalTableSize <= 0 {
		finalTableSize = 9
	}
	return &Service{
		db:             db,
		ledger:         lg,
		seats:          seats,
		clock:          clk,
		templates:      templates,
		finalTableSize: finalTableSize,
	}
}

func loadEntry(ctx context.Context, db *gorm.DB, tournamentID, entryID int64) (*model.PlayerEntry, error) {
	var entry model.PlayerEntry
	err := db.WithContext(ctx).
		Where("id = ? AND tournament_id = ?", entryID, tournamentID).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func loadState(ctx context.Context, db *gorm.DB, tournamentID int64) (*model.LiveTournamentState, error) {
	var state model.LiveTournamentState
	err := db.WithContext(ctx).
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

// finishPositionAt computes the rank for an entry leaving play at the given
// instant: every entry that outlasts it — still in play, or busted later —
// finishes better, so the position is that count plus one. Only safe as a
// mutation when run under the per-tournament serialization boundary.
func finishPositionAt(ctx context.Context, db *gorm.DB, tournamentID, excludeEntryID int64, at time.Time) (int, error) {
	var later int64
	err := db.WithContext(ctx).Model(&model.PlayerEntry{}).
		Where("tournament_id = ? AND id != ? AND bustout_at IS NOT NULL AND bustout_at > ?",
			tournamentID, excludeEntryID, at).
		Count(&later).Error
	if err != nil {
		return 0, err
	}

	var active int64
	err = db.WithContext(ctx).Model(&model.PlayerEntry{}).
		Where("tournament_id = ? AND id != ? AND status IN ?",
			tournamentID, excludeEntryID, []string{model.EntryActive, model.EntryPaid}).
		Count(&active).Error
	if err != nil {
		return 0, err
	}

	return int(later) + int(active) + 1, nil
}

// CalculateFinishPosition is the diagnostics variant of the position
// formula. It reads only and must never be used to assign a position
// outside a serialized mutation. An already-busted entry is ranked as of
// its bust-out instant.
func (s *Service) CalculateFinishPosition(ctx context.Context, tournamentID, entryID int64) (int, error) {
	entry, err := loadEntry(ctx, s.db, tournamentID, entryID)
	if err != nil {
		return 0, err
	}
	if entry.FinishPosition != nil {
		return *entry.FinishPosition, nil
	}
	at := time.Now()
	if entry.BustoutAt != nil {
		at = *entry.BustoutAt
	}
	return finishPositionAt(ctx, s.db, tournamentID, entryID, at)
}

// ProcessBustOut eliminates an entry: finish position (unless re-entry
// eligible), chip zeroing, seat vacation, audit row, bounty split, and
// winner detection — all or nothing. A failed ledger append rolls the whole
// bust-out back.
func (s *Service) ProcessBustOut(ctx context.Context, req BustOutRequest) (*BustOutResult, error) {
	var result BustOutResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		entry, err := loadEntry(ctx, tx, req.TournamentID, req.EntryID)
		if err != nil {
			return err
		}
		switch entry.Status {
		case model.EntryEliminated:
			return appErr.ErrAlreadyEliminated
		case model.EntryWithdrawn:
			return appErr.ErrAlreadyWithdrawn
		}

		state, err := loadState(ctx, tx, req.TournamentID)
		if err != nil {
			return err
		}
		if state.Status == model.TournamentCompleted {
			return appErr.ErrTournamentComplete
		}
		tpl, err := s.templates.Get(ctx, state.TemplateID)
		if err != nil {
			return err
		}

		reentryEligible := tpl.AllowReentry && state.CurrentLevel <= tpl.ReentryUntilLevel
		now := time.Now()

		priorChips := entry.ChipCount
		entry.Status = model.EntryEliminated
		entry.ChipCount = 0
		entry.BustoutAt = &now
		entry.EliminationReason = "bustout"
		if len(req.EliminatorIDs) > 0 {
			raw, err := json.Marshal(req.EliminatorIDs)
			if err != nil {
				return err
			}
			entry.EliminatedByJSON = datatypes.JSON(raw)
		}

		if !reentryEligible {
			pos, err := finishPositionAt(ctx, tx, req.TournamentID, entry.ID, now)
			if err != nil {
				return err
			}
			entry.FinishPosition = &pos
			result.FinishPosition = &pos
		}

		if err := tx.WithContext(ctx).Save(entry).Error; err != nil {
			return err
		}

		state.RemainingPlayers--
		state.BustedCount++
		if err := tx.WithContext(ctx).Save(state).Error; err != nil {
			return err
		}

		if err := s.vacateSeat(ctx, tx, req.TournamentID, entry.PlayerID); err != nil {
			return err
		}

		ledgerID, err := s.ledger.Append(ctx, tx, ledger.AppendRequest{
			TournamentID: req.TournamentID,
			PlayerID:     entry.PlayerID,
			Type:         ledger.TypeBustOut,
			ChipsDelta:   -priorChips,
			Reason:       "bust out",
			ActorID:      req.ActorID,
		})
		if err != nil {
			return err
		}
		result.LedgerEntryID = ledgerID

		if len(req.EliminatorIDs) > 0 {
			awards, err := s.distributeBounty(ctx, tx, tpl, entry, req.EliminatorIDs, req.ActorID)
			if err != nil {
				return err
			}
			result.Bounties = awards
		}

		result.EntryID = entry.ID
		result.ReentryEligible = reentryEligible
		result.RemainingPlayers = state.RemainingPlayers
		result.FinalTable = state.RemainingPlayers <= s.finalTableSize && state.RemainingPlayers > 1

		if state.RemainingPlayers <= 1 && !reentryEligible {
			winner, err := s.completeTournament(ctx, tx, state, req.ActorID)
			if err != nil {
				return err
			}
			result.Winner = winner
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("bust out processed",
		zap.Int64("tournamentID", req.TournamentID),
		zap.Int64("entryID", req.EntryID),
		zap.Bool("reentryEligible", result.ReentryEligible),
		zap.Int("remaining", result.RemainingPlayers),
	)
	return &result, nil
}

// ProcessWithdrawal removes an entry from play outside of a bust-out. An
// entry still in play gets a finish position from the same formula first.
// Withdrawals never trigger bounty distribution.
func (s *Service) ProcessWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	if req.Type != "voluntary" && req.Type != "declined_reentry" {
		return nil, fmt.Errorf("%w: withdrawal type %q", appErr.ErrInvalidOperation, req.Type)
	}

	var result WithdrawalResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		entry, err := loadEntry(ctx, tx, req.TournamentID, req.EntryID)
		if err != nil {
			return err
		}
		if entry.Status == model.EntryWithdrawn {
			return appErr.ErrAlreadyWithdrawn
		}

		state, err := loadState(ctx, tx, req.TournamentID)
		if err != nil {
			return err
		}
		if state.Status == model.TournamentCompleted {
			return appErr.ErrTournamentComplete
		}

		now := time.Now()
		wasInPlay := entry.Status == model.EntryActive || entry.Status == model.EntryPaid

		priorChips := entry.ChipCount
		if wasInPlay {
			pos, err := finishPositionAt(ctx, tx, req.TournamentID, entry.ID, now)
			if err != nil {
				return err
			}
			entry.FinishPosition = &pos
			entry.BustoutAt = &now
			result.FinishPosition = &pos

			state.RemainingPlayers--
			if err := tx.WithContext(ctx).Save(state).Error; err != nil {
				return err
			}
		} else if entry.FinishPosition == nil && entry.BustoutAt != nil {
			// A bust inside the re-entry window deferred its position; a
			// declined re-entry settles it, ranked as of the original bust.
			pos, err := finishPositionAt(ctx, tx, req.TournamentID, entry.ID, *entry.BustoutAt)
			if err != nil {
				return err
			}
			entry.FinishPosition = &pos
			result.FinishPosition = &pos
		}

		entry.Status = model.EntryWithdrawn
		entry.ChipCount = 0
		entry.WithdrawalStatus = req.Type
		entry.EliminationReason = "withdrawal"
		if err := tx.WithContext(ctx).Save(entry).Error; err != nil {
			return err
		}

		if err := s.vacateSeat(ctx, tx, req.TournamentID, entry.PlayerID); err != nil {
			return err
		}

		ledgerID, err := s.ledger.Append(ctx, tx, ledger.AppendRequest{
			TournamentID: req.TournamentID,
			PlayerID:     entry.PlayerID,
			Type:         ledger.TypeWithdrawal,
			ChipsDelta:   -priorChips,
			Reason:       req.Reason,
			ActorID:      req.ActorID,
		})
		if err != nil {
			return err
		}
		result.LedgerEntryID = ledgerID

		result.EntryID = entry.ID
		result.RemainingPlayers = state.RemainingPlayers

		if state.RemainingPlayers <= 1 {
			winner, err := s.completeTournament(ctx, tx, state, req.ActorID)
			if err != nil {
				return err
			}
			result.Winner = winner
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteTournament crowns the sole surviving entry. With no unique
// survivor it is a no-op returning a nil winner, not an error.
func (s *Service) CompleteTournament(ctx context.Context, tournamentID, actorID int64) (*WinnerResult, error) {
	var winner *WinnerResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := loadState(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		winner, err = s.completeTournament(ctx, tx, state, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return winner, nil
}

func (s *Service) completeTournament(ctx context.Context, tx *gorm.DB, state *model.LiveTournamentState, actorID int64) (*WinnerResult, error) {
	if state.Status == model.TournamentCompleted {
		return nil, nil
	}

	var survivors []model.PlayerEntry
	err := tx.WithContext(ctx).
		Where("tournament_id = ? AND status IN ?", state.TournamentID,
			[]string{model.EntryActive, model.EntryPaid}).
		Find(&survivors).Error
	if err != nil {
		return nil, err
	}
	if len(survivors) != 1 {
		return nil, nil
	}

	winner := survivors[0]
	first := 1
	winner.FinishPosition = &first
	if err := tx.WithContext(ctx).Save(&winner).Error; err != nil {
		return nil, err
	}

	if _, err := s.clock.Complete(ctx, tx, state.TournamentID); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Append(ctx, tx, ledger.AppendRequest{
		TournamentID: state.TournamentID,
		PlayerID:     winner.PlayerID,
		Type:         ledger.TypeWinnerAnnouncement,
		Amount:       state.PrizePool,
		Reason:       "tournament winner",
		ActorID:      actorID,
	}); err != nil {
		return nil, err
	}

	logger.Log.Info("winner announced",
		zap.Int64("tournamentID", state.TournamentID),
		zap.Int64("playerID", winner.PlayerID),
	)
	return &WinnerResult{EntryID: winner.ID, PlayerID: winner.PlayerID}, nil
}

func (s *Service) vacateSeat(ctx context.Context, tx *gorm.DB, tournamentID, playerID int64) error {
	var seat model.Seat
	err := tx.WithContext(ctx).
		Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
		First(&seat).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	if _, err := s.seats.UnseatPlayer(ctx, tx, tournamentID, playerID); err != nil {
		return err
	}
	return s.seats.CloseTableIfEmpty(ctx, tx, seat.TableID)
}
