package elimination

import (
	"context"
	"fmt"
	"math"

	"tourney-service/internal/model"
	"tourney-service/internal/service/ledger"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// residualTolerance is one minimal currency unit. The equal split is
// computed once; the leftover between the pool and the sum of shares must
// stay within a cent or the split math has drifted.
const residualTolerance = 0.01

type BountyAward struct {
	EliminatorPlayerID int64   `json:"eliminatorPlayerId"`
	EliminatorEntryID  int64   `json:"eliminatorEntryId"`
	CashAmount         float64 `json:"cashAmount"`
	CarriedAmount      float64 `json:"carriedAmount"`
	LedgerEntryID      int64   `json:"ledgerEntryId"`
}

// distributeBounty splits the eliminated entry's bounty equally among the
// eliminators. Under pko policy a share is itself split into immediate cash
// and bounty carried forward onto the eliminator's own head; under fixed
// policy the whole share pays out as cash.
func (s *Service) distributeBounty(ctx context.Context, tx *gorm.DB, tpl *model.TournamentTemplate, eliminated *model.PlayerEntry, eliminatorIDs []int64, actorID int64) ([]BountyAward, error) {
	if tpl.BountyPolicy == "none" || tpl.BountyPolicy == "" {
		return nil, nil
	}
	total := eliminated.BountyAmount
	if total <= 0 || len(eliminatorIDs) == 0 {
		return nil, nil
	}

	share := total / float64(len(eliminatorIDs))

	residual := total - share*float64(len(eliminatorIDs))
	if math.Abs(residual) > residualTolerance {
		logger.Log.Warn("bounty split residual out of bounds",
			zap.Int64("entryID", eliminated.ID),
			zap.Float64("total", total),
			zap.Float64("residual", residual),
		)
	}

	cashShare := share
	carryShare := 0.0
	if tpl.BountyPolicy == "pko" {
		cashShare = share * tpl.PKOCashShare
		carryShare = share - cashShare
	}

	awards := make([]BountyAward, 0, len(eliminatorIDs))
	for _, playerID := range eliminatorIDs {
		var eliminator model.PlayerEntry
		err := tx.WithContext(ctx).
			Where("tournament_id = ? AND player_id = ? AND status IN ?",
				eliminated.TournamentID, playerID,
				[]string{model.EntryActive, model.EntryPaid}).
			First(&eliminator).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("%w: eliminator player %d has no live entry", appErr.ErrEntryNotFound, playerID)
			}
			return nil, err
		}

		eliminator.BountiesEarned += cashShare
		eliminator.BountyCount++
		eliminator.BountyAmount += carryShare
		if err := tx.WithContext(ctx).Save(&eliminator).Error; err != nil {
			return nil, err
		}

		reason := "bounty award"
		if carryShare > 0 {
			reason = fmt.Sprintf("bounty award (%.2f carried forward)", carryShare)
		}
		ledgerID, err := s.ledger.Append(ctx, tx, ledger.AppendRequest{
			TournamentID: eliminated.TournamentID,
			PlayerID:     playerID,
			Type:         ledger.TypeBountyAward,
			Amount:       cashShare,
			Reason:       reason,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, err
		}

		awards = append(awards, BountyAward{
			EliminatorPlayerID: playerID,
			EliminatorEntryID:  eliminator.ID,
			CashAmount:         cashShare,
			CarriedAmount:      carryShare,
			LedgerEntryID:      ledgerID,
		})
	}

	eliminated.BountyAmount = 0
	if err := tx.WithContext(ctx).Save(eliminated).Error; err != nil {
		return nil, err
	}
	return awards, nil
}
