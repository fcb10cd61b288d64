package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourney-service/internal/model"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
)

// Operation names carried on state-change events, one per engine mutation.
const (
	OpStart          = "start"
	OpPause          = "pause"
	OpResume         = "resume"
	OpTick           = "tick"
	OpAdvanceLevel   = "advance_level"
	OpStartBreak     = "start_break"
	OpEndBreak       = "end_break"
	OpComplete       = "complete"
	OpRegister       = "register"
	OpBustOut        = "bust_out"
	OpWithdraw       = "withdraw"
	OpRebuy          = "rebuy"
	OpAddOn          = "add_on"
	OpChipAdjustment = "chip_adjustment"
	OpMoveSeat       = "move_seat"
	OpUnseatPlayer   = "unseat_player"
	OpAutoSeatAll    = "auto_seat_all"
	OpBulkMove       = "bulk_move"
)

// StateChange is emitted exactly once per committed mutation, in commit
// order per tournament. External fan-out (websocket viewers, Redis
// subscribers) consumes these; the engine itself never depends on delivery.
type StateChange struct {
	TournamentID  int64                      `json:"tournamentId"`
	Operation     string                     `json:"operation"`
	Seq           int64                      `json:"seq"`
	Before        *model.LiveTournamentState `json:"before,omitempty"`
	After         *model.LiveTournamentState `json:"after"`
	LedgerEntryID int64                      `json:"ledgerEntryId,omitempty"`
	At            time.Time                  `json:"at"`
}

func eventChannel(tournamentID int64) string {
	return fmt.Sprintf("tourney:events:%d", tournamentID)
}

func (s *Service) publish(ctx context.Context, evt StateChange) {
	rt := s.runtime(evt.TournamentID)
	rt.emit(evt)

	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Warn("event marshal failed", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, eventChannel(evt.TournamentID), payload).Err(); err != nil {
		logger.Log.Warn("event publish failed",
			zap.Int64("tournamentID", evt.TournamentID),
			zap.String("operation", evt.Operation),
			zap.Error(err),
		)
	}
}
