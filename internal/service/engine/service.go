package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tourney-service/internal/model"
	"tourney-service/internal/service/clock"
	"tourney-service/internal/service/elimination"
	"tourney-service/internal/service/ledger"
	"tourney-service/internal/service/seating"
	"tourney-service/internal/service/template"
	appErr "tourney-service/pkg/errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Config struct {
	TickInterval    time.Duration
	FinalTableSize  int
	EventBufferSize int
}

func DefaultConfig() Config {
	return Config{
		TickInterval:    time.Second,
		FinalTableSize:  9,
		EventBufferSize: 16,
	}
}

// Service is the single entry point for tournament mutations. Every
// state-changing operation for a tournament runs under that tournament's
// runtime lock, so no two mutations ever race on the same state snapshot.
// Queries read committed state directly and take no lock.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg Config

	templates *template.Service
	clockSvc  *clock.Service
	seatSvc   *seating.Service
	ledgerSvc *ledger.Service
	elimSvc   *elimination.Service

	runtimes  sync.Map // tournamentID -> *tournamentRuntime
	startOnce sync.Once
}

func NewService(db *gorm.DB, rdb *redis.Client, cfg Config, templates *template.Service, clk *clock.Service, seats *seating.Service, lg *ledger.Service, elim *elimination.Service) *Service {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Service{
		db:        db,
		rdb:       rdb,
		cfg:       cfg,
		templates: templates,
		clockSvc:  clk,
		seatSvc:   seats,
		ledgerSvc: lg,
		elimSvc:   elim,
	}
}

func (s *Service) runtime(tournamentID int64) *tournamentRuntime {
	if v, ok := s.runtimes.Load(tournamentID); ok {
		return v.(*tournamentRuntime)
	}
	rt := newTournamentRuntime(tournamentID, s.cfg.EventBufferSize)
	actual, _ := s.runtimes.LoadOrStore(tournamentID, rt)
	return actual.(*tournamentRuntime)
}

// Subscribe attaches an event consumer to a tournament's committed-mutation
// stream. The returned id releases the channel via Unsubscribe.
func (s *Service) Subscribe(tournamentID int64) (int64, <-chan StateChange) {
	return s.runtime(tournamentID).subscribe()
}

func (s *Service) Unsubscribe(tournamentID, subID int64) {
	s.runtime(tournamentID).unsubscribe(subID)
}

func (s *Service) stateSnapshot(ctx context.Context, tournamentID int64) *model.LiveTournamentState {
	var state model.LiveTournamentState
	err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		First(&state).Error
	if err != nil {
		return nil
	}
	return &state
}

// mutate serializes one operation for tournamentID and emits exactly one
// StateChange if the operation commits and reports a change.
func (s *Service) mutate(ctx context.Context, tournamentID int64, op string, fn func() (int64, bool, error)) (*model.LiveTournamentState, error) {
	rt := s.runtime(tournamentID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	before := s.stateSnapshot(ctx, tournamentID)

	ledgerID, changed, err := fn()
	if err != nil {
		return nil, err
	}

	after := s.stateSnapshot(ctx, tournamentID)
	if !changed {
		return after, nil
	}

	s.publish(ctx, StateChange{
		TournamentID:  tournamentID,
		Operation:     op,
		Seq:           rt.nextSeq(),
		Before:        before,
		After:         after,
		LedgerEntryID: ledgerID,
		At:            time.Now(),
	})
	return after, nil
}

// ---- Lifecycle operations ----

type StartRequest struct {
	TournamentID int64
	TemplateID   int64
	TotalPlayers int
	IsPractice   bool
	PlayerIDs    []int64
	ActorID      int64
}

// StartTournament creates the live state, registers the initial field,
// opens tables and seats everyone.
func (s *Service) StartTournament(ctx context.Context, req StartRequest) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, req.TournamentID, OpStart, func() (int64, bool, error) {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			tpl, err := s.templates.Get(ctx, req.TemplateID)
			if err != nil {
				return err
			}

			totalPlayers := req.TotalPlayers
			if totalPlayers <= 0 {
				totalPlayers = len(req.PlayerIDs)
			}
			if totalPlayers <= 0 {
				return fmt.Errorf("%w: tournament needs players", appErr.ErrInvalidOperation)
			}

			state, err := s.clockSvc.Start(ctx, tx, clock.StartRequest{
				TournamentID: req.TournamentID,
				TemplateID:   req.TemplateID,
				TotalPlayers: totalPlayers,
				IsPractice:   req.IsPractice,
			})
			if err != nil {
				return err
			}

			bounty := 0.0
			if tpl.BountyPolicy != "none" {
				bounty = tpl.BountyAmount
			}
			for _, playerID := range req.PlayerIDs {
				entry := model.PlayerEntry{
					TournamentID: req.TournamentID,
					PlayerID:     playerID,
					Status:       model.EntryActive,
					ChipCount:    tpl.StartingChips,
					BountyAmount: bounty,
					PaidAmount:   tpl.BuyIn,
				}
				if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
					return err
				}
			}

			state.PrizePool = tpl.BuyIn * float64(len(req.PlayerIDs))
			if err := tx.WithContext(ctx).Save(state).Error; err != nil {
				return err
			}

			if _, err := s.seatSvc.CreateTables(ctx, tx, req.TournamentID, totalPlayers, tpl.TableSize); err != nil {
				return err
			}
			if _, err := s.seatSvc.AutoSeatAll(ctx, tx, req.TournamentID); err != nil {
				return err
			}
			return nil
		})
		return 0, err == nil, err
	})
}

func (s *Service) Pause(ctx context.Context, tournamentID int64, clientRemaining *int) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpPause, func() (int64, bool, error) {
		_, err := s.clockSvc.Pause(ctx, nil, tournamentID, clientRemaining)
		return 0, err == nil, err
	})
}

func (s *Service) Resume(ctx context.Context, tournamentID int64) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpResume, func() (int64, bool, error) {
		_, err := s.clockSvc.Resume(ctx, nil, tournamentID)
		return 0, err == nil, err
	})
}

// Tick advances the countdown. Only the tick that crosses a level boundary
// emits an event; an idle tick against a paused or completed tournament is
// silent.
func (s *Service) Tick(ctx context.Context, tournamentID int64, elapsedSeconds int) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpTick, func() (int64, bool, error) {
		_, advanced, err := s.clockSvc.Tick(ctx, nil, tournamentID, elapsedSeconds)
		return 0, err == nil && advanced, err
	})
}

func (s *Service) AdvanceLevel(ctx context.Context, tournamentID int64) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpAdvanceLevel, func() (int64, bool, error) {
		_, err := s.clockSvc.AdvanceLevel(ctx, nil, tournamentID)
		return 0, err == nil, err
	})
}

func (s *Service) StartBreak(ctx context.Context, tournamentID int64, durationSeconds int) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpStartBreak, func() (int64, bool, error) {
		_, err := s.clockSvc.StartBreak(ctx, nil, tournamentID, durationSeconds)
		return 0, err == nil, err
	})
}

func (s *Service) EndBreak(ctx context.Context, tournamentID int64) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpEndBreak, func() (int64, bool, error) {
		_, err := s.clockSvc.EndBreak(ctx, nil, tournamentID)
		return 0, err == nil, err
	})
}

// Complete force-finishes a tournament. A unique survivor is crowned first;
// with no unique survivor the clock still goes terminal.
func (s *Service) Complete(ctx context.Context, tournamentID, actorID int64) (*model.LiveTournamentState, error) {
	return s.mutate(ctx, tournamentID, OpComplete, func() (int64, bool, error) {
		if _, err := s.elimSvc.CompleteTournament(ctx, tournamentID, actorID); err != nil {
			return 0, false, err
		}
		state := s.stateSnapshot(ctx, tournamentID)
		if state == nil {
			return 0, false, appErr.ErrTournamentNotFound
		}
		if state.Status != model.TournamentCompleted {
			if _, err := s.clockSvc.Complete(ctx, nil, tournamentID); err != nil {
				return 0, false, err
			}
		}
		return 0, true, nil
	})
}

// ---- Entry operations ----

type RegisterRequest struct {
	TournamentID int64
	PlayerID     int64
	ActorID      int64
}

type RegisterResult struct {
	Entry         *model.PlayerEntry      `json:"entry"`
	Seat          *seating.SeatAssignment `json:"seat,omitempty"`
	LedgerEntryID int64                   `json:"ledgerEntryId"`
}

// Register admits a late registration while the window is open.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	var result RegisterResult
	_, err := s.mutate(ctx, req.TournamentID, OpRegister, func() (int64, bool, error) {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			state, tpl, err := s.loadStateAndTemplate(ctx, tx, req.TournamentID)
			if err != nil {
				return err
			}
			if state.Status == model.TournamentCompleted {
				return appErr.ErrTournamentComplete
			}
			if tpl.LateRegUntilLevel > 0 && state.CurrentLevel > tpl.LateRegUntilLevel {
				return appErr.ErrLateRegClosed
			}

			bounty := 0.0
			if tpl.BountyPolicy != "none" {
				bounty = tpl.BountyAmount
			}
			entry := model.PlayerEntry{
				TournamentID: req.TournamentID,
				PlayerID:     req.PlayerID,
				Status:       model.EntryActive,
				ChipCount:    tpl.StartingChips,
				BountyAmount: bounty,
				PaidAmount:   tpl.BuyIn,
			}
			if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
				return err
			}

			state.TotalPlayers++
			state.RemainingPlayers++
			state.PrizePool += tpl.BuyIn
			if err := tx.WithContext(ctx).Save(state).Error; err != nil {
				return err
			}

			ledgerID, err := s.ledgerSvc.Append(ctx, tx, ledger.AppendRequest{
				TournamentID: req.TournamentID,
				PlayerID:     req.PlayerID,
				Type:         ledger.TypeLateRegistration,
				Amount:       tpl.BuyIn,
				ChipsDelta:   tpl.StartingChips,
				Reason:       "late registration",
				ActorID:      req.ActorID,
			})
			if err != nil {
				return err
			}

			seat, err := s.seatNewPlayer(ctx, tx, req.TournamentID, req.PlayerID, tpl.TableSize)
			if err != nil {
				return err
			}

			result = RegisterResult{Entry: &entry, Seat: seat, LedgerEntryID: ledgerID}
			return nil
		})
		return result.LedgerEntryID, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// seatNewPlayer finds a balanced seat, opening a fresh table when every
// existing one is full.
func (s *Service) seatNewPlayer(ctx context.Context, tx *gorm.DB, tournamentID, playerID int64, tableSize int) (*seating.SeatAssignment, error) {
	target, err := s.seatSvc.FindOptimalSeat(ctx, tx, tournamentID)
	if err == appErr.ErrNoSeatAvailable {
		if _, err := s.seatSvc.CreateTables(ctx, tx, tournamentID, 1, tableSize); err != nil {
			return nil, err
		}
		target, err = s.seatSvc.FindOptimalSeat(ctx, tx, tournamentID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if _, err := s.seatSvc.MovePlayer(ctx, tx, tournamentID, playerID, target.TableID, target.SeatNumber); err != nil {
		return nil, err
	}
	return target, nil
}

type RebuyRequest struct {
	TournamentID int64
	EntryID      int64
	ActorID      int64
}

type RebuyResult struct {
	Entry         *model.PlayerEntry `json:"entry"`
	Restored      bool               `json:"restored"`
	LedgerEntryID int64              `json:"ledgerEntryId"`
}

// Rebuy tops up an active stack or, for a bust still inside the re-entry
// window (no finish position assigned), restores the entry to play.
func (s *Service) Rebuy(ctx context.Context, req RebuyRequest) (*RebuyResult, error) {
	var result RebuyResult
	_, err := s.mutate(ctx, req.TournamentID, OpRebuy, func() (int64, bool, error) {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			state, tpl, err := s.loadStateAndTemplate(ctx, tx, req.TournamentID)
			if err != nil {
				return err
			}
			if state.Status == model.TournamentCompleted {
				return appErr.ErrTournamentComplete
			}
			if !tpl.AllowRebuys {
				return appErr.ErrRebuyNotAllowed
			}

			entry, err := s.loadEntry(ctx, tx, req.TournamentID, req.EntryID)
			if err != nil {
				return err
			}
			if entry.Status == model.EntryWithdrawn {
				return appErr.ErrAlreadyWithdrawn
			}
			if tpl.MaxRebuys > 0 && entry.RebuysCount >= tpl.MaxRebuys {
				return fmt.Errorf("%w: rebuy limit reached", appErr.ErrRebuyNotAllowed)
			}

			restored := false
			if entry.Status == model.EntryEliminated {
				if entry.FinishPosition != nil {
					return fmt.Errorf("%w: entry already holds a finish position", appErr.ErrRebuyNotAllowed)
				}
				entry.Status = model.EntryActive
				entry.BustoutAt = nil
				entry.EliminationReason = ""
				restored = true

				state.RemainingPlayers++
				state.BustedCount--
			}

			entry.ChipCount += tpl.RebuyChips
			entry.RebuysCount++
			entry.PaidAmount += tpl.RebuyAmount
			if entry.BountyAmount == 0 && tpl.BountyPolicy != "none" {
				entry.BountyAmount = tpl.BountyAmount
			}
			if err := tx.WithContext(ctx).Save(entry).Error; err != nil {
				return err
			}

			state.TotalRebuys++
			state.PrizePool += tpl.RebuyAmount
			if err := tx.WithContext(ctx).Save(state).Error; err != nil {
				return err
			}

			ledgerID, err := s.ledgerSvc.Append(ctx, tx, ledger.AppendRequest{
				TournamentID: req.TournamentID,
				PlayerID:     entry.PlayerID,
				Type:         ledger.TypeRebuy,
				Amount:       tpl.RebuyAmount,
				ChipsDelta:   tpl.RebuyChips,
				Reason:       "rebuy",
				ActorID:      req.ActorID,
			})
			if err != nil {
				return err
			}

			if restored {
				if _, err := s.seatNewPlayer(ctx, tx, req.TournamentID, entry.PlayerID, tpl.TableSize); err != nil {
					return err
				}
			}

			result = RebuyResult{Entry: entry, Restored: restored, LedgerEntryID: ledgerID}
			return nil
		})
		return result.LedgerEntryID, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type AddOnRequest struct {
	TournamentID int64
	EntryID      int64
	ActorID      int64
}

func (s *Service) AddOn(ctx context.Context, req AddOnRequest) (*RebuyResult, error) {
	var result RebuyResult
	_, err := s.mutate(ctx, req.TournamentID, OpAddOn, func() (int64, bool, error) {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			state, tpl, err := s.loadStateAndTemplate(ctx, tx, req.TournamentID)
			if err != nil {
				return err
			}
			if state.Status == model.TournamentCompleted {
				return appErr.ErrTournamentComplete
			}
			if tpl.AddonChips <= 0 {
				return appErr.ErrAddonNotAllowed
			}
			if tpl.AddonUntilLevel > 0 && state.CurrentLevel > tpl.AddonUntilLevel {
				return fmt.Errorf("%w: add-on window closed", appErr.ErrAddonNotAllowed)
			}

			entry, err := s.loadEntry(ctx, tx, req.TournamentID, req.EntryID)
			if err != nil {
				return err
			}
			if entry.Status != model.EntryActive && entry.Status != model.EntryPaid {
				return fmt.Errorf("%w: entry not in play", appErr.ErrAddonNotAllowed)
			}

			entry.ChipCount += tpl.AddonChips
			entry.AddonsCount++
			entry.PaidAmount += tpl.AddonAmount
			if err := tx.WithContext(ctx).Save(entry).Error; err != nil {
				return err
			}

			state.TotalAddons++
			state.PrizePool += tpl.AddonAmount
			if err := tx.WithContext(ctx).Save(state).Error; err != nil {
				return err
			}

			ledgerID, err := s.ledgerSvc.Append(ctx, tx, ledger.AppendRequest{
				TournamentID: req.TournamentID,
				PlayerID:     entry.PlayerID,
				Type:         ledger.TypeAddOn,
				Amount:       tpl.AddonAmount,
				ChipsDelta:   tpl.AddonChips,
				Reason:       "add-on",
				ActorID:      req.ActorID,
			})
			if err != nil {
				return err
			}

			result = RebuyResult{Entry: entry, LedgerEntryID: ledgerID}
			return nil
		})
		return result.LedgerEntryID, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type AdjustmentRequest struct {
	TournamentID int64
	EntryID      int64
	ChipsDelta   int64
	Reason       string
	ActorID      int64
}

// ChipAdjustment applies a manual chip correction. A zero delta, a missing
// reason, or a negative resulting stack are all rejected before anything is
// written.
func (s *Service) ChipAdjustment(ctx context.Context, req AdjustmentRequest) (*RebuyResult, error) {
	if req.ChipsDelta == 0 {
		return nil, appErr.ErrZeroAdjustment
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErr.ErrMissingReason
	}

	var result RebuyResult
	_, err := s.mutate(ctx, req.TournamentID, OpChipAdjustment, func() (int64, bool, error) {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			state, _, err := s.loadStateAndTemplate(ctx, tx, req.TournamentID)
			if err != nil {
				return err
			}
			if state.Status == model.TournamentCompleted {
				return appErr.ErrTournamentComplete
			}

			entry, err := s.loadEntry(ctx, tx, req.TournamentID, req.EntryID)
			if err != nil {
				return err
			}
			if entry.Status != model.EntryActive && entry.Status != model.EntryPaid {
				return fmt.Errorf("%w: entry not in play", appErr.ErrInvalidOperation)
			}
			if entry.ChipCount+req.ChipsDelta < 0 {
				return appErr.ErrNegativeChips
			}

			entry.ChipCount += req.ChipsDelta
			if err := tx.WithContext(ctx).Save(entry).Error; err != nil {
				return err
			}

			ledgerID, err := s.ledgerSvc.Append(ctx, tx, ledger.AppendRequest{
				TournamentID: req.TournamentID,
				PlayerID:     entry.PlayerID,
				Type:         ledger.TypeChipAdjustment,
				ChipsDelta:   req.ChipsDelta,
				Reason:       req.Reason,
				ActorID:      req.ActorID,
			})
			if err != nil {
				return err
			}

			result = RebuyResult{Entry: entry, LedgerEntryID: ledgerID}
			return nil
		})
		return result.LedgerEntryID, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ---- Elimination operations ----

func (s *Service) BustOut(ctx context.Context, req elimination.BustOutRequest) (*elimination.BustOutResult, error) {
	var result *elimination.BustOutResult
	_, err := s.mutate(ctx, req.TournamentID, OpBustOut, func() (int64, bool, error) {
		var err error
		result, err = s.elimSvc.ProcessBustOut(ctx, req)
		if err != nil {
			return 0, false, err
		}
		return result.LedgerEntryID, true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Withdraw(ctx context.Context, req elimination.WithdrawalRequest) (*elimination.WithdrawalResult, error) {
	var result *elimination.WithdrawalResult
	_, err := s.mutate(ctx, req.TournamentID, OpWithdraw, func() (int64, bool, error) {
		var err error
		result, err = s.elimSvc.ProcessWithdrawal(ctx, req)
		if err != nil {
			return 0, false, err
		}
		return result.LedgerEntryID, true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ---- Seating operations ----

func (s *Service) MoveSeat(ctx context.Context, tournamentID, playerID, toTableID int64, toSeatNumber int) (*model.Seat, error) {
	var seat *model.Seat
	_, err := s.mutate(ctx, tournamentID, OpMoveSeat, func() (int64, bool, error) {
		var err error
		seat, err = s.seatSvc.MovePlayer(ctx, nil, tournamentID, playerID, toTableID, toSeatNumber)
		return 0, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return seat, nil
}

func (s *Service) UnseatPlayer(ctx context.Context, tournamentID, playerID int64) (bool, error) {
	var unseated bool
	_, err := s.mutate(ctx, tournamentID, OpUnseatPlayer, func() (int64, bool, error) {
		var err error
		unseated, err = s.seatSvc.UnseatPlayer(ctx, nil, tournamentID, playerID)
		return 0, err == nil && unseated, err
	})
	if err != nil {
		return false, err
	}
	return unseated, nil
}

func (s *Service) AutoSeatAll(ctx context.Context, tournamentID int64) ([]seating.MoveResult, error) {
	var results []seating.MoveResult
	_, err := s.mutate(ctx, tournamentID, OpAutoSeatAll, func() (int64, bool, error) {
		var err error
		results, err = s.seatSvc.AutoSeatAll(ctx, nil, tournamentID)
		return 0, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) BulkMove(ctx context.Context, tournamentID int64, moves []seating.MoveRequest) ([]seating.MoveResult, error) {
	var results []seating.MoveResult
	_, err := s.mutate(ctx, tournamentID, OpBulkMove, func() (int64, bool, error) {
		results = s.seatSvc.BulkMove(ctx, nil, tournamentID, moves)
		return 0, true, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ---- Queries (lock-free) ----

func (s *Service) GetState(ctx context.Context, tournamentID int64) (*model.LiveTournamentState, error) {
	state := s.stateSnapshot(ctx, tournamentID)
	if state == nil {
		return nil, appErr.ErrTournamentNotFound
	}
	return state, nil
}

func (s *Service) GetEntries(ctx context.Context, tournamentID int64) ([]model.PlayerEntry, error) {
	var entries []model.PlayerEntry
	err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) GetSeatMap(ctx context.Context, tournamentID int64) ([]seating.TableSeatMap, error) {
	return s.seatSvc.SeatMap(ctx, tournamentID)
}

func (s *Service) GetLedger(ctx context.Context, tournamentID int64, filters ledger.QueryFilters) (*ledger.QueryResult, error) {
	return s.ledgerSvc.Query(ctx, tournamentID, filters)
}

func (s *Service) GetSummary(ctx context.Context, tournamentID int64) ([]ledger.TypeSummary, error) {
	return s.ledgerSvc.Summary(ctx, tournamentID)
}

func (s *Service) CalculateFinishPosition(ctx context.Context, tournamentID, entryID int64) (int, error) {
	return s.elimSvc.CalculateFinishPosition(ctx, tournamentID, entryID)
}

type PrizePoolReconciliation struct {
	Counter       float64 `json:"counter"`
	DerivedAmount float64 `json:"derivedAmount"`
	LedgeredMoney float64 `json:"ledgeredMoney"`
	Consistent    bool    `json:"consistent"`
}

// ReconcilePrizePool cross-checks the incrementally maintained prize pool
// counter against the sum of entry contributions, with the ledgered money
// movements reported alongside.
func (s *Service) ReconcilePrizePool(ctx context.Context, tournamentID int64) (*PrizePoolReconciliation, error) {
	state, err := s.GetState(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	var derived float64
	err = s.db.WithContext(ctx).
		Model(&model.PlayerEntry{}).
		Select("COALESCE(SUM(paid_amount),0)").
		Where("tournament_id = ?", tournamentID).
		Scan(&derived).Error
	if err != nil {
		return nil, err
	}

	ledgered, err := s.ledgerSvc.SumAmounts(ctx, tournamentID, []string{
		ledger.TypeLateRegistration, ledger.TypeRebuy, ledger.TypeAddOn,
	})
	if err != nil {
		return nil, err
	}

	diff := state.PrizePool - derived
	if diff < 0 {
		diff = -diff
	}
	return &PrizePoolReconciliation{
		Counter:       state.PrizePool,
		DerivedAmount: derived,
		LedgeredMoney: ledgered,
		Consistent:    diff < 0.01,
	}, nil
}

// ---- helpers ----

func (s *Service) loadStateAndTemplate(ctx context.Context, tx *gorm.DB, tournamentID int64) (*model.LiveTournamentState, *model.TournamentTemplate, error) {
	var state model.LiveTournamentState
	err := tx.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, appErr.ErrTournamentNotFound
		}
		return nil, nil, err
	}
	tpl, err := s.templates.Get(ctx, state.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	return &state, tpl, nil
}

func (s *Service) loadEntry(ctx context.Context, tx *gorm.DB, tournamentID, entryID int64) (*model.PlayerEntry, error) {
	var entry model.PlayerEntry
	err := tx.WithContext(ctx).
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
