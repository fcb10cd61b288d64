package elimination_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"tourney-service/internal/model"
	"tourney-service/internal/service/clock"
	"tourney-service/internal/service/elimination"
	"tourney-service/internal/service/ledger"
	"tourney-service/internal/service/seating"
	"tourney-service/internal/service/template"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	templates *template.Service
	ledger    *ledger.Service
	seats     *seating.Service
	clock     *clock.Service
	elim      *elimination.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger.Log = zap.NewNop()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.TournamentTemplate{}, &model.LiveTournamentState{},
		&model.PlayerEntry{}, &model.TournamentTable{}, &model.Seat{},
		&model.TransactionRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	templates := template.NewService(db)
	ledgerSvc := ledger.NewService(db)
	seats := seating.NewService(db)
	clk := clock.NewService(db, templates)
	return &fixture{
		db:        db,
		templates: templates,
		ledger:    ledgerSvc,
		seats:     seats,
		clock:     clk,
		elim:      elimination.NewService(db, ledgerSvc, seats, clk, templates, 9),
	}
}

type fieldOptions struct {
	players      int
	buyIn        float64
	bountyPolicy string
	bountyAmount float64
	pkoCashShare float64
	allowReentry bool
	reentryUntil int
}

// seedField creates a template, a running state, one active entry per player
// (player IDs 1..n, entry IDs returned in order) and seats everyone.
func (f *fixture) seedField(t *testing.T, tournamentID int64, opts fieldOptions) []int64 {
	t.Helper()
	ctx := context.Background()

	if opts.players <= 0 {
		opts.players = 4
	}
	tpl, err := f.templates.Create(ctx, template.MutationParams{
		Name:              "field",
		BuyIn:             opts.buyIn,
		StartingChips:     20000,
		TableSize:         9,
		AllowReentry:      opts.allowReentry,
		ReentryUntilLevel: opts.reentryUntil,
		BountyPolicy:      opts.bountyPolicy,
		BountyAmount:      opts.bountyAmount,
		PKOCashShare:      opts.pkoCashShare,
		Levels: []template.BlindLevel{
			{DurationSeconds: 600, SmallBlind: 25, BigBlind: 50},
			{DurationSeconds: 600, SmallBlind: 50, BigBlind: 100},
		},
	})
	if err != nil {
		t.Fatalf("create template failed: %v", err)
	}

	state, err := f.clock.Start(ctx, nil, clock.StartRequest{
		TournamentID: tournamentID,
		TemplateID:   tpl.ID,
		TotalPlayers: opts.players,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	state.PrizePool = opts.buyIn * float64(opts.players)
	if err := f.db.Save(state).Error; err != nil {
		t.Fatalf("save prize pool failed: %v", err)
	}

	entryIDs := make([]int64, 0, opts.players)
	for i := 1; i <= opts.players; i++ {
		entry := model.PlayerEntry{
			TournamentID: tournamentID,
			PlayerID:     int64(i),
			Status:       model.EntryActive,
			ChipCount:    20000,
			BountyAmount: opts.bountyAmount,
			PaidAmount:   opts.buyIn,
		}
		if err := f.db.Create(&entry).Error; err != nil {
			t.Fatalf("seed entry failed: %v", err)
		}
		entryIDs = append(entryIDs, entry.ID)
	}

	if _, err := f.seats.CreateTables(ctx, nil, tournamentID, opts.players, 9); err != nil {
		t.Fatalf("create tables failed: %v", err)
	}
	if _, err := f.seats.AutoSeatAll(ctx, nil, tournamentID); err != nil {
		t.Fatalf("auto seat failed: %v", err)
	}
	return entryIDs
}

func (f *fixture) bust(t *testing.T, tournamentID, entryID int64, eliminators ...int64) *elimination.BustOutResult {
	t.Helper()
	result, err := f.elim.ProcessBustOut(context.Background(), elimination.BustOutRequest{
		TournamentID:  tournamentID,
		EntryID:       entryID,
		EliminatorIDs: eliminators,
		ActorID:       1000,
	})
	if err != nil {
		t.Fatalf("bust out entry %d failed: %v", entryID, err)
	}
	return result
}

func (f *fixture) entry(t *testing.T, entryID int64) *model.PlayerEntry {
	t.Helper()
	var entry model.PlayerEntry
	if err := f.db.First(&entry, entryID).Error; err != nil {
		t.Fatalf("load entry %d failed: %v", entryID, err)
	}
	return &entry
}

func TestBustOutAssignsGapFreePositions(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6101
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4, buyIn: 100})

	if r := f.bust(t, tournamentID, entries[0]); r.FinishPosition == nil || *r.FinishPosition != 4 {
		t.Fatalf("expected first bust to finish 4th, got %+v", r.FinishPosition)
	}
	if r := f.bust(t, tournamentID, entries[1]); r.FinishPosition == nil || *r.FinishPosition != 3 {
		t.Fatalf("expected second bust to finish 3rd, got %+v", r.FinishPosition)
	}

	r := f.bust(t, tournamentID, entries[2])
	if r.FinishPosition == nil || *r.FinishPosition != 2 {
		t.Fatalf("expected third bust to finish 2nd, got %+v", r.FinishPosition)
	}

	// One survivor left: the tournament completes and crowns the winner.
	if r.Winner == nil || r.Winner.EntryID != entries[3] {
		t.Fatalf("expected winner entry %d, got %+v", entries[3], r.Winner)
	}
	winner := f.entry(t, entries[3])
	if winner.FinishPosition == nil || *winner.FinishPosition != 1 {
		t.Fatalf("expected winner position 1, got %+v", winner.FinishPosition)
	}

	var state model.LiveTournamentState
	if err := f.db.Where("tournament_id = ?", tournamentID).First(&state).Error; err != nil {
		t.Fatalf("load state failed: %v", err)
	}
	if state.Status != model.TournamentCompleted {
		t.Fatalf("expected completed tournament, got %s", state.Status)
	}
	if state.RemainingPlayers != 1 || state.BustedCount != 3 {
		t.Fatalf("unexpected counters: remaining=%d busted=%d", state.RemainingPlayers, state.BustedCount)
	}

	var announcements int64
	if err := f.db.Model(&model.TransactionRecord{}).
		Where("tournament_id = ? AND type = ?", tournamentID, ledger.TypeWinnerAnnouncement).
		Count(&announcements).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if announcements != 1 {
		t.Fatalf("expected 1 winner announcement, got %d", announcements)
	}
}

func TestBustOutZeroesChipsAndVacatesSeat(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6102
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4})

	before := f.entry(t, entries[0])
	f.bust(t, tournamentID, entries[0])

	after := f.entry(t, entries[0])
	if after.ChipCount != 0 || after.Status != model.EntryEliminated || after.BustoutAt == nil {
		t.Fatalf("unexpected entry after bust: %+v", after)
	}

	var seated int64
	if err := f.db.Model(&model.Seat{}).
		Where("tournament_id = ? AND player_id = ?", tournamentID, before.PlayerID).
		Count(&seated).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if seated != 0 {
		t.Fatalf("expected busted player unseated")
	}

	var row model.TransactionRecord
	err := f.db.Where("tournament_id = ? AND type = ? AND player_id = ?",
		tournamentID, ledger.TypeBustOut, before.PlayerID).First(&row).Error
	if err != nil {
		t.Fatalf("expected bust_out ledger row: %v", err)
	}
	if row.ChipsDelta != -20000 {
		t.Fatalf("expected chips delta -20000, got %d", row.ChipsDelta)
	}
}

func TestBustOutInReentryWindowDefersPosition(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6103
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4, allowReentry: true, reentryUntil: 2})

	r := f.bust(t, tournamentID, entries[0])
	if !r.ReentryEligible {
		t.Fatalf("expected re-entry eligible bust")
	}
	if r.FinishPosition != nil {
		t.Fatalf("re-entry window bust must not assign a position, got %d", *r.FinishPosition)
	}

	entry := f.entry(t, entries[0])
	if entry.Status != model.EntryEliminated || entry.FinishPosition != nil {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if r.RemainingPlayers != 3 {
		t.Fatalf("expected remaining=3, got %d", r.RemainingPlayers)
	}
}

func TestDeclinedReentrySettlesDeferredPosition(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6104
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4, allowReentry: true, reentryUntil: 2})

	// First bust defers; a later bust outlasts it.
	f.bust(t, tournamentID, entries[0])
	f.bust(t, tournamentID, entries[1])

	result, err := f.elim.ProcessWithdrawal(context.Background(), elimination.WithdrawalRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		Reason:       "declined re-entry",
		Type:         "declined_reentry",
		ActorID:      1000,
	})
	if err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	if result.FinishPosition == nil || *result.FinishPosition != 4 {
		t.Fatalf("expected deferred position 4, got %+v", result.FinishPosition)
	}

	// The later bust inside the same window ranks one better once settled.
	pos, err := f.elim.CalculateFinishPosition(context.Background(), tournamentID, entries[1])
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if pos != 3 {
		t.Fatalf("expected position 3 for later bust, got %d", pos)
	}
}

func TestBustOutAlreadyEliminated(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6105
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4})

	f.bust(t, tournamentID, entries[0])
	_, err := f.elim.ProcessBustOut(context.Background(), elimination.BustOutRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		ActorID:      1000,
	})
	if !errors.Is(err, appErr.ErrAlreadyEliminated) {
		t.Fatalf("expected ErrAlreadyEliminated, got %v", err)
	}
}

type failingLedger struct{}

func (failingLedger) Append(ctx context.Context, tx *gorm.DB, req ledger.AppendRequest) (int64, error) {
	return 0, appErr.ErrAuditAppend
}

func TestBustOutRollsBackWhenLedgerAppendFails(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6106
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4})

	broken := elimination.NewService(f.db, failingLedger{}, f.seats, f.clock, f.templates, 9)
	_, err := broken.ProcessBustOut(context.Background(), elimination.BustOutRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		ActorID:      1000,
	})
	if !errors.Is(err, appErr.ErrAuditAppend) {
		t.Fatalf("expected ErrAuditAppend, got %v", err)
	}

	// Nothing from the failed bust-out survives.
	entry := f.entry(t, entries[0])
	if entry.Status != model.EntryActive || entry.ChipCount != 20000 || entry.BustoutAt != nil {
		t.Fatalf("expected untouched entry, got %+v", entry)
	}

	var state model.LiveTournamentState
	if err := f.db.Where("tournament_id = ?", tournamentID).First(&state).Error; err != nil {
		t.Fatalf("load state failed: %v", err)
	}
	if state.RemainingPlayers != 4 || state.BustedCount != 0 {
		t.Fatalf("expected untouched counters, got remaining=%d busted=%d", state.RemainingPlayers, state.BustedCount)
	}

	var seated int64
	if err := f.db.Model(&model.Seat{}).
		Where("tournament_id = ? AND player_id = ?", tournamentID, entry.PlayerID).
		Count(&seated).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if seated != 1 {
		t.Fatalf("expected player still seated")
	}
}

func TestFixedBountySplitAmongEliminators(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6107
	entries := f.seedField(t, tournamentID, fieldOptions{
		players:      5,
		bountyPolicy: "fixed",
		bountyAmount: 100,
	})

	r := f.bust(t, tournamentID, entries[0], 2, 3)
	if len(r.Bounties) != 2 {
		t.Fatalf("expected 2 bounty awards, got %d", len(r.Bounties))
	}
	for _, award := range r.Bounties {
		if award.CashAmount != 50 {
			t.Fatalf("expected 50 cash per eliminator, got %v", award.CashAmount)
		}
		if award.CarriedAmount != 0 {
			t.Fatalf("fixed policy must not carry bounty, got %v", award.CarriedAmount)
		}
	}

	eliminated := f.entry(t, entries[0])
	if eliminated.BountyAmount != 0 {
		t.Fatalf("expected eliminated bounty zeroed, got %v", eliminated.BountyAmount)
	}

	eliminator := f.entry(t, entries[1])
	if eliminator.BountiesEarned != 50 || eliminator.BountyCount != 1 {
		t.Fatalf("unexpected eliminator: earned=%v count=%d", eliminator.BountiesEarned, eliminator.BountyCount)
	}
	if eliminator.BountyAmount != 100 {
		t.Fatalf("fixed policy must keep eliminator bounty at 100, got %v", eliminator.BountyAmount)
	}

	var awards int64
	if err := f.db.Model(&model.TransactionRecord{}).
		Where("tournament_id = ? AND type = ?", tournamentID, ledger.TypeBountyAward).
		Count(&awards).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if awards != 2 {
		t.Fatalf("expected 2 bounty_award rows, got %d", awards)
	}
}

func TestPKOBountySplitsCashAndCarry(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6108
	entries := f.seedField(t, tournamentID, fieldOptions{
		players:      4,
		bountyPolicy: "pko",
		bountyAmount: 100,
		pkoCashShare: 0.5,
	})

	r := f.bust(t, tournamentID, entries[0], 2)
	if len(r.Bounties) != 1 {
		t.Fatalf("expected 1 award, got %d", len(r.Bounties))
	}
	award := r.Bounties[0]
	if award.CashAmount != 50 || award.CarriedAmount != 50 {
		t.Fatalf("expected 50/50 split, got cash=%v carry=%v", award.CashAmount, award.CarriedAmount)
	}

	eliminator := f.entry(t, entries[1])
	if eliminator.BountyAmount != 150 {
		t.Fatalf("expected eliminator bounty grown to 150, got %v", eliminator.BountyAmount)
	}
	if eliminator.BountiesEarned != 50 {
		t.Fatalf("expected 50 cash earned, got %v", eliminator.BountiesEarned)
	}
}

func TestBountyRequiresLiveEliminator(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6109
	entries := f.seedField(t, tournamentID, fieldOptions{
		players:      4,
		bountyPolicy: "fixed",
		bountyAmount: 100,
	})

	f.bust(t, tournamentID, entries[1])

	// Player 2 is out; crediting them must fail and roll the bust back.
	_, err := f.elim.ProcessBustOut(context.Background(), elimination.BustOutRequest{
		TournamentID:  tournamentID,
		EntryID:       entries[0],
		EliminatorIDs: []int64{2},
		ActorID:       1000,
	})
	if !errors.Is(err, appErr.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	entry := f.entry(t, entries[0])
	if entry.Status != model.EntryActive {
		t.Fatalf("expected rollback to keep entry active, got %s", entry.Status)
	}
}

func TestWithdrawalAssignsPositionWithoutBounty(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6110
	entries := f.seedField(t, tournamentID, fieldOptions{
		players:      4,
		bountyPolicy: "fixed",
		bountyAmount: 100,
	})

	result, err := f.elim.ProcessWithdrawal(context.Background(), elimination.WithdrawalRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		Reason:       "left the venue",
		Type:         "voluntary",
		ActorID:      1000,
	})
	if err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	if result.FinishPosition == nil || *result.FinishPosition != 4 {
		t.Fatalf("expected position 4, got %+v", result.FinishPosition)
	}
	if result.RemainingPlayers != 3 {
		t.Fatalf("expected remaining=3, got %d", result.RemainingPlayers)
	}

	entry := f.entry(t, entries[0])
	if entry.Status != model.EntryWithdrawn || entry.WithdrawalStatus != "voluntary" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	var bountyRows int64
	if err := f.db.Model(&model.TransactionRecord{}).
		Where("tournament_id = ? AND type = ?", tournamentID, ledger.TypeBountyAward).
		Count(&bountyRows).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if bountyRows != 0 {
		t.Fatalf("withdrawal must not pay bounties, got %d rows", bountyRows)
	}
}

func TestWithdrawalRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6111
	entries := f.seedField(t, tournamentID, fieldOptions{players: 4})

	_, err := f.elim.ProcessWithdrawal(context.Background(), elimination.WithdrawalRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		Type:         "rage_quit",
		ActorID:      1000,
	})
	if !errors.Is(err, appErr.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestFinalTableFlag(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6112
	entries := f.seedField(t, tournamentID, fieldOptions{players: 11})

	r := f.bust(t, tournamentID, entries[0])
	if r.FinalTable {
		t.Fatalf("10 remaining must not flag the final table")
	}
	r = f.bust(t, tournamentID, entries[1])
	if !r.FinalTable {
		t.Fatalf("9 remaining must flag the final table")
	}
}

func TestCompleteTournamentNoUniqueSurvivor(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6113
	f.seedField(t, tournamentID, fieldOptions{players: 4})

	winner, err := f.elim.CompleteTournament(context.Background(), tournamentID, 1000)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if winner != nil {
		t.Fatalf("expected no winner with 4 survivors, got %+v", winner)
	}

	var state model.LiveTournamentState
	if err := f.db.Where("tournament_id = ?", tournamentID).First(&state).Error; err != nil {
		t.Fatalf("load state failed: %v", err)
	}
	if state.Status == model.TournamentCompleted {
		t.Fatalf("tournament must not complete without a unique survivor")
	}
}

func TestCompletedTournamentRejectsBustOutAndWithdrawal(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6114
	entries := f.seedField(t, tournamentID, fieldOptions{players: 3})

	ctx := context.Background()
	if _, err := f.clock.Complete(ctx, nil, tournamentID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, err := f.elim.ProcessBustOut(ctx, elimination.BustOutRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		ActorID:      1000,
	})
	if !errors.Is(err, appErr.ErrTournamentComplete) {
		t.Fatalf("expected ErrTournamentComplete, got %v", err)
	}

	_, err = f.elim.ProcessWithdrawal(ctx, elimination.WithdrawalRequest{
		TournamentID: tournamentID,
		EntryID:      entries[0],
		Reason:       "too late",
		Type:         "voluntary",
		ActorID:      1000,
	})
	if !errors.Is(err, appErr.ErrTournamentComplete) {
		t.Fatalf("expected ErrTournamentComplete, got %v", err)
	}

	entry := f.entry(t, entries[0])
	if entry.Status != model.EntryActive || entry.ChipCount != 20000 {
		t.Fatalf("entry must be untouched, got %+v", entry)
	}

	var state model.LiveTournamentState
	if err := f.db.Where("tournament_id = ?", tournamentID).First(&state).Error; err != nil {
		t.Fatalf("load state failed: %v", err)
	}
	if state.RemainingPlayers != 3 || state.BustedCount != 0 {
		t.Fatalf("counters must be untouched, got %+v", state)
	}

	var rows int64
	if err := f.db.Model(&model.TransactionRecord{}).
		Where("tournament_id = ?", tournamentID).
		Count(&rows).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("no ledger rows may land after completion, got %d", rows)
	}
}

func TestUnevenBountySplitResidualWithinCent(t *testing.T) {
	f := newFixture(t)
	const tournamentID = 6115
	entries := f.seedField(t, tournamentID, fieldOptions{
		players:      5,
		bountyPolicy: "fixed",
		bountyAmount: 100,
	})

	// 100 across 3 eliminators does not divide evenly.
	r := f.bust(t, tournamentID, entries[0], 2, 3, 4)
	if len(r.Bounties) != 3 {
		t.Fatalf("expected 3 bounty awards, got %d", len(r.Bounties))
	}

	var distributed float64
	for _, award := range r.Bounties {
		if math.Abs(award.CashAmount-100.0/3.0) > 0.01 {
			t.Fatalf("expected ~33.33 per eliminator, got %v", award.CashAmount)
		}
		distributed += award.CashAmount + award.CarriedAmount
	}
	if residual := math.Abs(100 - distributed); residual > 0.01 {
		t.Fatalf("split residual %v exceeds one cent", residual)
	}

	var ledgered float64
	if err := f.db.Model(&model.TransactionRecord{}).
		Select("COALESCE(SUM(amount),0)").
		Where("tournament_id = ? AND type = ?", tournamentID, ledger.TypeBountyAward).
		Scan(&ledgered).Error; err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if math.Abs(100-ledgered) > 0.01 {
		t.Fatalf("ledgered bounty cash %v drifts from the 100 pool", ledgered)
	}
}
