package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tourney-service/internal/model"
	"tourney-service/internal/service/ledger"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*gorm.DB, *ledger.Service) {
	t.Helper()

	logger.Log = zap.NewNop()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.TransactionRecord{}); err != nil {
		t.Fatalf("failed to migrate transaction records: %v", err)
	}
	return db, ledger.NewService(db)
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	_, svc := newService(t)

	const tournamentID = 8101
	var last int64
	for i := 0; i < 5; i++ {
		id, err := svc.Append(ctx, nil, ledger.AppendRequest{
			TournamentID: tournamentID,
			PlayerID:     int64(100 + i),
			Type:         ledger.TypeRebuy,
			Amount:       50,
			ChipsDelta:   10000,
			Reason:       "rebuy",
			ActorID:      1,
		})
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		if id <= last {
			t.Fatalf("expected monotonic ids, got %d after %d", id, last)
		}
		last = id
	}

	result, err := svc.Query(ctx, tournamentID, ledger.QueryFilters{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Total != 5 {
		t.Fatalf("expected 5 rows, got %d", result.Total)
	}
	for i := 1; i < len(result.Items); i++ {
		if result.Items[i].ID <= result.Items[i-1].ID {
			t.Fatalf("expected ascending id order")
		}
	}
}

func TestAppendRejectsUnknownType(t *testing.T) {
	_, svc := newService(t)

	_, err := svc.Append(context.Background(), nil, ledger.AppendRequest{
		TournamentID: 8102,
		Type:         "cash_game_rake",
		ActorID:      1,
	})
	if !errors.Is(err, appErr.ErrInvalidTxnType) {
		t.Fatalf("expected ErrInvalidTxnType, got %v", err)
	}
}

func TestAppendChipAdjustmentRequiresReason(t *testing.T) {
	_, svc := newService(t)

	_, err := svc.Append(context.Background(), nil, ledger.AppendRequest{
		TournamentID: 8103,
		Type:         ledger.TypeChipAdjustment,
		ChipsDelta:   500,
		Reason:       "   ",
		ActorID:      1,
	})
	if !errors.Is(err, appErr.ErrMissingReason) {
		t.Fatalf("expected ErrMissingReason, got %v", err)
	}
}

func TestAppendRequiresActor(t *testing.T) {
	_, svc := newService(t)

	_, err := svc.Append(context.Background(), nil, ledger.AppendRequest{
		TournamentID: 8104,
		Type:         ledger.TypeRebuy,
		Reason:       "rebuy",
	})
	if !errors.Is(err, appErr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAppendJoinsCallerTransaction(t *testing.T) {
	ctx := context.Background()
	db, svc := newService(t)

	const tournamentID = 8105
	sentinel := fmt.Errorf("force rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Append(ctx, tx, ledger.AppendRequest{
			TournamentID: tournamentID,
			Type:         ledger.TypeBustOut,
			ChipsDelta:   -20000,
			Reason:       "bust out",
			ActorID:      1,
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	var count int64
	if err := db.Model(&model.TransactionRecord{}).
		Where("tournament_id = ?", tournamentID).
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to discard ledger row, got %d rows", count)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	_, svc := newService(t)

	const tournamentID = 8106
	appendRow := func(playerID int64, rowType string) {
		t.Helper()
		if _, err := svc.Append(ctx, nil, ledger.AppendRequest{
			TournamentID: tournamentID,
			PlayerID:     playerID,
			Type:         rowType,
			Reason:       "seed",
			ActorID:      1,
		}); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}
	appendRow(1, ledger.TypeRebuy)
	appendRow(1, ledger.TypeAddOn)
	appendRow(2, ledger.TypeRebuy)

	playerID := int64(1)
	result, err := svc.Query(ctx, tournamentID, ledger.QueryFilters{
		PlayerID: &playerID,
		Types:    []string{ledger.TypeRebuy},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected 1 filtered row, got %d", result.Total)
	}

	desc, err := svc.Query(ctx, tournamentID, ledger.QueryFilters{Desc: true})
	if err != nil {
		t.Fatalf("desc query failed: %v", err)
	}
	if len(desc.Items) < 2 || desc.Items[0].ID < desc.Items[1].ID {
		t.Fatalf("expected descending order")
	}
}

func TestSummaryAndSumAmounts(t *testing.T) {
	ctx := context.Background()
	_, svc := newService(t)

	const tournamentID = 8107
	rows := []ledger.AppendRequest{
		{TournamentID: tournamentID, PlayerID: 1, Type: ledger.TypeRebuy, Amount: 50, ChipsDelta: 10000, Reason: "rebuy", ActorID: 1},
		{TournamentID: tournamentID, PlayerID: 2, Type: ledger.TypeRebuy, Amount: 50, ChipsDelta: 10000, Reason: "rebuy", ActorID: 1},
		{TournamentID: tournamentID, PlayerID: 3, Type: ledger.TypeAddOn, Amount: 30, ChipsDelta: 5000, Reason: "add-on", ActorID: 1},
	}
	for _, row := range rows {
		if _, err := svc.Append(ctx, nil, row); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}

	summary, err := svc.Summary(ctx, tournamentID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	byType := map[string]ledger.TypeSummary{}
	for _, row := range summary {
		byType[row.Type] = row
	}
	if byType[ledger.TypeRebuy].Count != 2 || byType[ledger.TypeRebuy].Amount != 100 {
		t.Fatalf("unexpected rebuy summary: %+v", byType[ledger.TypeRebuy])
	}
	if byType[ledger.TypeAddOn].ChipsDelta != 5000 {
		t.Fatalf("unexpected add-on summary: %+v", byType[ledger.TypeAddOn])
	}

	total, err := svc.SumAmounts(ctx, tournamentID, []string{ledger.TypeRebuy, ledger.TypeAddOn})
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if total != 130 {
		t.Fatalf("expected 130, got %v", total)
	}
}
