package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourney-service/internal/model"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/utils/random"

	"gorm.io/gorm"
)

// Transaction types accepted by Append. The set is closed: anything else is
// rejected before a row is written.
const (
	TypeBustOut            = "bust_out"
	TypeRebuy              = "rebuy"
	TypeAddOn              = "add_on"
	TypeChipAdjustment     = "chip_adjustment"
	TypeLateRegistration   = "late_registration"
	TypeBountyAward        = "bounty_award"
	TypeWithdrawal         = "withdrawal"
	TypeWinnerAnnouncement = "winner_announcement"
)

var knownTypes = map[string]struct{}{
	TypeBustOut:            {},
	TypeRebuy:              {},
	TypeAddOn:              {},
	TypeChipAdjustment:     {},
	TypeLateRegistration:   {},
	TypeBountyAward:        {},
	TypeWithdrawal:         {},
	TypeWinnerAnnouncement: {},
}

type Service struct {
	db *gorm.DB
}

type AppendRequest struct {
	TournamentID int64
	PlayerID     int64
	Type         string
	Amount       float64
	ChipsDelta   int64
	Reason       string
	ActorID      int64
}

type QueryFilters struct {
	PlayerID *int64
	Types    []string
	Page     int
	PageSize int
	Desc     bool
}

type QueryResult struct {
	Total int64                     `json:"total"`
	Items []model.TransactionRecord `json:"items"`
}

type TypeSummary struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Amount     float64 `json:"amount"`
	ChipsDelta int64   `json:"chipsDelta"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Append validates and writes one immutable ledger row, returning the
// assigned transaction ID. The caller's gorm handle is used so the append
// joins any surrounding transaction: if the caller rolls back, so does the
// row. Pass nil to write against the service's own connection.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, req AppendRequest) (int64, error) {
	if tx == nil {
		tx = s.db
	}
	if req.TournamentID == 0 {
		return 0, fmt.Errorf("%w: tournament id required", appErr.ErrInvalidOperation)
	}
	if _, ok := knownTypes[req.Type]; !ok {
		return 0, fmt.Errorf("%w: %q", appErr.ErrInvalidTxnType, req.Type)
	}
	if req.Type == TypeChipAdjustment && strings.TrimSpace(req.Reason) == "" {
		return 0, appErr.ErrMissingReason
	}
	if req.ActorID == 0 {
		return 0, appErr.ErrUnauthenticated
	}

	record := model.TransactionRecord{
		TournamentID: req.TournamentID,
		PlayerID:     req.PlayerID,
		Type:         req.Type,
		Amount:       req.Amount,
		ChipsDelta:   req.ChipsDelta,
		Reason:       req.Reason,
		ActorID:      req.ActorID,
		RefCode:      random.Code(8),
		CreatedAt:    time.Now(),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", appErr.ErrAuditAppend, err)
	}
	return record.ID, nil
}

// Query is read-only; it never touches ledger rows.
func (s *Service) Query(ctx context.Context, tournamentID int64, filters QueryFilters) (*QueryResult, error) {
	q := s.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Where("tournament_id = ?", tournamentID)

	if filters.PlayerID != nil {
		q = q.Where("player_id = ?", *filters.PlayerID)
	}
	if len(filters.Types) > 0 {
		q = q.Where("type IN ?", filters.Types)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	order := "id ASC"
	if filters.Desc {
		order = "id DESC"
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var items []model.TransactionRecord
	if err := q.Order(order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &QueryResult{Total: total, Items: items}, nil
}

// Summary returns per-type counts and sums for one tournament.
func (s *Service) Summary(ctx context.Context, tournamentID int64) ([]TypeSummary, error) {
	var rows []TypeSummary
	err := s.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Select("type, COUNT(*) AS count, COALESCE(SUM(amount),0) AS amount, COALESCE(SUM(chips_delta),0) AS chips_delta").
		Where("tournament_id = ?", tournamentID).
		Group("type").
		Order("type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumAmounts totals the money-moving row types, used for prize pool
// reconciliation against the incrementally maintained counter.
func (s *Service) SumAmounts(ctx context.Context, tournamentID int64, types []string) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&model.TransactionRecord{}).
		Select("COALESCE(SUM(amount),0)").
		Where("tournament_id = ? AND type IN ?", tournamentID, types).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
