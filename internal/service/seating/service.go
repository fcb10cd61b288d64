package seating

import (
	"context"
	"time"

	"tourney-service/internal/model"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"
	"tourney-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type SeatAssignment struct {
	TableID    int64 `json:"tableId"`
	SeatNumber int   `json:"seatNumber"`
}

type MoveRequest struct {
	PlayerID     int64 `json:"playerId"`
	ToTableID    int64 `json:"toTableId"`
	ToSeatNumber int   `json:"toSeatNumber"`
}

type MoveResult struct {
	PlayerID int64           `json:"playerId"`
	Ok       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Seat     *SeatAssignment `json:"seat,omitempty"`
}

type TableSeatMap struct {
	TableID  int64        `json:"tableId"`
	MaxSeats int          `json:"maxSeats"`
	Status   string       `json:"status"`
	Seats    []model.Seat `json:"seats"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// CreateTables opens enough tables for totalPlayers and pre-creates every
// seat row unoccupied. Called once at tournament start.
func (s *Service) CreateTables(ctx context.Context, tx *gorm.DB, tournamentID int64, totalPlayers, tableSize int) ([]model.TournamentTable, error) {
	if tableSize <= 0 {
		tableSize = 9
	}
	count := (totalPlayers + tableSize - 1) / tableSize
	if count < 1 {
		count = 1
	}

	db := s.handle(tx).WithContext(ctx)
	tables := make([]model.TournamentTable, 0, count)
	for i := 0; i < count; i++ {
		table := model.TournamentTable{
			TournamentID: tournamentID,
			MaxSeats:     tableSize,
			Status:       "active",
		}
		if err := db.Create(&table).Error; err != nil {
			return nil, err
		}
		seats := make([]model.Seat, 0, tableSize)
		for n := 1; n <= tableSize; n++ {
			seats = append(seats, model.Seat{
				TournamentID: tournamentID,
				TableID:      table.ID,
				SeatNumber:   n,
			})
		}
		if err := db.Create(&seats).Error; err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// FindOptimalSeat returns an empty seat on the active table with the fewest
// occupied seats. Ties and the seat within the table are broken uniformly at
// random; this is a greedy balance heuristic, nothing fancier.
func (s *Service) FindOptimalSeat(ctx context.Context, tx *gorm.DB, tournamentID int64) (*SeatAssignment, error) {
	db := s.handle(tx).WithContext(ctx)

	var tables []model.TournamentTable
	if err := db.Where("tournament_id = ? AND status = ?", tournamentID, "active").
		Order("id ASC").Find(&tables).Error; err != nil {
		return nil, err
	}

	best := make([]model.TournamentTable, 0, len(tables))
	bestOccupied := -1
	for _, table := range tables {
		var occupied int64
		if err := db.Model(&model.Seat{}).
			Where("table_id = ? AND player_id IS NOT NULL", table.ID).
			Count(&occupied).Error; err != nil {
			return nil, err
		}
		if int(occupied) >= table.MaxSeats {
			continue
		}
		switch {
		case bestOccupied == -1 || int(occupied) < bestOccupied:
			bestOccupied = int(occupied)
			best = best[:0]
			best = append(best, table)
		case int(occupied) == bestOccupied:
			best = append(best, table)
		}
	}
	if len(best) == 0 {
		return nil, appErr.ErrNoSeatAvailable
	}

	table := best[random.Intn(len(best))]

	var empty []model.Seat
	if err := db.Where("table_id = ? AND player_id IS NULL", table.ID).
		Find(&empty).Error; err != nil {
		return nil, err
	}
	if len(empty) == 0 {
		return nil, appErr.ErrNoSeatAvailable
	}
	seat := empty[random.Intn(len(empty))]

	return &SeatAssignment{TableID: seat.TableID, SeatNumber: seat.SeatNumber}, nil
}

// MovePlayer seats a player at the destination, vacating any seat they held
// and recording it as provenance on the new assignment.
func (s *Service) MovePlayer(ctx context.Context, tx *gorm.DB, tournamentID, playerID, toTableID int64, toSeatNumber int) (*model.Seat, error) {
	db := s.handle(tx).WithContext(ctx)

	var dest model.Seat
	err := db.Where("tournament_id = ? AND table_id = ? AND seat_number = ?",
		tournamentID, toTableID, toSeatNumber).First(&dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrSeatNotFound
		}
		return nil, err
	}
	if dest.PlayerID != nil {
		if *dest.PlayerID == playerID {
			return &dest, nil
		}
		return nil, appErr.ErrSeatOccupied
	}

	var prior *model.Seat
	var current model.Seat
	err = db.Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
		First(&current).Error
	switch err {
	case nil:
		prior = &current
	case gorm.ErrRecordNotFound:
	default:
		return nil, err
	}

	if prior != nil {
		if err := db.Model(&model.Seat{}).
			Where("id = ?", prior.ID).
			Updates(map[string]interface{}{
				"player_id":              nil,
				"assigned_at":            nil,
				"moved_from_table_id":    nil,
				"moved_from_seat_number": nil,
			}).Error; err != nil {
			return nil, err
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"player_id":   playerID,
		"assigned_at": now,
	}
	if prior != nil {
		updates["moved_from_table_id"] = prior.TableID
		updates["moved_from_seat_number"] = prior.SeatNumber
	}
	if err := db.Model(&model.Seat{}).Where("id = ?", dest.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	dest.PlayerID = &playerID
	dest.AssignedAt = &now
	if prior != nil {
		dest.MovedFromTableID = &prior.TableID
		fromSeat := prior.SeatNumber
		dest.MovedFromSeatNumber = &fromSeat
	}
	return &dest, nil
}

// UnseatPlayer vacates the player's seat if any. Returns false (not an
// error) when the player holds no seat.
func (s *Service) UnseatPlayer(ctx context.Context, tx *gorm.DB, tournamentID, playerID int64) (bool, error) {
	db := s.handle(tx).WithContext(ctx)

	result := db.Model(&model.Seat{}).
		Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
		Updates(map[string]interface{}{
			"player_id":              nil,
			"assigned_at":            nil,
			"moved_from_table_id":    nil,
			"moved_from_seat_number": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AutoSeatAll seats every currently-unseated active entry, one at a time.
// Partial failure does not abort the sweep; each player gets a result.
func (s *Service) AutoSeatAll(ctx context.Context, tx *gorm.DB, tournamentID int64) ([]MoveResult, error) {
	db := s.handle(tx).WithContext(ctx)

	var entries []model.PlayerEntry
	if err := db.Where("tournament_id = ? AND status IN ?", tournamentID,
		[]string{model.EntryActive, model.EntryPaid}).
		Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	results := make([]MoveResult, 0, len(entries))
	for _, entry := range entries {
		var seated int64
		if err := db.Model(&model.Seat{}).
			Where("tournament_id = ? AND player_id = ?", tournamentID, entry.PlayerID).
			Count(&seated).Error; err != nil {
			return nil, err
		}
		if seated > 0 {
			continue
		}

		target, err := s.FindOptimalSeat(ctx, tx, tournamentID)
		if err != nil {
			results = append(results, MoveResult{PlayerID: entry.PlayerID, Ok: false, Error: err.Error()})
			continue
		}
		if _, err := s.MovePlayer(ctx, tx, tournamentID, entry.PlayerID, target.TableID, target.SeatNumber); err != nil {
			results = append(results, MoveResult{PlayerID: entry.PlayerID, Ok: false, Error: err.Error()})
			continue
		}
		results = append(results, MoveResult{PlayerID: entry.PlayerID, Ok: true, Seat: target})
	}
	return results, nil
}

// BulkMove executes moves independently; one failed move never blocks the
// rest.
func (s *Service) BulkMove(ctx context.Context, tx *gorm.DB, tournamentID int64, moves []MoveRequest) []MoveResult {
	results := make([]MoveResult, 0, len(moves))
	for _, move := range moves {
		seat, err := s.MovePlayer(ctx, tx, tournamentID, move.PlayerID, move.ToTableID, move.ToSeatNumber)
		if err != nil {
			results = append(results, MoveResult{PlayerID: move.PlayerID, Ok: false, Error: err.Error()})
			continue
		}
		results = append(results, MoveResult{
			PlayerID: move.PlayerID,
			Ok:       true,
			Seat:     &SeatAssignment{TableID: seat.TableID, SeatNumber: seat.SeatNumber},
		})
	}
	return results
}

// SeatMap returns every table with its seats in seat-number order.
func (s *Service) SeatMap(ctx context.Context, tournamentID int64) ([]TableSeatMap, error) {
	var tables []model.TournamentTable
	if err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("id ASC").Find(&tables).Error; err != nil {
		return nil, err
	}

	out := make([]TableSeatMap, 0, len(tables))
	for _, table := range tables {
		var seats []model.Seat
		if err := s.db.WithContext(ctx).
			Where("table_id = ?", table.ID).
			Order("seat_number ASC").Find(&seats).Error; err != nil {
			return nil, err
		}
		out = append(out, TableSeatMap{
			TableID:  table.ID,
			MaxSeats: table.MaxSeats,
			Status:   table.Status,
			Seats:    seats,
		})
	}
	return out, nil
}

// CloseTableIfEmpty marks a table closed once its last seat empties, so the
// balance heuristic stops considering it.
func (s *Service) CloseTableIfEmpty(ctx context.Context, tx *gorm.DB, tableID int64) error {
	db := s.handle(tx).WithContext(ctx)

	var occupied int64
	if err := db.Model(&model.Seat{}).
		Where("table_id = ? AND player_id IS NOT NULL", tableID).
		Count(&occupied).Error; err != nil {
		return err
	}
	if occupied > 0 {
		return nil
	}
	if err := db.Model(&model.TournamentTable{}).
		Where("id = ?", tableID).
		Update("status", "closed").Error; err != nil {
		return err
	}
	logger.Log.Info("table closed", zap.Int64("tableID", tableID))
	return nil
}
