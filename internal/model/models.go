package model

import (
	"time"

	"gorm.io/datatypes"
)

// Tournament status values driven by the clock state machine.
const (
	TournamentPending   = "pending"
	TournamentRunning   = "running"
	TournamentPaused    = "paused"
	TournamentBreak     = "break"
	TournamentCompleted = "completed"
)

// Player entry status values.
const (
	EntryActive     = "active"
	EntryPaid       = "paid"
	EntryEliminated = "eliminated"
	EntryWithdrawn  = "withdrawn"
)

// Director & Auth

type Director struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Template & Schedule

type TournamentTemplate struct {
	ID                int64 `gorm:"primaryKey;autoIncrement"`
	Name              string
	BuyIn             float64
	StartingChips     int64
	TableSize         int `gorm:"default:9"`
	AllowReentry      bool
	ReentryUntilLevel int
	LateRegUntilLevel int
	AllowRebuys       bool
	MaxRebuys         int
	RebuyAmount       float64
	RebuyChips        int64
	AddonAmount       float64
	AddonChips        int64
	AddonUntilLevel   int
	BountyPolicy      string         `gorm:"default:none"` // none/fixed/pko
	BountyAmount      float64        // starting bounty per entry
	PKOCashShare      float64        // fraction of a won bounty paid out as cash
	LevelsJSON        datatypes.JSON `gorm:"type:jsonb"` // []template.BlindLevel
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Live State

type LiveTournamentState struct {
	TournamentID         int64  `gorm:"primaryKey"`
	TemplateID           int64  `gorm:"not null"`
	Status               string `gorm:"default:pending;not null"`
	CurrentLevel         int    `gorm:"default:1"`
	TimeRemainingSeconds int
	TotalPlayers         int
	RemainingPlayers     int
	BustedCount          int
	TotalRebuys          int
	TotalAddons          int
	PrizePool            float64
	IsPractice           bool
	StartedAt            *time.Time
	PausedAt             *time.Time
	CompletedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type PlayerEntry struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	TournamentID      int64  `gorm:"index;not null"`
	PlayerID          int64  `gorm:"index;not null"`
	Status            string `gorm:"default:active;not null"`
	ChipCount         int64
	FinishPosition    *int
	BustoutAt         *time.Time
	EliminationReason string
	EliminatedByJSON  datatypes.JSON `gorm:"type:jsonb"` // ordered []int64 of eliminator player IDs
	BountyAmount      float64        // bounty currently on this entry's head
	BountiesEarned    float64
	BountyCount       int
	WithdrawalStatus  string // voluntary/declined_reentry, empty while in play
	RebuysCount       int
	AddonsCount       int
	PaidAmount        float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Seating

type TournamentTable struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	TournamentID int64 `gorm:"index;not null"`
	MaxSeats     int
	Status       string `gorm:"default:active"` // active/closed
	CreatedAt    time.Time
}

type Seat struct {
	ID                  int64 `gorm:"primaryKey;autoIncrement"`
	TournamentID        int64 `gorm:"index;not null"`
	TableID             int64 `gorm:"uniqueIndex:uniq_table_seat;not null"`
	SeatNumber          int   `gorm:"uniqueIndex:uniq_table_seat;not null"`
	PlayerID            *int64
	AssignedAt          *time.Time
	MovedFromTableID    *int64
	MovedFromSeatNumber *int
}

// Audit Ledger
//
// Append-only: rows are created once and never updated or deleted.

type TransactionRecord struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	TournamentID int64  `gorm:"index;not null"`
	PlayerID     int64  `gorm:"index"`
	Type         string `gorm:"not null"` // bust_out/rebuy/add_on/chip_adjustment/late_registration/bounty_award/withdrawal/winner_announcement
	Amount       float64
	ChipsDelta   int64
	Reason       string
	ActorID      int64 `gorm:"not null"`
	RefCode      string
	CreatedAt    time.Time
}
