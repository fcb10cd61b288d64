package errors

import "errors"

// Not found
var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrEntryNotFound      = errors.New("player entry not found")
	ErrTableNotFound      = errors.New("table not found")
	ErrSeatNotFound       = errors.New("seat not found")
)

// Invalid state
var (
	ErrAlreadyStarted     = errors.New("tournament already started")
	ErrNotRunning         = errors.New("tournament clock is not running")
	ErrNotPaused          = errors.New("tournament clock is not paused")
	ErrNotOnBreak         = errors.New("tournament is not on break")
	ErrTournamentComplete = errors.New("tournament already completed")
	ErrAlreadyEliminated  = errors.New("entry already eliminated")
	ErrAlreadyWithdrawn   = errors.New("entry already withdrawn")
)

// Validation
var (
	ErrMissingReason    = errors.New("adjustment reason is required")
	ErrZeroAdjustment   = errors.New("chip adjustment delta must be non-zero")
	ErrNegativeChips    = errors.New("resulting chip count would be negative")
	ErrInvalidTxnType   = errors.New("unknown transaction type")
	ErrRebuyNotAllowed  = errors.New("rebuy not allowed")
	ErrAddonNotAllowed  = errors.New("add-on not allowed")
	ErrLateRegClosed    = errors.New("late registration window closed")
	ErrInvalidOperation = errors.New("invalid operation payload")
)

// Seating
var (
	ErrNoSeatAvailable = errors.New("no seat available")
	ErrSeatOccupied    = errors.New("destination seat occupied")
)

// Audit / auth
var (
	ErrAuditAppend      = errors.New("audit ledger append failed")
	ErrUnauthenticated  = errors.New("no authenticated actor")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrDirectorNotFound = errors.New("director not found")
	ErrDirectorDisabled = errors.New("director account disabled")
	ErrInvalidPassword  = errors.New("invalid username or password")
)
