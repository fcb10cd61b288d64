package engine

import (
	"sync"

	"tourney-service/pkg/logger"

	"go.uber.org/zap"
)

// tournamentRuntime is the serialization boundary for one tournament: its
// mutex admits at most one in-flight mutation, and its subscriber channels
// receive every committed StateChange in commit order. The lock is held for
// the duration of a single operation and never across operations.
type tournamentRuntime struct {
	tournamentID int64

	mu  sync.Mutex
	seq int64

	subMu       sync.Mutex
	subscribers map[int64]chan StateChange
	nextSubID   int64
	bufferSize  int
}

func newTournamentRuntime(tournamentID int64, bufferSize int) *tournamentRuntime {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &tournamentRuntime{
		tournamentID: tournamentID,
		subscribers:  make(map[int64]chan StateChange),
		bufferSize:   bufferSize,
	}
}

func (rt *tournamentRuntime) nextSeq() int64 {
	rt.seq++
	return rt.seq
}

func (rt *tournamentRuntime) subscribe() (int64, <-chan StateChange) {
	rt.subMu.Lock()
	defer rt.subMu.Unlock()

	rt.nextSubID++
	id := rt.nextSubID
	ch := make(chan StateChange, rt.bufferSize)
	rt.subscribers[id] = ch
	return id, ch
}

func (rt *tournamentRuntime) unsubscribe(id int64) {
	rt.subMu.Lock()
	defer rt.subMu.Unlock()

	if ch, ok := rt.subscribers[id]; ok {
		delete(rt.subscribers, id)
		close(ch)
	}
}

func (rt *tournamentRuntime) emit(evt StateChange) {
	rt.subMu.Lock()
	defer rt.subMu.Unlock()

	for id, ch := range rt.subscribers {
		select {
		case ch <- evt:
		default:
			logger.Log.Warn("event subscriber channel full",
				zap.Int64("tournamentID", rt.tournamentID),
				zap.Int64("subscriberID", id),
				zap.String("operation", evt.Operation),
			)
		}
	}
}
