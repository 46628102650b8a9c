package queue

import (
	"math"
	"time"

	"github.com/mbellis/driftq/internal/models"
)

// Store owns the durable representation of the pending-operation queue.
// Slice order is replay order; Save replaces the whole persisted queue.
//
// The sync engine is the only writer, so implementations need atomic
// replacement but no cross-process locking.
type Store interface {
	// Load reads the persisted queue. A missing backing file yields an
	// empty queue; an unreadable or corrupt one is logged and likewise
	// yields an empty queue rather than an error, so the application can
	// always start.
	Load() ([]*models.Operation, error)

	// Save atomically replaces the persisted queue. A crash mid-save must
	// leave either the old or the new content, never a truncated mix.
	Save(ops []*models.Operation) error

	// Close releases resources.
	Close() error
}

// CurrentSchemaVersion for persisted queue envelopes.
const CurrentSchemaVersion = 1

// timeToSeconds and secondsToTime convert between time.Time and the numeric
// seconds-since-epoch wire form shared by all backends.
func timeToSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func secondsToTime(seconds float64) time.Time {
	return time.UnixMilli(int64(math.Round(seconds * 1000))).UTC()
}
