// Package rating is the running-average reputation store for couriers. The
// ranking step reads it; the order source writes it once per delivered order.
package rating

import (
	"context"
	"errors"
)

// DefaultAvg is the neutral score assumed for a courier that has never been
// rated.
const DefaultAvg = 3.0

// HistoryLimit bounds the per-courier audit log of individual scores. The
// log is never read by ranking.
const HistoryLimit = 100

var ErrScoreRange = errors.New("rating: score must be between 1 and 5")

type Ledger interface {
	// Get returns the courier's current average, DefaultAvg when unrated.
	Get(ctx context.Context, courierID string) (float64, error)
	// Record accumulates one score atomically and returns the new average
	// and count.
	Record(ctx context.Context, courierID, orderID string, score int) (avg float64, count int64, err error)
}
