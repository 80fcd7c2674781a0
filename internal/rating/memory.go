package rating

import (
	"context"
	"sync"
)

// MemoryLedger keeps ratings in process memory. Used by tests and by
// deployments without a Redis rating store.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

type memoryRecord struct {
	sum   int64
	count int64
}

func NewMemory() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]*memoryRecord)}
}

func (m *MemoryLedger) Get(_ context.Context, courierID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[courierID]
	if !ok || rec.count == 0 {
		return DefaultAvg, nil
	}
	return float64(rec.sum) / float64(rec.count), nil
}

func (m *MemoryLedger) Record(_ context.Context, courierID, _ string, score int) (float64, int64, error) {
	if score < 1 || score > 5 {
		return 0, 0, ErrScoreRange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[courierID]
	if !ok {
		rec = &memoryRecord{}
		m.records[courierID] = rec
	}
	rec.sum += int64(score)
	rec.count++
	return float64(rec.sum) / float64(rec.count), rec.count, nil
}
