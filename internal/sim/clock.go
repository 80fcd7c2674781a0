package sim

import (
	"context"
	"sync"
	"time"
)

// Clock paces the simulator. The wall clock drives production; tests inject
// a fake that advances instantly, keeping the event stream deterministic.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is canceled.
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func WallClock() Clock { return wallClock{} }

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FakeClock advances its notion of now on every Sleep without blocking.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock { return &FakeClock{now: start} }

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
	return nil
}
