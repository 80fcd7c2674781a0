package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/sim"
)

func TestRescaleLegs(t *testing.T) {
	// s = 60/40 = 1.5 over the pause-free budget.
	d1, d2 := sim.RescaleLegs(10, 30, 0, 60)
	assert.InDelta(t, 15, d1, 1e-9)
	assert.InDelta(t, 45, d2, 1e-9)

	// The pause is excluded from the budget and never rescaled.
	d1, d2 = sim.RescaleLegs(10, 30, 2, 62)
	assert.InDelta(t, 15, d1, 1e-9)
	assert.InDelta(t, 45, d2, 1e-9)
	assert.InDelta(t, 62, d1+2+d2, 1e-9)
	assert.InDelta(t, 10.0/30.0, d1/d2, 1e-9)

	// Equal raw legs split the budget evenly: (100-2)/2 = 49 each.
	d1, d2 = sim.RescaleLegs(20015, 20015, 2, 100)
	assert.InDelta(t, 49, d1, 1e-9)
	assert.InDelta(t, 49, d2, 1e-9)
}

func runEqualLegs(t *testing.T) []domain.TrackingEvent {
	t.Helper()
	clock := sim.NewFakeClock(time.Unix(1_700_000_000, 0))
	s := sim.New(sim.Config{SpeedKmh: 20, Tick: time.Second, Pause: 2 * time.Second}, clock)

	var events []domain.TrackingEvent
	err := s.Run(context.Background(), "o1", "alex",
		geo.Point{Lat: 0, Lon: 0}, geo.Point{Lat: 0, Lon: 1}, geo.Point{Lat: 0, Lon: 2},
		100*time.Second,
		func(ev domain.TrackingEvent) error {
			events = append(events, ev)
			return nil
		})
	require.NoError(t, err)
	return events
}

func TestRunEmitsQuarterQuantizedLegs(t *testing.T) {
	events := runEqualLegs(t)
	require.Len(t, events, 10)

	wantStatus := []string{
		domain.StatusLeg1, domain.StatusLeg1, domain.StatusLeg1, domain.StatusLeg1,
		domain.StatusLeg1Arrived,
		domain.StatusLeg2, domain.StatusLeg2, domain.StatusLeg2, domain.StatusLeg2,
		domain.StatusLeg2Arrived,
	}
	wantProgress := []int{25, 50, 75, 100, 100, 25, 50, 75, 100, 100}
	for i, ev := range events {
		assert.Equal(t, wantStatus[i], ev.Status, "event %d", i)
		assert.Equal(t, wantProgress[i], ev.Progress, "event %d", i)
		assert.Equal(t, "o1", ev.OrderID)
		assert.Equal(t, "alex", ev.CourierID)
	}
}

func TestRunProgressInvariants(t *testing.T) {
	events := runEqualLegs(t)

	last := map[string]int{}
	for _, ev := range events {
		phase := domain.Phase(ev.Status)
		assert.Zero(t, ev.Progress%25, "progress must be a multiple of 25")
		assert.GreaterOrEqual(t, ev.Progress, last[phase], "progress must not regress within a leg")
		last[phase] = ev.Progress
	}
	assert.Equal(t, 100, last[domain.StatusLeg1])
	assert.Equal(t, 100, last[domain.StatusLeg2])
}

func TestRunEtas(t *testing.T) {
	events := runEqualLegs(t)

	// Both legs last 49s with a 1s tick; the 25% quarter lands on step 13.
	first := events[0]
	assert.Equal(t, 36, first.EtaS)
	assert.Equal(t, 87, first.GlobalEtaS)

	leg1Arrived := events[4]
	assert.Equal(t, 0, leg1Arrived.EtaS)
	assert.Equal(t, 51, leg1Arrived.GlobalEtaS)

	terminal := events[len(events)-1]
	assert.Equal(t, domain.StatusLeg2Arrived, terminal.Status)
	assert.Equal(t, 0, terminal.EtaS)
	assert.Equal(t, 0, terminal.GlobalEtaS)
	assert.InDelta(t, 2.0, terminal.Lon, 1e-9, "terminal event is at the dropoff")
}

func TestRunInterpolatesPositions(t *testing.T) {
	events := runEqualLegs(t)

	// 25% of leg1 at step 13/49.
	assert.InDelta(t, 13.0/49.0, events[0].Lon, 1e-9)
	// Leg2 starts from the pickup at lon 1.
	assert.InDelta(t, 1+13.0/49.0, events[5].Lon, 1e-9)
}

func TestRunShortLegStillHasFiveSteps(t *testing.T) {
	clock := sim.NewFakeClock(time.Unix(0, 0))
	s := sim.New(sim.Config{SpeedKmh: 20, Tick: time.Second, Pause: time.Second}, clock)

	var events []domain.TrackingEvent
	err := s.Run(context.Background(), "o1", "c",
		geo.Point{}, geo.Point{Lat: 0, Lon: 0.001}, geo.Point{Lat: 0, Lon: 0.002},
		5*time.Second,
		func(ev domain.TrackingEvent) error {
			events = append(events, ev)
			return nil
		})
	require.NoError(t, err)

	// Quantization still walks 25/50/75/100 per leg.
	require.Len(t, events, 10)
	assert.Equal(t, 25, events[0].Progress)
	assert.Equal(t, domain.StatusLeg2Arrived, events[len(events)-1].Status)
}

func TestRunCanceled(t *testing.T) {
	clock := sim.NewFakeClock(time.Unix(0, 0))
	s := sim.New(sim.Config{SpeedKmh: 20, Tick: time.Second, Pause: time.Second}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, "o1", "c",
		geo.Point{}, geo.Point{Lat: 0, Lon: 1}, geo.Point{Lat: 0, Lon: 2},
		time.Minute, func(domain.TrackingEvent) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
