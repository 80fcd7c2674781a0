// Package sim turns an assignment into the two-leg movement of a courier:
// start -> pickup -> dropoff, rescaled so the whole trip takes exactly the
// promised ETA, reported as quarter-quantized tracking events.
package sim

import (
	"context"
	"math"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

type Config struct {
	SpeedKmh float64
	Tick     time.Duration
	Pause    time.Duration
}

type Simulator struct {
	cfg   Config
	clock Clock
}

// EmitFunc receives each tracking event in order. An error aborts the run.
type EmitFunc func(ev domain.TrackingEvent) error

func New(cfg Config, clock Clock) *Simulator {
	if cfg.SpeedKmh <= 0 {
		cfg.SpeedKmh = 20
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Simulator{cfg: cfg, clock: clock}
}

// RescaleLegs distributes the promised total over the two legs proportionally
// to their raw durations. The pause is not rescaled, so
// dur1 + pause + dur2 == promised and dur1/dur2 == raw1/raw2.
func RescaleLegs(raw1, raw2, pause, promised float64) (dur1, dur2 float64) {
	budget := promised - pause
	if budget < 0 {
		budget = 0
	}
	total := math.Max(1e-9, raw1+raw2)
	return budget * (raw1 / total), budget * (raw2 / total)
}

// Run drives both legs and returns after the terminal leg2_arrived event.
// The stream is finite and non-restartable.
func (s *Simulator) Run(ctx context.Context, orderID, courierID string,
	start, pickup, dropoff geo.Point, promised time.Duration, emit EmitFunc) error {

	speed := math.Max(1e-6, s.cfg.SpeedKmh)
	raw1 := geo.Haversine(start, pickup) / speed * 3600
	raw2 := geo.Haversine(pickup, dropoff) / speed * 3600
	dur1s, dur2s := RescaleLegs(raw1, raw2, s.cfg.Pause.Seconds(), promised.Seconds())
	dur1 := time.Duration(dur1s * float64(time.Second))
	dur2 := time.Duration(dur2s * float64(time.Second))

	if err := s.leg(ctx, orderID, courierID, domain.StatusLeg1, start, pickup, dur1, promised, emit); err != nil {
		return err
	}
	if err := s.clock.Sleep(ctx, s.cfg.Pause); err != nil {
		return err
	}
	remaining := promised - dur1 - s.cfg.Pause
	if remaining < 0 {
		remaining = 0
	}
	return s.leg(ctx, orderID, courierID, domain.StatusLeg2, pickup, dropoff, dur2, remaining, emit)
}

// leg interpolates from -> to over dur, emitting an event whenever the
// quantized quarter advances, then always a terminal "_arrived" event at
// 100%. The 0% quarter is suppressed: each leg reports 25/50/75/100.
func (s *Simulator) leg(ctx context.Context, orderID, courierID, status string,
	from, to geo.Point, dur, globalRemain time.Duration, emit EmitFunc) error {

	steps := int(dur / s.cfg.Tick)
	if steps < 5 {
		steps = 5
	}
	t0 := s.clock.Now()
	lastQuarter := 0

	for step := 0; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := float64(step) / float64(steps)
		quarter := quantize(t)
		if quarter != lastQuarter {
			lastQuarter = quarter
			pos := geo.Lerp(from, to, t)
			elapsed := s.clock.Now().Sub(t0)
			if err := emit(s.event(orderID, courierID, status, pos, quarter, dur-elapsed, globalRemain-elapsed)); err != nil {
				return err
			}
		}
		if err := s.clock.Sleep(ctx, s.cfg.Tick); err != nil {
			return err
		}
	}

	return emit(s.event(orderID, courierID, status+"_arrived", to, 100, 0, globalRemain-dur))
}

func (s *Simulator) event(orderID, courierID, status string, pos geo.Point,
	progress int, localEta, globalEta time.Duration) domain.TrackingEvent {

	return domain.TrackingEvent{
		Type:       domain.TypeTrack,
		OrderID:    orderID,
		CourierID:  courierID,
		Status:     status,
		Lat:        pos.Lat,
		Lon:        pos.Lon,
		Progress:   progress,
		EtaS:       clampSeconds(localEta),
		GlobalEtaS: clampSeconds(globalEta),
		SentAt:     s.clock.Now().Unix(),
	}
}

func quantize(t float64) int {
	pct := int(math.Round(t * 100))
	quarter := pct / 25 * 25
	if quarter > 100 {
		quarter = 100
	}
	return quarter
}

func clampSeconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
