// Package track is the order-source side of live tracking: it follows the
// per-order topic, suppresses duplicate progress reports, and detects the
// terminal delivery event.
package track

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/domain"
)

// ErrTrackTimeout means the stream went silent past the overall bound, e.g.
// a courier that won and never moved.
var ErrTrackTimeout = errors.New("track: no terminal event within bound")

// RenderFunc receives each deduplicated event. phaseChanged marks the first
// event of a new leg.
type RenderFunc func(ev domain.TrackingEvent, phaseChanged bool)

type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Follow consumes the order's tracking topic until the terminal
// leg2_arrived event and returns the delivering courier's id.
func Follow(ctx context.Context, b bus.Bus, orderID string, cfg Config,
	render RenderFunc, lg *logger.Logger) (string, error) {

	sub, err := b.Subscribe(ctx, bus.TrackingTopic(orderID))
	if err != nil {
		return "", err
	}
	defer sub.Close()

	deadline := time.Now().Add(cfg.Timeout)
	lastPhase := ""
	lastPct := -1

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTrackTimeout
		}
		poll := cfg.PollInterval
		if remaining < poll {
			poll = remaining
		}
		msg, err := sub.Poll(ctx, poll)
		if err != nil {
			return "", err
		}
		if msg == nil {
			continue
		}
		ev, err := domain.DecodeTracking(msg.Body)
		if err != nil || ev.OrderID != orderID {
			continue
		}

		// Terminal first: delivery beats the duplicate filter.
		if ev.Status == domain.StatusLeg2Arrived {
			render(ev, false)
			lg.Info("delivery_completed", map[string]any{
				"order_id": orderID, "courier_id": ev.CourierID,
			})
			return ev.CourierID, nil
		}

		phase := domain.Phase(ev.Status)
		phaseChanged := false
		if phase != "" && phase != lastPhase {
			lastPhase = phase
			lastPct = -1
			phaseChanged = true
		}
		if ev.Progress == lastPct {
			continue
		}
		lastPct = ev.Progress
		render(ev, phaseChanged)
	}
}
