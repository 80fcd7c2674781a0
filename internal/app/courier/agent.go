// Package courier runs a courier agent: listen for offers, bid, wait for
// selection, and on a win drive the movement simulator. One order at a time.
package courier

import (
	"context"
	"time"

	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/decision"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/sim"
)

type Config struct {
	Name             string
	Start            geo.Point
	SelectionTimeout time.Duration
	PollInterval     time.Duration
}

type Agent struct {
	bus    bus.Bus
	decide decision.OfferDecider
	sim    *sim.Simulator
	cfg    Config
	lg     *logger.Logger

	pos geo.Point
}

func NewAgent(b bus.Bus, decide decision.OfferDecider, simulator *sim.Simulator,
	cfg Config, lg *logger.Logger) *Agent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.SelectionTimeout <= 0 {
		cfg.SelectionTimeout = 120 * time.Second
	}
	return &Agent{bus: b, decide: decide, sim: simulator, cfg: cfg, lg: lg, pos: cfg.Start}
}

// Position returns the courier's current simulated position.
func (a *Agent) Position() geo.Point { return a.pos }

// Run listens on the shared offers topic until ctx is canceled. While a
// delivery is executing no new offer is read.
func (a *Agent) Run(ctx context.Context) error {
	sub, err := a.bus.Subscribe(ctx, bus.TopicOffers)
	if err != nil {
		return err
	}
	defer sub.Close()

	a.lg.Info("courier_online", map[string]any{
		"courier_id": a.cfg.Name, "lat": a.pos.Lat, "lon": a.pos.Lon,
	})

	for {
		msg, err := sub.Poll(ctx, a.cfg.PollInterval)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}
		offer, err := domain.DecodeOffer(msg.Body)
		if err != nil {
			a.lg.Debug("offer_discarded", map[string]any{"reason": err.Error()})
			continue
		}
		if err := a.handleOffer(ctx, offer); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.lg.Error("offer_handling_failed", err, map[string]any{"order_id": offer.OrderID})
		}
	}
}

func (a *Agent) handleOffer(ctx context.Context, offer domain.Offer) error {
	if !a.decide.AcceptOffer(offer.OrderID, offer.Restaurant.Name) {
		a.lg.Info("offer_declined", map[string]any{
			"courier_id": a.cfg.Name, "order_id": offer.OrderID,
		})
		return nil
	}

	// Wait on the assignment topic before bidding so the selection cannot
	// slip past between publish and subscribe.
	asub, err := a.bus.Subscribe(ctx, bus.AssignmentsTopic(offer.OrderID))
	if err != nil {
		return err
	}
	defer asub.Close()

	bid := domain.Bid{
		Type:      domain.TypeCandidature,
		OrderID:   offer.OrderID,
		CourierID: a.cfg.Name,
		Position:  domain.FromPoint(a.pos),
		SentAt:    time.Now().Unix(),
	}
	if err := a.bus.Publish(ctx, bus.CandidatesTopic(offer.OrderID), domain.Encode(bid)); err != nil {
		return err
	}
	a.lg.Info("bid_sent", map[string]any{"courier_id": a.cfg.Name, "order_id": offer.OrderID})

	assignment, ok, err := a.awaitSelection(ctx, asub, offer.OrderID)
	if err != nil {
		return err
	}
	if !ok {
		// Lost silently: either another courier won or the window expired.
		a.lg.Info("selection_timeout", map[string]any{
			"courier_id": a.cfg.Name, "order_id": offer.OrderID,
		})
		return nil
	}
	return a.execute(ctx, assignment)
}

func (a *Agent) awaitSelection(ctx context.Context, sub bus.Subscription, orderID string) (domain.Assignment, bool, error) {
	deadline := time.Now().Add(a.cfg.SelectionTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return domain.Assignment{}, false, nil
		}
		poll := a.cfg.PollInterval
		if remaining < poll {
			poll = remaining
		}
		msg, err := sub.Poll(ctx, poll)
		if err != nil {
			return domain.Assignment{}, false, err
		}
		if msg == nil {
			continue
		}
		assignment, err := domain.DecodeAssignment(msg.Body)
		if err != nil {
			continue
		}
		if assignment.OrderID != orderID || assignment.CourierID != a.cfg.Name {
			continue
		}
		return assignment, true, nil
	}
}

func (a *Agent) execute(ctx context.Context, assignment domain.Assignment) error {
	a.lg.Info("delivery_started", map[string]any{
		"courier_id": a.cfg.Name, "order_id": assignment.OrderID, "eta_min": assignment.EtaMin,
	})

	promised := time.Duration(assignment.EtaMin) * time.Minute
	if promised < 5*time.Second {
		promised = 5 * time.Second
	}
	topic := bus.TrackingTopic(assignment.OrderID)
	emit := func(ev domain.TrackingEvent) error {
		return a.bus.Publish(ctx, topic, domain.Encode(ev))
	}

	err := a.sim.Run(ctx, assignment.OrderID, a.cfg.Name,
		a.pos, assignment.Pickup.Point(), assignment.Dropoff.Point(), promised, emit)
	if err != nil {
		return err
	}
	a.pos = assignment.Dropoff.Point()
	a.lg.Info("delivery_finished", map[string]any{
		"courier_id": a.cfg.Name, "order_id": assignment.OrderID,
	})
	return nil
}
