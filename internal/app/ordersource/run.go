// Package ordersource is the client actor: place one order, wait for the
// assignment, follow the delivery, then rate the courier.
package ordersource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/config"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/decision"
	"courier-dispatch/internal/directory"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/rating"
	"courier-dispatch/internal/track"
)

// Decider groups the choices the order source needs from its operator.
type Decider interface {
	decision.OrderPlacer
	decision.Rater
}

func Run(ctx context.Context, b bus.Bus, dir directory.Directory, ledger rating.Ledger,
	decide Decider, cfg config.OrderSourceConfig, lg *logger.Logger) error {

	order, err := buildOrder(ctx, dir, decide, cfg)
	if err != nil {
		return err
	}

	// Subscribe before publishing so the assignment cannot be missed.
	asub, err := b.Subscribe(ctx, bus.AssignmentsTopic(order.OrderID))
	if err != nil {
		return err
	}
	defer asub.Close()

	if err := b.Publish(ctx, bus.TopicOrders, domain.Encode(order)); err != nil {
		return err
	}
	lg.Info("order_published", map[string]any{
		"order_id": order.OrderID, "restaurant": order.Restaurant.Name,
	})

	assignment, ok, err := awaitAssignment(ctx, asub, order.OrderID, cfg)
	if err != nil {
		return err
	}
	if !ok {
		lg.Warn("order_unmatched", map[string]any{"order_id": order.OrderID})
		return nil
	}
	lg.Info("courier_assigned", map[string]any{
		"order_id": order.OrderID, "courier_id": assignment.CourierID, "eta_min": assignment.EtaMin,
	})

	courierID, err := track.Follow(ctx, b, order.OrderID,
		track.Config{PollInterval: cfg.PollInterval, Timeout: cfg.TrackTimeout},
		func(ev domain.TrackingEvent, phaseChanged bool) {
			fields := map[string]any{
				"order_id": ev.OrderID, "status": ev.Status, "progress": ev.Progress,
				"lat": ev.Lat, "lon": ev.Lon, "eta_min_remaining": ev.GlobalEtaS / 60,
			}
			if phaseChanged {
				fields["phase_started"] = domain.Phase(ev.Status)
			}
			lg.Info("tracking_update", fields)
		}, lg)
	if err != nil {
		if errors.Is(err, track.ErrTrackTimeout) {
			lg.Warn("tracking_silent", map[string]any{"order_id": order.OrderID})
			return nil
		}
		return err
	}

	score := decide.RateCourier(courierID)
	avg, count, err := ledger.Record(ctx, courierID, order.OrderID, score)
	if err != nil {
		return fmt.Errorf("record rating: %w", err)
	}
	lg.Info("courier_rated", map[string]any{
		"courier_id": courierID, "score": score, "avg": avg, "count": count,
	})
	return nil
}

func buildOrder(ctx context.Context, dir directory.Directory, decide Decider,
	cfg config.OrderSourceConfig) (domain.Order, error) {

	restaurants, err := dir.Restaurants(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if len(restaurants) == 0 {
		return domain.Order{}, errors.New("no restaurants in directory")
	}
	names := make([]string, len(restaurants))
	for i, r := range restaurants {
		names[i] = r.Name
	}
	ri := decide.PickRestaurant(names)
	if ri < 0 || ri >= len(restaurants) {
		ri = 0
	}
	chosen := restaurants[ri]

	items, err := dir.Menu(ctx, chosen.Name)
	if err != nil {
		return domain.Order{}, err
	}
	if len(items) == 0 {
		return domain.Order{}, fmt.Errorf("no menu for %s", chosen.Name)
	}
	ii := decide.PickItem(chosen.Name, items)
	if ii < 0 || ii >= len(items) {
		ii = 0
	}

	return domain.Order{
		Type:    domain.TypeOrder,
		OrderID: uuid.NewString(),
		Restaurant: domain.Restaurant{
			Name: chosen.Name, Lat: chosen.Pos.Lat, Lon: chosen.Pos.Lon,
		},
		Items:     []domain.Item{{Name: items[ii], Qty: 1}},
		Customer:  domain.Customer{Lat: cfg.Lat, Lon: cfg.Lon},
		CreatedAt: time.Now().Unix(),
	}, nil
}

func awaitAssignment(ctx context.Context, sub bus.Subscription, orderID string,
	cfg config.OrderSourceConfig) (domain.Assignment, bool, error) {

	deadline := time.Now().Add(cfg.AssignTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return domain.Assignment{}, false, nil
		}
		poll := cfg.PollInterval
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
		if err != nil || assignment.OrderID != orderID {
			continue
		}
		return assignment, true, nil
	}
}
