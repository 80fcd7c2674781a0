// Package dispatcher is the dispatcher actor: consume orders one at a time
// and run a bidding window for each. Orders are never pipelined; a window
// must close before the next order is read.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/dispatch"
	"courier-dispatch/internal/domain"
)

func Run(ctx context.Context, b bus.Bus, mgr *dispatch.Manager, poll time.Duration, lg *logger.Logger) error {
	sub, err := b.Subscribe(ctx, bus.TopicOrders)
	if err != nil {
		return err
	}
	defer sub.Close()

	lg.Info("awaiting_orders", map[string]any{"topic": bus.TopicOrders})

	for {
		msg, err := sub.Poll(ctx, poll)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if msg == nil {
			continue
		}
		order, err := domain.DecodeOrder(msg.Body)
		if err != nil {
			lg.Debug("order_discarded", map[string]any{"reason": err.Error()})
			continue
		}

		_, err = mgr.Dispatch(ctx, order)
		switch {
		case err == nil:
			// assignment already logged by the window
		case errors.Is(err, dispatch.ErrUnknownRestaurant):
			lg.Warn("unknown_restaurant", map[string]any{
				"order_id": order.OrderID, "restaurant": order.Restaurant.Name,
			})
		case errors.Is(err, dispatch.ErrUnmatched):
			lg.Info("order_unmatched", map[string]any{"order_id": order.OrderID})
		case errors.Is(err, context.Canceled):
			return nil
		default:
			lg.Error("dispatch_failed", err, map[string]any{"order_id": order.OrderID})
		}
	}
}
