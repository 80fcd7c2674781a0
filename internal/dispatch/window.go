// Package dispatch implements the bid window: broadcast an order as an
// offer, collect candidatures for a fixed window, score and rank them, and
// publish exactly one assignment.
package dispatch

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/config"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/decision"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/rating"
)

var (
	// ErrUnknownRestaurant means the pickup location could not be resolved;
	// no bidding window is opened.
	ErrUnknownRestaurant = errors.New("dispatch: unknown restaurant")
	// ErrUnmatched means the window closed with zero well-formed bids; no
	// assignment is published.
	ErrUnmatched = errors.New("dispatch: no bids received")
)

// Resolver is the slice of the restaurant directory the window needs.
type Resolver interface {
	Lookup(ctx context.Context, name string) (geo.Point, bool, error)
}

type ScoredBid struct {
	Bid    domain.Bid
	EtaMin int
	Rating float64
}

type Manager struct {
	bus     bus.Bus
	dir     Resolver
	ratings rating.Ledger
	picker  decision.WinnerPicker
	cfg     config.DispatchConfig
	lg      *logger.Logger
}

func NewManager(b bus.Bus, dir Resolver, ratings rating.Ledger, picker decision.WinnerPicker,
	cfg config.DispatchConfig, lg *logger.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	return &Manager{bus: b, dir: dir, ratings: ratings, picker: picker, cfg: cfg, lg: lg}
}

// Dispatch runs one bidding window for the order and returns the published
// assignment, ErrUnmatched, or ErrUnknownRestaurant. A canceled context
// abandons the window without publishing anything.
func (m *Manager) Dispatch(ctx context.Context, order domain.Order) (*domain.Assignment, error) {
	pickup, err := m.resolvePickup(ctx, order)
	if err != nil {
		return nil, err
	}
	dropoff := geo.Point{Lat: order.Customer.Lat, Lon: order.Customer.Lon}

	// Subscribe before broadcasting so no bid can race the window open.
	sub, err := m.bus.Subscribe(ctx, bus.CandidatesTopic(order.OrderID))
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	offer := domain.Offer{
		Type:       domain.TypeOffer,
		OrderID:    order.OrderID,
		Restaurant: domain.Restaurant{Name: order.Restaurant.Name, Lat: pickup.Lat, Lon: pickup.Lon},
		Dropoff:    domain.FromPoint(dropoff),
		Reward:     m.cfg.RewardEUR,
	}
	if err := m.bus.Publish(ctx, bus.TopicOffers, domain.Encode(offer)); err != nil {
		return nil, err
	}
	m.lg.Info("offer_broadcast", map[string]any{
		"order_id": order.OrderID, "restaurant": order.Restaurant.Name,
		"window_s": m.cfg.BidWindow.Seconds(),
	})

	scored, err := m.collect(ctx, sub, order.OrderID, pickup, dropoff)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, ErrUnmatched
	}

	Rank(scored)
	winner := scored[m.pickWinner(scored)]

	assignment := domain.Assignment{
		Type:       domain.TypeSelection,
		OrderID:    order.OrderID,
		CourierID:  winner.Bid.CourierID,
		EtaMin:     winner.EtaMin,
		Reward:     m.cfg.RewardEUR,
		Pickup:     domain.FromPoint(pickup),
		Dropoff:    domain.FromPoint(dropoff),
		AssignedAt: time.Now().Unix(),
	}
	if err := m.bus.Publish(ctx, bus.AssignmentsTopic(order.OrderID), domain.Encode(assignment)); err != nil {
		return nil, err
	}
	m.lg.Info("courier_assigned", map[string]any{
		"order_id": order.OrderID, "courier_id": winner.Bid.CourierID,
		"eta_min": winner.EtaMin, "rating": winner.Rating, "bids": len(scored),
	})
	return &assignment, nil
}

func (m *Manager) resolvePickup(ctx context.Context, order domain.Order) (geo.Point, error) {
	pickup, ok, err := m.dir.Lookup(ctx, order.Restaurant.Name)
	if err != nil {
		return geo.Point{}, err
	}
	if ok {
		return pickup, nil
	}
	// Fall back to the coordinates the order itself carries.
	if order.Restaurant.Lat != 0 || order.Restaurant.Lon != 0 {
		return geo.Point{Lat: order.Restaurant.Lat, Lon: order.Restaurant.Lon}, nil
	}
	return geo.Point{}, ErrUnknownRestaurant
}

// collect polls the candidate topic until the window deadline. Malformed
// bids are dropped; duplicate bids from one courier keep the first.
func (m *Manager) collect(ctx context.Context, sub bus.Subscription, orderID string,
	pickup, dropoff geo.Point) ([]ScoredBid, error) {

	deadline := time.Now().Add(m.cfg.BidWindow)
	seen := make(map[string]bool)
	var scored []ScoredBid

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		poll := m.cfg.PollInterval
		if remaining < poll {
			poll = remaining
		}
		msg, err := sub.Poll(ctx, poll)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		bid, err := domain.DecodeBid(msg.Body)
		if err != nil {
			m.lg.Debug("bid_discarded", map[string]any{"order_id": orderID, "reason": err.Error()})
			continue
		}
		if bid.OrderID != orderID {
			continue
		}
		if seen[bid.CourierID] {
			m.lg.Debug("duplicate_bid_ignored", map[string]any{
				"order_id": orderID, "courier_id": bid.CourierID,
			})
			continue
		}
		seen[bid.CourierID] = true

		eta := EtaMinutes(bid.Position.Point(), pickup, dropoff, m.cfg.SpeedKmh, m.cfg.FixedOverheadMin)
		avg, err := m.ratings.Get(ctx, bid.CourierID)
		if err != nil {
			m.lg.Warn("rating_lookup_failed", map[string]any{"courier_id": bid.CourierID})
			avg = rating.DefaultAvg
		}
		scored = append(scored, ScoredBid{Bid: bid, EtaMin: eta, Rating: avg})
		m.lg.Info("bid_received", map[string]any{
			"order_id": orderID, "courier_id": bid.CourierID, "eta_min": eta, "rating": avg,
		})
	}
	if err := ctx.Err(); err != nil {
		// Interrupt: abandon the window, publish nothing.
		return nil, err
	}
	return scored, nil
}

func (m *Manager) pickWinner(scored []ScoredBid) int {
	ranked := make([]decision.Candidate, len(scored))
	for i, s := range scored {
		ranked[i] = decision.Candidate{CourierID: s.Bid.CourierID, EtaMin: s.EtaMin, Rating: s.Rating}
	}
	idx := m.picker.PickWinner(ranked)
	if idx < 0 || idx >= len(scored) {
		return 0
	}
	return idx
}

// Rank orders bids by eta ascending then rating descending; the stable sort
// leaves full ties in arrival order.
func Rank(bids []ScoredBid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].EtaMin != bids[j].EtaMin {
			return bids[i].EtaMin < bids[j].EtaMin
		}
		return bids[i].Rating > bids[j].Rating
	})
}

// EtaMinutes estimates courier->pickup->dropoff travel time at a constant
// speed plus a fixed overhead, floored at one minute.
func EtaMinutes(from, pickup, dropoff geo.Point, speedKmh, overheadMin float64) int {
	d := geo.Haversine(from, pickup) + geo.Haversine(pickup, dropoff)
	minutes := d/math.Max(1e-6, speedKmh)*60 + overheadMin
	eta := int(math.Round(minutes))
	if eta < 1 {
		eta = 1
	}
	return eta
}
