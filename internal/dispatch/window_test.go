package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/config"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/decision"
	"courier-dispatch/internal/dispatch"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/rating"
)

type fakeDir map[string]geo.Point

func (d fakeDir) Lookup(_ context.Context, name string) (geo.Point, bool, error) {
	p, ok := d[name]
	return p, ok, nil
}

// Pickup at the origin, dropoff ~2.5 km east: 2.5/20*60 + 0.5 overhead
// rounds to 8 minutes for a courier already at the pickup.
var (
	pickup  = geo.Point{Lat: 0, Lon: 0}
	dropoff = geo.Point{Lat: 0, Lon: 0.0225}
)

func newManager(b bus.Bus, dir dispatch.Resolver, window time.Duration, picker decision.WinnerPicker) *dispatch.Manager {
	cfg := config.DispatchConfig{
		SpeedKmh:         20,
		FixedOverheadMin: 0.5,
		BidWindow:        window,
		PollInterval:     10 * time.Millisecond,
		RewardEUR:        8.5,
	}
	return dispatch.NewManager(b, dir, rating.NewMemory(), picker, cfg, logger.New("dispatch-test"))
}

func testOrder() domain.Order {
	return domain.Order{
		Type:       domain.TypeOrder,
		OrderID:    "o1",
		Restaurant: domain.Restaurant{Name: "Chez Luigi"},
		Customer:   domain.Customer{Lat: dropoff.Lat, Lon: dropoff.Lon},
		CreatedAt:  time.Now().Unix(),
	}
}

// bidOnOffer publishes the given bids as soon as the offer broadcast is seen.
func bidOnOffer(t *testing.T, b bus.Bus, bids ...domain.Bid) {
	t.Helper()
	ctx := context.Background()
	sub, err := b.Subscribe(ctx, bus.TopicOffers)
	require.NoError(t, err)
	go func() {
		defer sub.Close()
		msg, err := sub.Poll(ctx, 2*time.Second)
		if err != nil || msg == nil {
			return
		}
		offer, err := domain.DecodeOffer(msg.Body)
		if err != nil {
			return
		}
		for _, bid := range bids {
			bid.OrderID = offer.OrderID
			_ = b.Publish(ctx, bus.CandidatesTopic(offer.OrderID), domain.Encode(bid))
		}
	}()
}

func courierBid(courierID string, pos geo.Point) domain.Bid {
	return domain.Bid{
		Type:      domain.TypeCandidature,
		CourierID: courierID,
		Position:  domain.FromPoint(pos),
		SentAt:    time.Now().Unix(),
	}
}

func TestDispatchSingleBid(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}

	asub, err := b.Subscribe(ctx, bus.AssignmentsTopic("o1"))
	require.NoError(t, err)
	defer asub.Close()

	bidOnOffer(t, b, courierBid("alex", pickup))

	mgr := newManager(b, dir, 300*time.Millisecond, decision.Auto{})
	assignment, err := mgr.Dispatch(ctx, testOrder())
	require.NoError(t, err)

	assert.Equal(t, "alex", assignment.CourierID)
	assert.Equal(t, 8, assignment.EtaMin)
	assert.Equal(t, 8.5, assignment.Reward)
	assert.Equal(t, pickup.Lon, assignment.Pickup.Lon)
	assert.Equal(t, dropoff.Lon, assignment.Dropoff.Lon)

	// Exactly one assignment on the wire.
	msg, err := asub.Poll(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)
	published, err := domain.DecodeAssignment(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, *assignment, published)

	msg, err = asub.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDispatchZeroBids(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}

	asub, err := b.Subscribe(ctx, bus.AssignmentsTopic("o1"))
	require.NoError(t, err)
	defer asub.Close()

	mgr := newManager(b, dir, 150*time.Millisecond, decision.Auto{})
	_, err = mgr.Dispatch(ctx, testOrder())
	assert.ErrorIs(t, err, dispatch.ErrUnmatched)

	msg, err := asub.Poll(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "unmatched order must publish no assignment")
}

func TestDispatchUnknownRestaurant(t *testing.T) {
	b := bus.NewMemory()
	mgr := newManager(b, fakeDir{}, 150*time.Millisecond, decision.Auto{})

	_, err := mgr.Dispatch(context.Background(), testOrder())
	assert.ErrorIs(t, err, dispatch.ErrUnknownRestaurant)
}

func TestDispatchPickupFallsBackToOrderCoords(t *testing.T) {
	b := bus.NewMemory()
	bidOnOffer(t, b, courierBid("alex", pickup))

	order := testOrder()
	order.Restaurant.Lat = pickup.Lat
	order.Restaurant.Lon = pickup.Lon + 1e-9 // present but unknown to the directory

	mgr := newManager(b, fakeDir{}, 300*time.Millisecond, decision.Auto{})
	assignment, err := mgr.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "alex", assignment.CourierID)
}

func TestDispatchKeepsFirstBidPerCourier(t *testing.T) {
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}

	farAway := geo.Point{Lat: 0, Lon: 1}
	bidOnOffer(t, b,
		courierBid("dup", pickup), // eta 8
		courierBid("dup", farAway),
	)

	mgr := newManager(b, dir, 300*time.Millisecond, decision.Auto{})
	assignment, err := mgr.Dispatch(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "dup", assignment.CourierID)
	assert.Equal(t, 8, assignment.EtaMin, "the first bid's position must win")
}

func TestDispatchDropsMalformedBids(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}

	sub, err := b.Subscribe(ctx, bus.TopicOffers)
	require.NoError(t, err)
	go func() {
		defer sub.Close()
		if msg, err := sub.Poll(ctx, 2*time.Second); err == nil && msg != nil {
			topic := bus.CandidatesTopic("o1")
			_ = b.Publish(ctx, topic, []byte(`{{not json`))
			_ = b.Publish(ctx, topic, []byte(`{"type":"CANDIDATURE","order_id":"o1","courier_id":"x"}`))
		}
	}()

	mgr := newManager(b, dir, 250*time.Millisecond, decision.Auto{})
	_, err = mgr.Dispatch(ctx, testOrder())
	assert.ErrorIs(t, err, dispatch.ErrUnmatched, "malformed bids are dropped, not scored")
}

func TestDispatchCanceledPublishesNothing(t *testing.T) {
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}

	asub, err := b.Subscribe(context.Background(), bus.AssignmentsTopic("o1"))
	require.NoError(t, err)
	defer asub.Close()

	bidOnOffer(t, b, courierBid("alex", pickup))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	mgr := newManager(b, dir, 5*time.Second, decision.Auto{})
	_, err = mgr.Dispatch(ctx, testOrder())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	msg, err := asub.Poll(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "an abandoned window must not publish a partial assignment")
}

func TestDispatchWinnerOverride(t *testing.T) {
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}

	slightlyOff := geo.Point{Lat: 0.001, Lon: 0}
	bidOnOffer(t, b,
		courierBid("fast", pickup),
		courierBid("slow", slightlyOff),
	)

	picker := decision.WinnerPickerFunc(func(ranked []decision.Candidate) int {
		return len(ranked) - 1 // operator overrides to the last-ranked courier
	})
	mgr := newManager(b, dir, 300*time.Millisecond, picker)
	assignment, err := mgr.Dispatch(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "slow", assignment.CourierID)
}

func TestDispatchOutOfRangeOverrideFallsBack(t *testing.T) {
	b := bus.NewMemory()
	dir := fakeDir{"Chez Luigi": pickup}
	bidOnOffer(t, b, courierBid("alex", pickup))

	picker := decision.WinnerPickerFunc(func([]decision.Candidate) int { return 99 })
	mgr := newManager(b, dir, 300*time.Millisecond, picker)
	assignment, err := mgr.Dispatch(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "alex", assignment.CourierID)
}

func TestRank(t *testing.T) {
	b1 := dispatch.ScoredBid{Bid: domain.Bid{CourierID: "b1"}, EtaMin: 5, Rating: 4.0}
	b2 := dispatch.ScoredBid{Bid: domain.Bid{CourierID: "b2"}, EtaMin: 5, Rating: 4.5}
	b3 := dispatch.ScoredBid{Bid: domain.Bid{CourierID: "b3"}, EtaMin: 3, Rating: 1.0}

	bids := []dispatch.ScoredBid{b1, b2, b3}
	dispatch.Rank(bids)

	got := []string{bids[0].Bid.CourierID, bids[1].Bid.CourierID, bids[2].Bid.CourierID}
	assert.Equal(t, []string{"b3", "b2", "b1"}, got, "eta dominates, rating breaks ties")
}

func TestRankFullTieKeepsArrivalOrder(t *testing.T) {
	first := dispatch.ScoredBid{Bid: domain.Bid{CourierID: "first"}, EtaMin: 5, Rating: 4.0}
	second := dispatch.ScoredBid{Bid: domain.Bid{CourierID: "second"}, EtaMin: 5, Rating: 4.0}

	bids := []dispatch.ScoredBid{first, second}
	dispatch.Rank(bids)
	assert.Equal(t, "first", bids[0].Bid.CourierID)
}

func TestEtaMinutes(t *testing.T) {
	assert.Equal(t, 8, dispatch.EtaMinutes(pickup, pickup, dropoff, 20, 0.5))
	// Floored at one minute even for a zero-length trip.
	assert.Equal(t, 1, dispatch.EtaMinutes(pickup, pickup, pickup, 20, 0))
}
