// Package decision holds the synchronous human-decision capabilities
// injected into the actors: winner override for the dispatcher, offer
// accept/decline for couriers, restaurant/item/rating choices for the order
// source. Production uses the terminal; tests use scripted values.
package decision

// Candidate is the ranked view shown when picking a winner.
type Candidate struct {
	CourierID string
	EtaMin    int
	Rating    float64
}

// WinnerPicker may override the automatic winner. Any out-of-range index
// accepts rank 0.
type WinnerPicker interface {
	PickWinner(ranked []Candidate) int
}

type OfferDecider interface {
	AcceptOffer(orderID, restaurant string) bool
}

// OrderPlacer drives the order source's menu choices.
type OrderPlacer interface {
	PickRestaurant(names []string) int
	PickItem(restaurant string, items []string) int
}

type Rater interface {
	RateCourier(courierID string) int
}

// Auto takes every offer, accepts the automatic winner, orders the first
// menu entry, and rates with a fixed score.
type Auto struct {
	Score int
}

func (a Auto) PickWinner([]Candidate) int      { return 0 }
func (a Auto) AcceptOffer(string, string) bool { return true }
func (a Auto) PickRestaurant([]string) int     { return 0 }
func (a Auto) PickItem(string, []string) int   { return 0 }
func (a Auto) RateCourier(string) int {
	if a.Score < 1 || a.Score > 5 {
		return 5
	}
	return a.Score
}

// Func adapters for scripting single decisions in tests.

type WinnerPickerFunc func(ranked []Candidate) int

func (f WinnerPickerFunc) PickWinner(ranked []Candidate) int { return f(ranked) }

type OfferDeciderFunc func(orderID, restaurant string) bool

func (f OfferDeciderFunc) AcceptOffer(orderID, restaurant string) bool { return f(orderID, restaurant) }
