package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"courier-dispatch/internal/geo"
)

// Envelope type tags. Every payload on the bus carries one in its "type"
// field; consumers drop anything they do not recognize.
const (
	TypeOrder       = "ORDER"
	TypeOffer       = "OFFER"
	TypeCandidature = "CANDIDATURE"
	TypeSelection   = "SELECTION"
	TypeTrack       = "TRACK"
)

// Tracking statuses. The "_arrived" variants are the deterministic
// end-of-leg markers; StatusLeg2Arrived terminates the stream.
const (
	StatusLeg1        = "leg1"
	StatusLeg1Arrived = "leg1_arrived"
	StatusLeg2        = "leg2"
	StatusLeg2Arrived = "leg2_arrived"
)

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p LatLon) Point() geo.Point  { return geo.Point{Lat: p.Lat, Lon: p.Lon} }
func FromPoint(p geo.Point) LatLon { return LatLon{Lat: p.Lat, Lon: p.Lon} }
func (p LatLon) IsZero() bool      { return p.Lat == 0 && p.Lon == 0 }

type Restaurant struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type Item struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

type Customer struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Order is published once by the order source and read-only afterwards.
type Order struct {
	Type       string     `json:"type"`
	OrderID    string     `json:"order_id"`
	Restaurant Restaurant `json:"restaurant"`
	Items      []Item     `json:"items"`
	Customer   Customer   `json:"customer"`
	CreatedAt  int64      `json:"created_at"`
}

// Offer is the reduced view of an order broadcast to all couriers.
type Offer struct {
	Type       string     `json:"type"`
	OrderID    string     `json:"order_id"`
	Restaurant Restaurant `json:"restaurant"`
	Dropoff    LatLon     `json:"dropoff"`
	Reward     float64    `json:"reward"`
}

// Bid is a courier's candidature for one order. Discarded after the window.
type Bid struct {
	Type      string `json:"type"`
	OrderID   string `json:"order_id"`
	CourierID string `json:"courier_id"`
	Position  LatLon `json:"position"`
	SentAt    int64  `json:"sent_at"`
}

// Assignment is the contract between dispatcher and winning courier; the
// movement simulator must honor EtaMin*60 seconds end to end.
type Assignment struct {
	Type       string  `json:"type"`
	OrderID    string  `json:"order_id"`
	CourierID  string  `json:"courier_id"`
	EtaMin     int     `json:"eta_min"`
	Reward     float64 `json:"reward"`
	Pickup     LatLon  `json:"pickup"`
	Dropoff    LatLon  `json:"dropoff"`
	AssignedAt int64   `json:"assigned_at"`
}

type TrackingEvent struct {
	Type       string  `json:"type"`
	OrderID    string  `json:"order_id"`
	CourierID  string  `json:"courier_id"`
	Status     string  `json:"status"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Progress   int     `json:"progress"`
	EtaS       int     `json:"eta_s"`
	GlobalEtaS int     `json:"global_eta_s"`
	SentAt     int64   `json:"sent_at"`
}

// Phase maps a tracking status to its leg, so the consumer can reset its
// duplicate filter on leg transitions.
func Phase(status string) string {
	switch {
	case strings.HasPrefix(status, StatusLeg2):
		return StatusLeg2
	case strings.HasPrefix(status, StatusLeg1):
		return StatusLeg1
	default:
		return ""
	}
}

func Encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func DecodeOrder(b []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(b, &o); err != nil {
		return Order{}, err
	}
	if o.Type != TypeOrder {
		return Order{}, fmt.Errorf("unexpected type %q", o.Type)
	}
	if o.OrderID == "" {
		return Order{}, fmt.Errorf("order without id")
	}
	return o, nil
}

func DecodeOffer(b []byte) (Offer, error) {
	var o Offer
	if err := json.Unmarshal(b, &o); err != nil {
		return Offer{}, err
	}
	if o.Type != TypeOffer || o.OrderID == "" {
		return Offer{}, fmt.Errorf("not a well-formed offer")
	}
	return o, nil
}

// DecodeBid validates the fields the scoring step depends on: a malformed
// bid (missing or non-numeric position, no courier) is an error and is never
// scored.
func DecodeBid(b []byte) (Bid, error) {
	var raw struct {
		Type      string `json:"type"`
		OrderID   string `json:"order_id"`
		CourierID string `json:"courier_id"`
		Position  *struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"position"`
		SentAt int64 `json:"sent_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Bid{}, err
	}
	if raw.Type != TypeCandidature {
		return Bid{}, fmt.Errorf("unexpected type %q", raw.Type)
	}
	if raw.OrderID == "" || raw.CourierID == "" {
		return Bid{}, fmt.Errorf("bid missing ids")
	}
	if raw.Position == nil || raw.Position.Lat == nil || raw.Position.Lon == nil {
		return Bid{}, fmt.Errorf("bid missing position")
	}
	return Bid{
		Type:      raw.Type,
		OrderID:   raw.OrderID,
		CourierID: raw.CourierID,
		Position:  LatLon{Lat: *raw.Position.Lat, Lon: *raw.Position.Lon},
		SentAt:    raw.SentAt,
	}, nil
}

func DecodeAssignment(b []byte) (Assignment, error) {
	var a Assignment
	if err := json.Unmarshal(b, &a); err != nil {
		return Assignment{}, err
	}
	if a.Type != TypeSelection || a.OrderID == "" || a.CourierID == "" {
		return Assignment{}, fmt.Errorf("not a well-formed assignment")
	}
	return a, nil
}

func DecodeTracking(b []byte) (TrackingEvent, error) {
	var t TrackingEvent
	if err := json.Unmarshal(b, &t); err != nil {
		return TrackingEvent{}, err
	}
	if t.Type != TypeTrack || t.OrderID == "" {
		return TrackingEvent{}, fmt.Errorf("not a well-formed tracking event")
	}
	return t, nil
}
