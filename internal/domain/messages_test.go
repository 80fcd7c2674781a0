package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
)

func TestDecodeBid(t *testing.T) {
	bid := domain.Bid{
		Type:      domain.TypeCandidature,
		OrderID:   "o1",
		CourierID: "alex",
		Position:  domain.LatLon{Lat: 48.86, Lon: 2.33},
		SentAt:    1700000000,
	}
	got, err := domain.DecodeBid(domain.Encode(bid))
	require.NoError(t, err)
	assert.Equal(t, bid, got)
}

func TestDecodeBidMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"type":`,
		"wrong type tag":   `{"type":"ORDER","order_id":"o1","courier_id":"a","position":{"lat":1,"lon":2}}`,
		"missing courier":  `{"type":"CANDIDATURE","order_id":"o1","position":{"lat":1,"lon":2}}`,
		"missing position": `{"type":"CANDIDATURE","order_id":"o1","courier_id":"a"}`,
		"partial position": `{"type":"CANDIDATURE","order_id":"o1","courier_id":"a","position":{"lat":1}}`,
		"non-numeric lat":  `{"type":"CANDIDATURE","order_id":"o1","courier_id":"a","position":{"lat":"x","lon":2}}`,
		"missing order id": `{"type":"CANDIDATURE","courier_id":"a","position":{"lat":1,"lon":2}}`,
	}
	for name, payload := range cases {
		_, err := domain.DecodeBid([]byte(payload))
		assert.Error(t, err, name)
	}
}

func TestDecodeAssignment(t *testing.T) {
	a := domain.Assignment{
		Type: domain.TypeSelection, OrderID: "o1", CourierID: "alex",
		EtaMin: 8, Reward: 8.5,
		Pickup:  domain.LatLon{Lat: 1, Lon: 2},
		Dropoff: domain.LatLon{Lat: 3, Lon: 4},
	}
	got, err := domain.DecodeAssignment(domain.Encode(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = domain.DecodeAssignment([]byte(`{"type":"SELECTION","order_id":"o1"}`))
	assert.Error(t, err, "assignment without courier id")
}

func TestPhase(t *testing.T) {
	assert.Equal(t, domain.StatusLeg1, domain.Phase(domain.StatusLeg1))
	assert.Equal(t, domain.StatusLeg1, domain.Phase(domain.StatusLeg1Arrived))
	assert.Equal(t, domain.StatusLeg2, domain.Phase(domain.StatusLeg2))
	assert.Equal(t, domain.StatusLeg2, domain.Phase(domain.StatusLeg2Arrived))
	assert.Equal(t, "", domain.Phase("cooking"))
}
