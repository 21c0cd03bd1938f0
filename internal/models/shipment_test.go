package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCurrentStatus(t *testing.T) {
	s := &Shipment{ID: "s1", Status: ShipmentStatusCreated}

	require.Equal(t, ShipmentStatusCreated, CurrentStatus(s, nil))
	require.Equal(t, ShipmentStatusCreated, CurrentStatus(s, []*ShipmentEvent{}))

	evs := []*ShipmentEvent{
		{ID: "e1", ShipmentID: "s1", EventType: ShipmentStatusCreated},
		{ID: "e2", ShipmentID: "s1", EventType: ShipmentStatusEnRoute},
	}
	require.Equal(t, ShipmentStatusEnRoute, CurrentStatus(s, evs))

	// последнее событие важнее статуса самого отправления
	s.Status = ShipmentStatusDelivered
	require.Equal(t, ShipmentStatusEnRoute, CurrentStatus(s, evs))

	require.Equal(t, "", CurrentStatus(nil, nil))
}

func TestSession_Expired(t *testing.T) {
	now := time.Now().UTC()
	require.False(t, (&Session{}).Expired(now))
	require.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	require.True(t, (&Session{ExpiresAt: now}).Expired(now))
}
