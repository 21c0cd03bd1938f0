package shipments

import (
	"testing"

	"github.com/BearBump/TrackView/internal/models"
	"github.com/stretchr/testify/require"
)

func TestGroupEventsByShipment(t *testing.T) {
	evs := []*models.ShipmentEvent{
		{ID: "1", ShipmentID: "a", EventType: "created"},
		{ID: "2", ShipmentID: "b", EventType: "created"},
		nil,
		{ID: "3", ShipmentID: "a", EventType: "en_route"},
		{ID: "4", ShipmentID: "a", EventType: "delivered"},
	}

	got := GroupEventsByShipment(evs)
	require.Len(t, got, 2)

	var ids []string
	for _, e := range got["a"] {
		ids = append(ids, e.ID)
	}
	require.Equal(t, []string{"1", "3", "4"}, ids)
	require.Len(t, got["b"], 1)
	require.Nil(t, got["missing"])
}

func TestGroupEventsByShipment_Empty(t *testing.T) {
	got := GroupEventsByShipment(nil)
	require.NotNil(t, got)
	require.Len(t, got, 0)
}

func TestQueryError(t *testing.T) {
	err := &QueryError{Op: "find shipment", Err: ErrValidation}
	require.Equal(t, "find shipment: validation error", err.Error())
	require.ErrorIs(t, err, ErrValidation)
}
