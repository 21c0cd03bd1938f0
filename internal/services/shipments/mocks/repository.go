package mocks

import (
	"context"

	"github.com/BearBump/TrackView/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of shipments.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetShipmentByTrackCode(ctx context.Context, trackCode string) (*models.Shipment, error) {
	args := m.Called(ctx, trackCode)
	sh, _ := args.Get(0).(*models.Shipment)
	return sh, args.Error(1)
}

func (m *MockRepository) ListShipmentEvents(ctx context.Context, shipmentID string) ([]*models.ShipmentEvent, error) {
	args := m.Called(ctx, shipmentID)
	evs, _ := args.Get(0).([]*models.ShipmentEvent)
	return evs, args.Error(1)
}

func (m *MockRepository) ListShipmentsByDriver(ctx context.Context, driverID string) ([]*models.Shipment, error) {
	args := m.Called(ctx, driverID)
	out, _ := args.Get(0).([]*models.Shipment)
	return out, args.Error(1)
}

func (m *MockRepository) ListEventsForShipments(ctx context.Context, shipmentIDs []string) ([]*models.ShipmentEvent, error) {
	args := m.Called(ctx, shipmentIDs)
	evs, _ := args.Get(0).([]*models.ShipmentEvent)
	return evs, args.Error(1)
}
