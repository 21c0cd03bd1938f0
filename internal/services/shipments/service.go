package shipments

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/TrackView/internal/models"
	"github.com/pkg/errors"
)

// ErrValidation marks bad user input rejected before any backend call.
var ErrValidation = errors.New("validation error")

// QueryError is returned when the backend call itself failed.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

type Repository interface {
	GetShipmentByTrackCode(ctx context.Context, trackCode string) (*models.Shipment, error)
	ListShipmentEvents(ctx context.Context, shipmentID string) ([]*models.ShipmentEvent, error)
	ListShipmentsByDriver(ctx context.Context, driverID string) ([]*models.Shipment, error)
	ListEventsForShipments(ctx context.Context, shipmentIDs []string) ([]*models.ShipmentEvent, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// FindShipmentByTrackCode returns nil without an error when no shipment has
// the code.
func (s *Service) FindShipmentByTrackCode(ctx context.Context, code string) (*models.Shipment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.Wrap(ErrValidation, "track code is empty")
	}
	sh, err := s.repo.GetShipmentByTrackCode(ctx, code)
	if err != nil {
		return nil, &QueryError{Op: "find shipment", Err: err}
	}
	return sh, nil
}

// ListEventsForShipment returns the events ordered by creation time
// ascending. The result is never nil.
func (s *Service) ListEventsForShipment(ctx context.Context, shipmentID string) ([]*models.ShipmentEvent, error) {
	if shipmentID == "" {
		return nil, errors.Wrap(ErrValidation, "shipment id is empty")
	}
	evs, err := s.repo.ListShipmentEvents(ctx, shipmentID)
	if err != nil {
		return nil, &QueryError{Op: "list events", Err: err}
	}
	if evs == nil {
		evs = []*models.ShipmentEvent{}
	}
	return evs, nil
}

func (s *Service) ListShipmentsForDriver(ctx context.Context, driverID string) ([]*models.Shipment, error) {
	if driverID == "" {
		return nil, errors.Wrap(ErrValidation, "driver id is empty")
	}
	out, err := s.repo.ListShipmentsByDriver(ctx, driverID)
	if err != nil {
		return nil, &QueryError{Op: "list driver shipments", Err: err}
	}
	if out == nil {
		out = []*models.Shipment{}
	}
	return out, nil
}

// ListEventsForShipments loads events of all given shipments with a single
// backend call. Duplicate ids are collapsed.
func (s *Service) ListEventsForShipments(ctx context.Context, ids []string) ([]*models.ShipmentEvent, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return []*models.ShipmentEvent{}, nil
	}

	evs, err := s.repo.ListEventsForShipments(ctx, uniq)
	if err != nil {
		return nil, &QueryError{Op: "list events batch", Err: err}
	}
	if evs == nil {
		evs = []*models.ShipmentEvent{}
	}
	return evs, nil
}

// GroupEventsByShipment keys events by shipment id keeping their relative
// order, so ascending input stays ascending per shipment.
func GroupEventsByShipment(events []*models.ShipmentEvent) map[string][]*models.ShipmentEvent {
	out := make(map[string][]*models.ShipmentEvent)
	for _, e := range events {
		if e == nil {
			continue
		}
		out[e.ShipmentID] = append(out[e.ShipmentID], e)
	}
	return out
}

type DashboardEntry struct {
	Shipment *models.Shipment
	Events   []*models.ShipmentEvent
	Status   string
}

// Dashboard collects the driver's shipments, newest first, together with
// their event history.
func (s *Service) Dashboard(ctx context.Context, driverID string) ([]DashboardEntry, error) {
	list, err := s.ListShipmentsForDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return []DashboardEntry{}, nil
	}

	ids := make([]string, 0, len(list))
	for _, sh := range list {
		ids = append(ids, sh.ID)
	}
	evs, err := s.ListEventsForShipments(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := GroupEventsByShipment(evs)

	out := make([]DashboardEntry, 0, len(list))
	for _, sh := range list {
		shEvents := byID[sh.ID]
		if shEvents == nil {
			shEvents = []*models.ShipmentEvent{}
		}
		out = append(out, DashboardEntry{
			Shipment: sh,
			Events:   shEvents,
			Status:   models.CurrentStatus(sh, shEvents),
		})
	}
	return out, nil
}
