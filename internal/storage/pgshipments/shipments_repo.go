package pgshipments

import (
	"context"

	"github.com/BearBump/TrackView/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `id::text, track_code, status, customer_name, created_at, driver_id::text`

const eventColumns = `id::text, shipment_id::text, event_type, note, created_at`

func (s *Storage) GetShipmentByTrackCode(ctx context.Context, trackCode string) (*models.Shipment, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE track_code = $1
`, trackCode)

	sh, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment by track code")
	}
	return sh, nil
}

func (s *Storage) ListShipmentsByDriver(ctx context.Context, driverID string) ([]*models.Shipment, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE driver_id = $1::uuid
ORDER BY created_at DESC, id
`, driverID)
	if err != nil {
		return nil, errors.Wrap(err, "select driver shipments")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0)
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListShipmentEvents(ctx context.Context, shipmentID string) ([]*models.ShipmentEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+eventColumns+`
FROM shipment_events
WHERE shipment_id = $1::uuid
ORDER BY created_at ASC, id
`, shipmentID)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	return collectEvents(rows)
}

// ListEventsForShipments fetches events of several shipments in one round trip.
func (s *Storage) ListEventsForShipments(ctx context.Context, shipmentIDs []string) ([]*models.ShipmentEvent, error) {
	if len(shipmentIDs) == 0 {
		return []*models.ShipmentEvent{}, nil
	}

	rows, err := s.pool.Query(ctx, `
SELECT `+eventColumns+`
FROM shipment_events
WHERE shipment_id = ANY($1::uuid[])
ORDER BY created_at ASC, id
`, shipmentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "select events batch")
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*models.ShipmentEvent, error) {
	defer rows.Close()

	out := make([]*models.ShipmentEvent, 0)
	for rows.Next() {
		var e models.ShipmentEvent
		var note *string
		if err := rows.Scan(&e.ID, &e.ShipmentID, &e.EventType, &note, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Note = note
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	var customerName *string
	var driverID *string
	if err := row.Scan(
		&sh.ID, &sh.TrackCode, &sh.Status, &customerName, &sh.CreatedAt, &driverID,
	); err != nil {
		return nil, err
	}
	sh.CustomerName = customerName
	sh.DriverID = driverID
	return &sh, nil
}
