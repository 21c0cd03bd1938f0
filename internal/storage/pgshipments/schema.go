package pgshipments

import (
	"context"

	"github.com/pkg/errors"
)

// ChangesChannel is the LISTEN/NOTIFY channel the row triggers publish to.
const ChangesChannel = "trackview_changes"

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users(lower(email))`,
		`
CREATE TABLE IF NOT EXISTS drivers (
  user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  display_name TEXT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  track_code TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'created'
    CHECK (status IN ('created', 'en_route', 'delivered', 'problem')),
  customer_name TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  driver_id UUID NULL REFERENCES drivers(user_id) ON DELETE SET NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_driver_created ON shipments(driver_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS shipment_events (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  shipment_id UUID NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
  event_type TEXT NOT NULL
    CHECK (event_type IN ('created', 'en_route', 'delivered', 'problem')),
  note TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_events_shipment_created ON shipment_events(shipment_id, created_at)`,
		// Row changes are published as JSON compatible with messages.Change.
		// The record carries only the columns subscribers filter and key on:
		// NOTIFY rejects payloads of 8000 bytes and more, and that error would
		// roll back the write itself.
		`
CREATE OR REPLACE FUNCTION trackview_notify_shipment_change() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('` + ChangesChannel + `', json_build_object(
    'table', TG_TABLE_NAME,
    'kind', TG_OP,
    'record', json_build_object('id', NEW.id, 'status', NEW.status),
    'commit_time', now()
  )::text);
  RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
		`
CREATE OR REPLACE FUNCTION trackview_notify_event_change() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('` + ChangesChannel + `', json_build_object(
    'table', TG_TABLE_NAME,
    'kind', TG_OP,
    'record', json_build_object('id', NEW.id, 'shipment_id', NEW.shipment_id, 'event_type', NEW.event_type),
    'commit_time', now()
  )::text);
  RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
		`
CREATE OR REPLACE TRIGGER trg_shipments_notify
AFTER INSERT OR UPDATE ON shipments
FOR EACH ROW EXECUTE FUNCTION trackview_notify_shipment_change()`,
		`
CREATE OR REPLACE TRIGGER trg_shipment_events_notify
AFTER INSERT OR UPDATE ON shipment_events
FOR EACH ROW EXECUTE FUNCTION trackview_notify_event_change()`,
		`DROP FUNCTION IF EXISTS trackview_notify_change()`,
	}

	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
