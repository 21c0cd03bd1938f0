package models

import "time"

// Статусы отправления. Тот же словарь используется как тип события.
const (
	ShipmentStatusCreated   = "created"
	ShipmentStatusEnRoute   = "en_route"
	ShipmentStatusDelivered = "delivered"
	ShipmentStatusProblem   = "problem"
)

type Shipment struct {
	ID           string    `json:"id"`
	TrackCode    string    `json:"track_code"`
	Status       string    `json:"status"`
	CustomerName *string   `json:"customer_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	DriverID     *string   `json:"driver_id,omitempty"`
}

type ShipmentEvent struct {
	ID         string    `json:"id"`
	ShipmentID string    `json:"shipment_id"`
	EventType  string    `json:"event_type"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Driver struct {
	UserID      string  `json:"user_id"`
	DisplayName *string `json:"display_name,omitempty"`
}

// CurrentStatus returns the type of the last event, falling back to the
// shipment's own status when there are no events. Events must be ordered
// by creation time ascending.
func CurrentStatus(s *Shipment, events []*ShipmentEvent) string {
	if n := len(events); n > 0 && events[n-1] != nil {
		return events[n-1].EventType
	}
	if s == nil {
		return ""
	}
	return s.Status
}
