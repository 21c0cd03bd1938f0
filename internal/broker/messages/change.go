package messages

import (
	"fmt"
	"time"
)

const (
	ChangeKindInsert = "INSERT"
	ChangeKindUpdate = "UPDATE"
)

// Change is a row-level notification emitted by the backend for inserted or
// updated rows. Record holds the row as it is after the change.
type Change struct {
	Table      string         `json:"table"`
	Kind       string         `json:"kind"`
	Record     map[string]any `json:"record"`
	CommitTime time.Time      `json:"commit_time"`
}

// Field returns the record column rendered as a string, "" when absent.
func (c Change) Field(column string) string {
	v, ok := c.Record[column]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Key is the Kafka message key: the shipment the row belongs to, so that all
// changes of one shipment land in the same partition.
func (c Change) Key() []byte {
	if id := c.Field("shipment_id"); id != "" {
		return []byte(id)
	}
	return []byte(c.Field("id"))
}
