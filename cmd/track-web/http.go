package main

import (
	"encoding/json"
	"net/http"

	"github.com/BearBump/TrackView/internal/changefeed"
	"github.com/go-chi/chi/v5"
)

// feedCounter is implemented by sources that count processed changes,
// such as *kafka.Consumer.
type feedCounter interface {
	Handled() uint64
}

type feedStats struct {
	Source        string  `json:"source"`
	Subscriptions int     `json:"subscriptions"`
	Handled       *uint64 `json:"handled,omitempty"`
}

// newWebRouter puts the change feed ops endpoint next to the web front end.
func newWebRouter(handler http.Handler, hub *changefeed.Hub, src changefeed.Consumer, source string) http.Handler {
	r := chi.NewRouter()
	r.Get("/feedz", func(w http.ResponseWriter, r *http.Request) {
		out := feedStats{Source: source, Subscriptions: hub.Active()}
		if c, ok := src.(feedCounter); ok {
			n := c.Handled()
			out.Handled = &n
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	r.Mount("/", handler)
	return r
}
