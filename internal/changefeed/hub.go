package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/BearBump/TrackView/internal/broker/messages"
	"github.com/pkg/errors"
)

// Filter scopes a channel to one table, one change kind and an equality
// condition on a single column of the changed row.
type Filter struct {
	Table  string
	Kind   string
	Column string
	Value  string
}

func (f Filter) Matches(c messages.Change) bool {
	if f.Table != c.Table || f.Kind != c.Kind {
		return false
	}
	if f.Column == "" {
		return true
	}
	return c.Field(f.Column) == f.Value
}

type Handler func(messages.Change)

type Subscription interface {
	Close() error
}

// Hub fans backend changes out to in-process subscribers. Each matching
// handler runs on its own goroutine so a slow subscriber never blocks the feed.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

type subscription struct {
	id      uint64
	name    string
	filters []Filter
	handler Handler

	hub  *Hub
	once sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.hub.remove(s.id)
		slog.Debug("changefeed channel closed", "channel", s.name)
	})
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, name string, filters []Filter, handler Handler) (Subscription, error) {
	if len(filters) == 0 {
		return nil, errors.New("at least one filter is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.nextID++
	s := &subscription{
		id:      h.nextID,
		name:    name,
		filters: append([]Filter(nil), filters...),
		handler: handler,
		hub:     h,
	}
	h.subs[s.id] = s
	h.mu.Unlock()

	slog.Debug("changefeed channel opened", "channel", name, "filters", len(filters))
	return s, nil
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Active returns the number of open subscriptions.
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dispatch delivers c to every subscription with a matching filter and
// returns how many were notified. A subscription is notified at most once per
// change even when several of its filters match.
func (h *Hub) Dispatch(c messages.Change) int {
	h.mu.RLock()
	var matched []Handler
	for _, s := range h.subs {
		for _, f := range s.filters {
			if f.Matches(c) {
				matched = append(matched, s.handler)
				break
			}
		}
	}
	h.mu.RUnlock()

	for _, fn := range matched {
		go fn(c)
	}
	return len(matched)
}

// HandleMessage decodes a raw change message and dispatches it. Undecodable
// messages are logged and skipped so the feed keeps flowing.
func (h *Hub) HandleMessage(_key, value []byte) error {
	var c messages.Change
	if err := json.Unmarshal(value, &c); err != nil {
		slog.Warn("skip undecodable change", "error", err.Error())
		return nil
	}
	h.Dispatch(c)
	return nil
}
