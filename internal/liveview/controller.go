package liveview

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/BearBump/TrackView/internal/broker/messages"
	"github.com/BearBump/TrackView/internal/changefeed"
	"github.com/BearBump/TrackView/internal/models"
	"github.com/BearBump/TrackView/internal/render"
	"github.com/BearBump/TrackView/internal/services/shipments"
	"github.com/pkg/errors"
)

var (
	ErrSearchInProgress = errors.New("search already in progress")
	ErrClosed           = errors.New("live view is closed")
)

type State int

const (
	StateIdle State = iota
	StateSearching
	StateFound
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateFound:
		return "found"
	case StateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type MessageKind string

const (
	MessageInfo    MessageKind = "info"
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Тексты сообщений пользователю.
const (
	SearchingText       = "Ищем отправление…"
	FoundText           = "Отправление найдено. Статус обновляется автоматически."
	NotFoundText        = "Отправление с таким трек-номером не найдено."
	EmptyCodeText       = "Введите трек-номер."
	QueryErrorText      = "Не удалось выполнить запрос: "
	LiveUnavailableText = "Автообновление недоступно, обновите страницу позже."
)

type Shipments interface {
	FindShipmentByTrackCode(ctx context.Context, code string) (*models.Shipment, error)
	ListEventsForShipment(ctx context.Context, shipmentID string) ([]*models.ShipmentEvent, error)
}

type Feed interface {
	Subscribe(ctx context.Context, name string, filters []changefeed.Filter, handler changefeed.Handler) (changefeed.Subscription, error)
}

// Sink receives everything the view shows. Implementations must be safe for
// concurrent use: renders triggered by the change feed arrive on other
// goroutines.
type Sink interface {
	Clear()
	Message(kind MessageKind, text string)
	Render(view render.ShipmentView)
}

// Controller drives one tracked-shipment view. It owns at most one change
// feed subscription and replaces it on every new search.
type Controller struct {
	ctx       context.Context
	shipments Shipments
	feed      Feed
	renderer  *render.Renderer
	sink      Sink

	mu         sync.Mutex
	state      State
	searching  bool
	closed     bool
	gen        uint64
	code       string
	shipmentID string
	sub        changefeed.Subscription
}

// New creates a controller bound to ctx; live refreshes run with ctx and stop
// with it.
func New(ctx context.Context, svc Shipments, feed Feed, r *render.Renderer, sink Sink) *Controller {
	return &Controller{
		ctx:       ctx,
		shipments: svc,
		feed:      feed,
		renderer:  r,
		sink:      sink,
		state:     StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShipmentID returns the id of the shipment being tracked, "" if none.
func (c *Controller) ShipmentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shipmentID
}

func (c *Controller) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Search looks a shipment up by tracking code, renders it and subscribes to
// its changes. Only one search runs at a time; a closed controller returns
// ErrClosed without querying.
func (c *Controller) Search(ctx context.Context, code string) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return StateIdle, ErrClosed
	}
	if c.searching {
		st := c.state
		c.mu.Unlock()
		return st, ErrSearchInProgress
	}
	c.searching = true
	c.state = StateSearching
	c.gen++
	gen := c.gen
	old := c.sub
	c.sub = nil
	c.code = ""
	c.shipmentID = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.searching = false
		c.mu.Unlock()
	}()

	teardown(old)
	c.sink.Clear()
	c.sink.Message(MessageInfo, SearchingText)

	sh, err := c.shipments.FindShipmentByTrackCode(ctx, code)
	if err != nil {
		return c.fail(err)
	}
	if sh == nil {
		c.setState(StateNotFound)
		c.sink.Message(MessageError, NotFoundText)
		return StateNotFound, nil
	}

	evs, err := c.shipments.ListEventsForShipment(ctx, sh.ID)
	if err != nil {
		return c.fail(err)
	}

	c.sink.Render(c.renderer.Shipment(sh, evs))
	c.sink.Message(MessageSuccess, FoundText)

	c.mu.Lock()
	c.state = StateFound
	c.code = strings.TrimSpace(code)
	c.shipmentID = sh.ID
	c.mu.Unlock()

	sub, err := c.feed.Subscribe(ctx, "shipment-"+sh.ID, shipmentFilters(sh.ID), func(messages.Change) {
		c.refresh(gen)
	})
	if err != nil {
		slog.Error("subscribe to shipment changes", "shipment_id", sh.ID, "error", err.Error())
		c.sink.Message(MessageError, LiveUnavailableText)
		return StateFound, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		teardown(sub)
		return StateFound, nil
	}
	c.sub = sub
	c.mu.Unlock()

	slog.Info("tracking shipment", "shipment_id", sh.ID, "track_code", c.code)
	return StateFound, nil
}

func (c *Controller) fail(err error) (State, error) {
	c.setState(StateIdle)
	if errors.Is(err, shipments.ErrValidation) {
		c.sink.Message(MessageError, EmptyCodeText)
	} else {
		c.sink.Message(MessageError, QueryErrorText+err.Error())
	}
	return StateIdle, err
}

func (c *Controller) setState(st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

// refresh re-reads the whole shipment instead of applying the notification,
// so duplicated or reordered notifications converge to the current state.
// Failures keep the previous view on screen.
func (c *Controller) refresh(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.code == "" {
		c.mu.Unlock()
		return
	}
	code := c.code
	c.mu.Unlock()

	sh, err := c.shipments.FindShipmentByTrackCode(c.ctx, code)
	if err != nil {
		slog.Error("live refresh: find shipment", "track_code", code, "error", err.Error())
		return
	}
	if sh == nil {
		slog.Warn("live refresh: shipment is gone", "track_code", code)
		return
	}
	evs, err := c.shipments.ListEventsForShipment(c.ctx, sh.ID)
	if err != nil {
		slog.Error("live refresh: list events", "shipment_id", sh.ID, "error", err.Error())
		return
	}

	view := c.renderer.Shipment(sh, evs)

	c.mu.Lock()
	defer c.mu.Unlock()
	// поиск мог смениться, пока шёл запрос
	if gen != c.gen || c.closed {
		return
	}
	c.sink.Render(view)
}

// Close drops the subscription and discards refreshes still in flight.
// Search returns ErrClosed afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	old := c.sub
	c.sub = nil
	c.state = StateIdle
	c.mu.Unlock()

	teardown(old)
}

func teardown(sub changefeed.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		slog.Debug("close shipment subscription", "error", err.Error())
	}
}

func shipmentFilters(id string) []changefeed.Filter {
	return []changefeed.Filter{
		{Table: "shipment_events", Kind: messages.ChangeKindInsert, Column: "shipment_id", Value: id},
		{Table: "shipments", Kind: messages.ChangeKindUpdate, Column: "id", Value: id},
	}
}
