package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/TrackView/internal/liveview"
	"github.com/BearBump/TrackView/internal/render"
)

type sseEvent struct {
	name string
	data []byte
}

type liveMessage struct {
	Kind liveview.MessageKind `json:"kind"`
	Text string               `json:"text"`
}

type liveView struct {
	render.ShipmentView
	HTML template.HTML `json:"html"`
}

// sseSink queues controller output for the stream writer. A full queue drops
// its oldest event, so the newest render always reaches the browser.
type sseSink struct {
	renderer *render.Renderer
	events   chan sseEvent
}

func newSSESink(r *render.Renderer, size int) *sseSink {
	return &sseSink{renderer: r, events: make(chan sseEvent, size)}
}

func (s *sseSink) push(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode live event", "event", name, "error", err.Error())
		return
	}
	ev := sseEvent{name: name, data: data}
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case old := <-s.events:
			slog.Warn("live stream queue full, oldest event dropped", "event", old.name)
		default:
		}
	}
}

func (s *sseSink) Clear() {
	s.push("clear", struct{}{})
}

func (s *sseSink) Message(kind liveview.MessageKind, text string) {
	s.push("message", liveMessage{Kind: kind, Text: text})
}

func (s *sseSink) Render(v render.ShipmentView) {
	s.push("view", liveView{ShipmentView: v, HTML: s.renderer.Card(v)})
}

func writeSSE(w http.ResponseWriter, ev sseEvent) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
	return err
}

// handleLive streams one tracked shipment as Server-Sent Events: "clear",
// "message" and "view" while tracking, then "end" when there is nothing left
// to watch.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if !s.allowLookup(r) {
		http.Error(w, lookupThrottledText, http.StatusTooManyRequests)
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	ctx := r.Context()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(s.renderer, 64)
	ctrl := liveview.New(ctx, s.shipments, s.feed, s.renderer, sink)
	defer ctrl.Close()

	st, err := ctrl.Search(ctx, code)
	if err != nil {
		slog.Warn("live search failed", "track_code", code, "request_id", requestIDFromContext(ctx), "error", err.Error())
	}

	if st != liveview.StateFound || !ctrl.Subscribed() {
		drain(w, sink)
		_ = writeSSE(w, sseEvent{name: "end", data: []byte("{}")})
		flusher.Flush()
		return
	}

	slog.Info("live stream opened", "shipment_id", ctrl.ShipmentID(), "request_id", requestIDFromContext(ctx))
	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("live stream closed", "shipment_id", ctrl.ShipmentID())
			return
		case ev := <-sink.events:
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func drain(w http.ResponseWriter, sink *sseSink) {
	for {
		select {
		case ev := <-sink.events:
			if err := writeSSE(w, ev); err != nil {
				return
			}
		default:
			return
		}
	}
}
