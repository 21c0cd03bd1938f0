package web

import (
	"net/http"
	"strings"

	"github.com/BearBump/TrackView/internal/liveview"
	"github.com/BearBump/TrackView/internal/services/shipments"
	"github.com/pkg/errors"
)

const lookupThrottledText = "Слишком много запросов, попробуйте через минуту."

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, pageTrack, trackPage{
		Title:   "Отследить отправление",
		Session: s.currentSession(r),
	})
}

// handleTrack renders the lookup result on the server; the page then opens
// the live stream for found shipments.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	page := trackPage{
		Title:   "Отследить отправление",
		Session: s.currentSession(r),
		Code:    code,
	}

	if !s.allowLookup(r) {
		page.Message = &flash{Kind: liveview.MessageError, Text: lookupThrottledText}
		s.renderPage(w, r, http.StatusTooManyRequests, pageTrack, page)
		return
	}

	sh, err := s.shipments.FindShipmentByTrackCode(r.Context(), code)
	switch {
	case errors.Is(err, shipments.ErrValidation):
		page.Message = &flash{Kind: liveview.MessageError, Text: liveview.EmptyCodeText}
		s.renderPage(w, r, http.StatusBadRequest, pageTrack, page)
		return
	case err != nil:
		page.Message = &flash{Kind: liveview.MessageError, Text: liveview.QueryErrorText + err.Error()}
		s.renderPage(w, r, http.StatusBadGateway, pageTrack, page)
		return
	case sh == nil:
		page.Message = &flash{Kind: liveview.MessageError, Text: liveview.NotFoundText}
		s.renderPage(w, r, http.StatusNotFound, pageTrack, page)
		return
	}

	evs, err := s.shipments.ListEventsForShipment(r.Context(), sh.ID)
	if err != nil {
		page.Message = &flash{Kind: liveview.MessageError, Text: liveview.QueryErrorText + err.Error()}
		s.renderPage(w, r, http.StatusBadGateway, pageTrack, page)
		return
	}

	page.Code = sh.TrackCode
	page.Card = s.renderer.Card(s.renderer.Shipment(sh, evs))
	page.Message = &flash{Kind: liveview.MessageSuccess, Text: liveview.FoundText}
	page.Live = true
	s.renderPage(w, r, http.StatusOK, pageTrack, page)
}
