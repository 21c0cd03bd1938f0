package web

import (
	"encoding/json"
	"net/http"

	"github.com/BearBump/TrackView/internal/models"
	"github.com/BearBump/TrackView/internal/render"
	"github.com/BearBump/TrackView/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type shipmentResponse struct {
	Shipment    *models.Shipment        `json:"shipment"`
	Events      []*models.ShipmentEvent `json:"events"`
	Status      string                  `json:"status"`
	StatusLabel string                  `json:"status_label"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{Status: "error", Code: code, Message: message})
}

func (s *Server) handleAPIShipment(w http.ResponseWriter, r *http.Request) {
	if !s.allowLookup(r) {
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many lookups")
		return
	}

	sh, err := s.shipments.FindShipmentByTrackCode(r.Context(), chi.URLParam(r, "code"))
	switch {
	case errors.Is(err, shipments.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "track code is required")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
		return
	case sh == nil:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "shipment not found")
		return
	}

	evs, err := s.shipments.ListEventsForShipment(r.Context(), sh.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
		return
	}

	status := models.CurrentStatus(sh, evs)
	writeJSON(w, http.StatusOK, shipmentResponse{
		Shipment:    sh,
		Events:      evs,
		Status:      status,
		StatusLabel: render.StatusLabel(status),
	})
}
