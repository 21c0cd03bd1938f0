package web

import (
	"html/template"
	"log/slog"
	"net/http"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	page := dashboardPage{Title: "Мои отправления", Session: sess}

	entries, err := s.shipments.Dashboard(r.Context(), sess.UserID)
	if err != nil {
		slog.Error("load dashboard", "user_id", sess.UserID, "request_id", requestIDFromContext(r.Context()), "error", err.Error())
		page.Error = "Не удалось загрузить отправления: " + err.Error()
		s.renderPage(w, r, http.StatusBadGateway, pageDashboard, page)
		return
	}

	page.Cards = make([]template.HTML, 0, len(entries))
	for _, e := range entries {
		page.Cards = append(page.Cards, s.renderer.Card(s.renderer.Shipment(e.Shipment, e.Events)))
	}
	s.renderPage(w, r, http.StatusOK, pageDashboard, page)
}
