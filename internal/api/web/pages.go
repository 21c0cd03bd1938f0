package web

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/BearBump/TrackView/internal/liveview"
	"github.com/BearBump/TrackView/internal/models"
	"github.com/pkg/errors"
)

const (
	pageTrack     = "track"
	pageLogin     = "login"
	pageDashboard = "dashboard"
)

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, 3)
	for _, name := range []string{pageTrack, pageLogin, pageDashboard} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s template", name)
		}
		pages[name] = t
	}
	return pages, nil
}

type flash struct {
	Kind liveview.MessageKind
	Text string
}

type trackPage struct {
	Title   string
	Session *models.Session
	Code    string
	Message *flash
	Card    template.HTML
	Live    bool
}

type loginPage struct {
	Title   string
	Session *models.Session
	Email   string
	Error   string
}

type dashboardPage struct {
	Title   string
	Session *models.Session
	Cards   []template.HTML
	Error   string
}

// renderPage executes into a buffer first so a template failure never leaves
// a half-written page behind.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("render page", "page", name, "request_id", requestIDFromContext(r.Context()), "error", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
