package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/TrackView/internal/liveview"
	"github.com/BearBump/TrackView/internal/models"
	"github.com/BearBump/TrackView/internal/render"
	"github.com/BearBump/TrackView/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed docs/swagger.json
var swaggerJSON []byte

type ShipmentService interface {
	liveview.Shipments
	Dashboard(ctx context.Context, driverID string) ([]shipments.DashboardEntry, error)
}

type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, string, error)
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SignOut(ctx context.Context, token string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Config struct {
	CookieName   string
	CookieSecure bool
	// LookupLimit caps anonymous lookups per client IP and minute; 0 disables it.
	LookupLimit int64
	// SwaggerPath overrides the embedded API document when set.
	SwaggerPath string
	// Heartbeat is the live stream keep-alive interval.
	Heartbeat time.Duration
}

type Server struct {
	shipments ShipmentService
	auth      Authenticator
	feed      liveview.Feed
	renderer  *render.Renderer
	limiter   RateLimiter
	cfg       Config

	pages map[string]*template.Template
}

// NewServer builds the web front end. limiter may be nil.
func NewServer(svc ShipmentService, auth Authenticator, feed liveview.Feed, r *render.Renderer, limiter RateLimiter, cfg Config) (*Server, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "trackview_session"
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 25 * time.Second
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{
		shipments: svc,
		auth:      auth,
		feed:      feed,
		renderer:  r,
		limiter:   limiter,
		cfg:       cfg,
		pages:     pages,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", s.handleIndex)
	r.Get("/track", s.handleTrack)
	r.Get("/track/live", s.handleLive)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireSession)
		r.Get("/dashboard", s.handleDashboard)
	})

	r.Get("/api/shipments/{code}", s.handleAPIShipment)

	r.Get("/swagger.json", s.handleSwagger)
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))

	return r
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if s.cfg.SwaggerPath != "" {
		http.ServeFile(w, r, s.cfg.SwaggerPath)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(swaggerJSON)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// allowLookup throttles anonymous tracking-code lookups. Limiter failures let
// the request through.
func (s *Server) allowLookup(r *http.Request) bool {
	if s.limiter == nil || s.cfg.LookupLimit <= 0 {
		return true
	}
	key := "rl:lookup:" + clientIP(r) + ":" + time.Now().UTC().Format("200601021504")
	allowed, n, err := s.limiter.Allow(r.Context(), key, s.cfg.LookupLimit, 70*time.Second)
	if err != nil {
		slog.Warn("lookup rate limiter", "error", err.Error())
		return true
	}
	if !allowed {
		slog.Warn("lookup rate limit exceeded", "ip", clientIP(r), "count", n)
	}
	return allowed
}
