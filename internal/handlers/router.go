package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"partyline/internal/config"
	localMiddleware "partyline/internal/middleware"
)

// RouterOptions allows customization of router setup for tests
type RouterOptions struct {
	DisableRateLimiting  bool
	DisableRequestLogger bool
	CustomMiddleware     []func(http.Handler) http.Handler
}

// SetupRouter creates the application router with all routes and middleware
func SetupRouter(h *Handler, cfg *config.ServerConfig, opts *RouterOptions) *chi.Mux {
	if opts == nil {
		opts = &RouterOptions{}
	}

	r := chi.NewRouter()

	if !opts.DisableRequestLogger {
		r.Use(localMiddleware.RequestLogger(h.log))
	}
	r.Use(middleware.Recoverer)

	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 60 * time.Second
	}

	// Our custom middleware
	r.Use(localMiddleware.RequestSizeLimiter(cfg.Server.MaxRequestSize))
	r.Use(localMiddleware.SecurityHeaders())

	// Rate limiting (conditionally applied)
	if !opts.DisableRateLimiting {
		rateLimiter := localMiddleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
	}

	// Apply custom middleware if provided
	for _, mw := range opts.CustomMiddleware {
		r.Use(mw)
	}

	// JSON API; regular requests get the request timeout, SSE does not.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/api/games", h.ListGames)
		r.Post("/api/rooms", h.CreateRoom)
		r.Get("/api/rooms/{code}", h.GetRoom)
		r.Post("/api/rooms/{code}/join", h.JoinRoom)
		r.Post("/api/rooms/{code}/leave", h.LeaveRoom)
		r.Post("/api/rooms/{code}/kick", h.KickPlayer)
		r.Post("/api/rooms/{code}/ready", h.ToggleReady)
		r.Post("/api/rooms/{code}/start", h.StartGame)
		r.Post("/api/rooms/{code}/reset", h.ResetRoom)
		r.Post("/api/rooms/{code}/actions", h.Act)
		r.Get("/api/rooms/{code}/qr.png", h.RoomQR)
	})

	// SSE routes with validation middleware
	r.Get("/sse/rooms/{code}", ValidateSSERequest(h.StreamRoom))

	// Health check endpoints (no auth required)
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
