package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/domain/trace"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
	"github.com/sophialabs/apitrail/internal/infrastructure/usecases"
)

const (
	// maxBodySize limits the size of request bodies to prevent memory exhaustion.
	maxBodySize = 1 << 20 // 1 MB

	defaultTraceLast = 10

	// DefaultPingInterval is how often idle stream connections get a keep-alive.
	DefaultPingInterval = 15 * time.Second
)

// BannerProvider returns the current banner text, empty when there is none.
type BannerProvider interface {
	Text() string
}

// RateLimit configures the per-client token bucket on event ingestion.
// A zero Rate disables limiting.
type RateLimit struct {
	Rate  float64
	Burst int
}

// Deps are the collaborators the server routes to.
type Deps struct {
	ListGroups  *usecases.ListGroupsUseCase
	RecordEvent *usecases.RecordEventUseCase
	ClearEvents *usecases.ClearEventsUseCase
	Hub         *services.Hub
	Updates     *trace.RingBuffer
	Banner      BannerProvider
	Limiter     ports.RateLimiter
	RateLimit   RateLimit
	Clock       ports.Clock
	Logger      ports.Logger
}

// Server is the HTTP front of the event recorder.
type Server struct {
	listUC   *usecases.ListGroupsUseCase
	recordUC *usecases.RecordEventUseCase
	clearUC  *usecases.ClearEventsUseCase
	hub      *services.Hub
	updates  *trace.RingBuffer
	banner   BannerProvider
	limiter  ports.RateLimiter
	limit    RateLimit
	clock    ports.Clock
	logger   ports.Logger

	pingInterval time.Duration
	router       chi.Router
}

// NewServer creates a new HTTP server with its routes mounted.
func NewServer(d Deps) *Server {
	s := &Server{
		listUC:       d.ListGroups,
		recordUC:     d.RecordEvent,
		clearUC:      d.ClearEvents,
		hub:          d.Hub,
		updates:      d.Updates,
		banner:       d.Banner,
		limiter:      d.Limiter,
		limit:        d.RateLimit,
		clock:        d.Clock,
		logger:       d.Logger,
		pingInterval: DefaultPingInterval,
	}
	s.router = s.buildRouter()
	return s
}

// SetPingInterval overrides the stream keep-alive interval.
func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingInterval = d
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)

	r.With(s.recording("EventsResource.listGroups")).Get("/events", s.handleListEvents)
	r.Get("/events/stream", s.handleStream)
	r.Get("/events/ws", s.handleWebSocket)
	r.With(s.recording("BannerResource.getBanner")).Get("/banner", s.handleBanner)

	r.With(s.rateLimited).Post("/api/events/{serial}", s.handleRecordEvent)

	r.Route("/__admin", func(r chi.Router) {
		r.Get("/updates", s.handleGetUpdates)
		r.Delete("/events", s.handleClearEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	groups, err := s.listUC.Execute(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list groups", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list events")
		return
	}
	if groups == nil {
		groups = []group.Group{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": groups})
}

// eventBody accepts eventData either as a JSON string or as inline JSON.
type eventBody struct {
	EventType   group.EventType `json:"eventType"`
	Description string          `json:"description"`
	EventData   json.RawMessage `json:"eventData"`
}

func (b eventBody) request() usecases.EventRequest {
	req := usecases.EventRequest{EventType: b.EventType, Description: b.Description}
	raw := strings.TrimSpace(string(b.EventData))
	switch {
	case raw == "" || raw == "null":
	case raw[0] == '"':
		var text string
		if err := json.Unmarshal(b.EventData, &text); err == nil {
			req.EventData = text
		}
	default:
		req.EventData = raw
	}
	return req
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	g, err := s.recordUC.Execute(r.Context(), chi.URLParam(r, "serial"), body.request())
	if err != nil {
		if errors.Is(err, usecases.ErrInvalidEvent) {
			respondError(w, http.StatusBadRequest, "invalid_event", err.Error())
			return
		}
		s.logger.Error("failed to record event", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record event")
		return
	}
	respondJSON(w, http.StatusCreated, g)
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	text := ""
	if s.banner != nil {
		text = s.banner.Text()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if text == "" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Banner file not found"))
		return
	}
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleGetUpdates(w http.ResponseWriter, r *http.Request) {
	if serial := r.URL.Query().Get("serial"); serial != "" {
		s.handleGetLatestUpdate(w, serial)
		return
	}

	n := defaultTraceLast
	if v := r.URL.Query().Get("last"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries := []trace.Entry{}
	if s.updates != nil {
		if got := s.updates.Last(n); got != nil {
			entries = got
		}
	}
	respondJSON(w, http.StatusOK, entries)
}

// handleGetLatestUpdate returns the newest update still held for one serial.
func (s *Server) handleGetLatestUpdate(w http.ResponseWriter, serial string) {
	if s.updates != nil {
		if e, ok := s.updates.LatestFor(serial); ok {
			respondJSON(w, http.StatusOK, e)
			return
		}
	}
	respondError(w, http.StatusNotFound, "not_found", "no update recorded for serial "+serial)
}

func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.clearUC.Execute(r.Context()); err != nil {
		s.logger.Error("failed to clear events", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear events")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rateLimited applies the ingestion token bucket keyed by client IP.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.limit.Rate <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := clientIP(r.RemoteAddr)
		if !s.limiter.Allow(r.Context(), key, s.limit.Rate, s.limit.Burst) {
			s.logger.Warn("rate limited", "client", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": code, "message": message})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, v)
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
