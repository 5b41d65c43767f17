package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/usecases"
)

// recording wraps a resource method so each call leaves an API_REQUEST event
// followed by API_RESPONSE, or API_ERROR when it fails or panics.
func (s *Server) recording(method string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.recordUC == nil {
				next.ServeHTTP(w, r)
				return
			}

			serial := uuid.NewString()
			start := s.clock.Now()
			s.record(r.Context(), serial, group.EventAPIRequest,
				fmt.Sprintf("[%s] API call to %s", serial, method),
				map[string]any{"requestId": serial, "parameters": r.URL.Query()})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				elapsed := s.clock.Now().Sub(start).Milliseconds()
				if rec := recover(); rec != nil {
					s.record(r.Context(), serial, group.EventAPIError,
						fmt.Sprintf("[%s] API error in %s", serial, method),
						map[string]any{"requestId": serial, "duration": elapsed, "error": fmt.Sprint(rec)})
					panic(rec)
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				if status >= http.StatusInternalServerError {
					s.record(r.Context(), serial, group.EventAPIError,
						fmt.Sprintf("[%s] API error in %s", serial, method),
						map[string]any{"requestId": serial, "duration": elapsed, "error": http.StatusText(status), "status": status})
					return
				}
				s.record(r.Context(), serial, group.EventAPIResponse,
					fmt.Sprintf("[%s] API response from %s", serial, method),
					map[string]any{"requestId": serial, "duration": elapsed, "response": map[string]int{"status": status, "bytes": ww.BytesWritten()}})
				s.logger.Debug("recorded api call", "serial", serial, "method", method, "status", status, "duration_ms", elapsed)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// record stores one event; failures are logged and never reach the caller.
func (s *Server) record(ctx context.Context, serial string, eventType group.EventType, description string, data map[string]any) {
	encoded, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("failed to encode event data", "serial", serial, "error", err)
		encoded = nil
	}

	_, err = s.recordUC.Execute(context.WithoutCancel(ctx), serial, usecases.EventRequest{
		EventType:   eventType,
		Description: description,
		EventData:   string(encoded),
	})
	if err != nil {
		s.logger.Warn("failed to record api event", "serial", serial, "event", eventType, "error", err)
	}
}
