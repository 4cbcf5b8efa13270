package ticket_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/sse"
)

// SSEHandler streams live ticket purchases to club and event dashboards.
type SSEHandler struct {
	Logger  *logger.Logger
	Emitter *sse.PurchaseEmitter
	Authz   *authz.Authorizer
	Events  EventStore
}

func NewSSEHandler(log *logger.Logger, emitter *sse.PurchaseEmitter, az *authz.Authorizer, events EventStore) *SSEHandler {
	return &SSEHandler{
		Logger:  log,
		Emitter: emitter,
		Authz:   az,
		Events:  events,
	}
}

// StreamClubPurchases handles GET /api/clubs/{clubID}/tickets/stream for
// administrators and the club's heads.
func (h *SSEHandler) StreamClubPurchases(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	caller := auth.FromContext(r.Context())

	if err := h.Authz.Can(r.Context(), caller, authz.ActionManageEvent, authz.Resource{ClubID: clubID}); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToClub(ctx, clubID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"club_id\":\"%s\"}\n\n", clubID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to purchase stream for club: %s", clubID))
	h.stream(w, flusher, eventChan, ctx.Done())
}

// StreamEventPurchases handles GET /api/events/{eventID}/tickets/stream.
func (h *SSEHandler) StreamEventPurchases(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.FromContext(r.Context())

	event, err := h.Events.GetEvent(r.Context(), eventID)
	if err != nil {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	if err := h.Authz.Can(r.Context(), caller, authz.ActionManageEvent, authz.Resource{ClubID: event.ClubID}); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":\"%s\"}\n\n", eventID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to purchase stream for event: %s", eventID))
	h.stream(w, flusher, eventChan, ctx.Done())
}

func (h *SSEHandler) stream(w http.ResponseWriter, flusher http.Flusher, eventChan chan sse.PurchaseEvent, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-eventChan:
			if !ok {
				return
			}

			jsonData, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize purchase event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, jsonData)
			flusher.Flush()

		case <-done:
			h.Logger.Debug("SSE", "Client disconnected from purchase stream")
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
