package analytics_api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/analytics"
	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/utils"
)

type Handler struct {
	Service *analytics.Service
	Authz   *authz.Authorizer
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, az *authz.Authorizer, log *logger.Logger) *Handler {
	return &Handler{Service: service, Authz: az, Logger: log}
}

// RegisterRoutes mounts the analytics endpoints under the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/clubs/{clubID}", h.ClubAnalytics)
		r.Get("/events/{eventID}", h.EventAnalytics)
		r.Get("/top-events", h.TopEvents)
	})
}

// ClubAnalytics serves a club rollup to administrators and the club's heads.
func (h *Handler) ClubAnalytics(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	caller := auth.FromContext(r.Context())

	if err := h.Authz.Can(r.Context(), caller, authz.ActionManageEvent, authz.Resource{ClubID: clubID}); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	stats, err := h.Service.GetClubAnalytics(r.Context(), clubID)
	if err != nil {
		http.Error(w, "failed to compute club analytics: "+err.Error(), http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

// EventAnalytics serves one event's sales picture. The club scope is
// resolved from the aggregated event itself.
func (h *Handler) EventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.FromContext(r.Context())

	stats, err := h.Service.GetEventAnalytics(r.Context(), eventID)
	if err != nil {
		http.Error(w, "failed to compute event analytics: "+err.Error(), http.StatusNotFound)
		return
	}

	club, err := h.Service.EventClubID(r.Context(), eventID)
	if err != nil {
		http.Error(w, "failed to resolve event club: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.Authz.Can(r.Context(), caller, authz.ActionManageEvent, authz.Resource{ClubID: club}); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

// TopEvents serves the cross-club leaderboard to administrators.
func (h *Handler) TopEvents(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if caller == nil || !caller.IsAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	since := time.Now().AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.WriteFieldError(w, http.StatusBadRequest, "since", "Must be an RFC 3339 timestamp.")
			return
		}
		since = parsed
	}

	top, err := h.Service.TopEvents(r.Context(), since, 10)
	if err != nil {
		http.Error(w, "failed to compute top events: "+err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, top)
}
