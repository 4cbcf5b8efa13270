package catalog_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/cache"
	"ms-clubs/internal/catalog"
	"ms-clubs/internal/models"
	"ms-clubs/internal/utils"
)

type Handler struct {
	Service *catalog.Service
	Cache   *cache.EventCache
}

func NewHandler(service *catalog.Service, eventCache *cache.EventCache) *Handler {
	return &Handler{Service: service, Cache: eventCache}
}

// ---------------- CLUBS ----------------

func (h *Handler) CreateClub(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.ClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	club, err := h.Service.CreateClub(r.Context(), caller, req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, club)
}

func (h *Handler) GetClub(w http.ResponseWriter, r *http.Request) {
	club, err := h.Service.GetClub(r.Context(), chi.URLParam(r, "clubID"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, club)
}

func (h *Handler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.Service.ListClubs(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, clubs)
}

func (h *Handler) UpdateClub(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.ClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	club, err := h.Service.UpdateClub(r.Context(), caller, chi.URLParam(r, "clubID"), req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, club)
}

func (h *Handler) DeleteClub(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if err := h.Service.DeleteClub(r.Context(), caller, chi.URLParam(r, "clubID")); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- ROOMS ----------------

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.RoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.Service.CreateRoom(r.Context(), caller, req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, room)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Service.GetRoom(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, room)
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Service.ListRooms(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rooms)
}

func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.RoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.Service.UpdateRoom(r.Context(), caller, chi.URLParam(r, "roomID"), req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, room)
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if err := h.Service.DeleteRoom(r.Context(), caller, chi.URLParam(r, "roomID")); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- EVENTS ----------------

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.Service.CreateEvent(r.Context(), caller, req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, event)
}

// ListEvents serves listings through the redis read-through cache keyed by
// the query shape.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	h.writeEventList(w, r, r.URL.Query().Get("club_id"))
}

// ListClubEvents handles GET /api/clubs/{clubID}/events.
func (h *Handler) ListClubEvents(w http.ResponseWriter, r *http.Request) {
	h.writeEventList(w, r, chi.URLParam(r, "clubID"))
}

func (h *Handler) writeEventList(w http.ResponseWriter, r *http.Request, clubID string) {
	upcoming := strings.EqualFold(r.URL.Query().Get("upcoming"), "true")

	key := cache.ListKey(clubID, upcoming)
	if payload, ok := h.Cache.GetEventList(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	events, err := h.Service.ListEvents(r.Context(), clubID, upcoming)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	payload, err := json.Marshal(events)
	if err != nil {
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Cache.SetEventList(r.Context(), key, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.Service.UpdateEvent(r.Context(), caller, chi.URLParam(r, "eventID"), req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if err := h.Service.DeleteEvent(r.Context(), caller, chi.URLParam(r, "eventID")); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, catalog.ErrDuplicateClubName):
		utils.WriteFieldError(w, http.StatusBadRequest, "name", "A club with this name already exists.")
	case errors.Is(err, catalog.ErrValidation):
		utils.WriteFieldError(w, http.StatusBadRequest, "detail", err.Error())
	case errors.Is(err, authz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
	}
}
