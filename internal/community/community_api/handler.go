package community_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/community"
	"ms-clubs/internal/models"
	"ms-clubs/internal/utils"
)

type Handler struct {
	Service *community.Service
}

func NewHandler(service *community.Service) *Handler {
	return &Handler{Service: service}
}

// Subscribe handles POST /api/clubs/{clubID}/subscriptions.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	caller := auth.FromContext(r.Context())

	var req models.SubscribeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	sub, err := h.Service.Subscribe(r.Context(), caller, clubID, req.UserID)
	if err != nil {
		writeCommunityError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/subscriptions/{subscriptionID}.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subscriptionID")
	caller := auth.FromContext(r.Context())

	if err := h.Service.Unsubscribe(r.Context(), caller, subID); err != nil {
		writeCommunityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListClubSubscribers handles GET /api/clubs/{clubID}/subscriptions.
func (h *Handler) ListClubSubscribers(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	caller := auth.FromContext(r.Context())

	subs, err := h.Service.ListClubSubscribers(r.Context(), caller, clubID)
	if err != nil {
		writeCommunityError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, subs)
}

// ListUserSubscriptions handles GET /api/students/{studentID}/subscriptions.
func (h *Handler) ListUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "studentID")
	caller := auth.FromContext(r.Context())

	subs, err := h.Service.ListUserSubscriptions(r.Context(), caller, userID)
	if err != nil {
		writeCommunityError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, subs)
}

// CreateReview handles POST /api/events/{eventID}/reviews.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.FromContext(r.Context())

	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	review, err := h.Service.CreateReview(r.Context(), caller, eventID, &req)
	if err != nil {
		writeCommunityError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, review)
}

// UpdateReview handles PATCH /api/reviews/{reviewID}.
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")
	caller := auth.FromContext(r.Context())

	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	review, err := h.Service.UpdateReview(r.Context(), caller, reviewID, &req)
	if err != nil {
		writeCommunityError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/reviews/{reviewID}.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")
	caller := auth.FromContext(r.Context())

	if err := h.Service.DeleteReview(r.Context(), caller, reviewID); err != nil {
		writeCommunityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEventReviews handles GET /api/events/{eventID}/reviews.
func (h *Handler) ListEventReviews(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	reviews, err := h.Service.ListEventReviews(r.Context(), eventID)
	if err != nil {
		writeCommunityError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reviews)
}

func writeCommunityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, community.ErrDuplicateSubscription):
		utils.WriteFieldError(w, http.StatusBadRequest, "subscription", "Already subscribed to this club.")
	case errors.Is(err, community.ErrDuplicateReview):
		utils.WriteFieldError(w, http.StatusBadRequest, "review", "Event already reviewed by this student.")
	case errors.Is(err, community.ErrTicketRequired):
		utils.WriteFieldError(w, http.StatusBadRequest, "ticket", "A ticket is required to review this event.")
	case errors.Is(err, community.ErrValidation):
		utils.WriteFieldError(w, http.StatusBadRequest, "detail", err.Error())
	case errors.Is(err, community.ErrClubNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "club", "Club not found.")
	case errors.Is(err, community.ErrEventNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "event", "Event not found.")
	case errors.Is(err, community.ErrSubscriptionNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "subscription", "Subscription not found.")
	case errors.Is(err, community.ErrReviewNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "review", "Review not found.")
	case errors.Is(err, authz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
	}
}
