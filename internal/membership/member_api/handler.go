package member_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/membership"
	"ms-clubs/internal/models"
	"ms-clubs/internal/utils"
)

type Handler struct {
	Service *membership.Service
}

func NewHandler(service *membership.Service) *Handler {
	return &Handler{Service: service}
}

// AddMember handles POST /api/clubs/{clubID}/members.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	caller := auth.FromContext(r.Context())

	var req models.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.Service.AddMember(r.Context(), caller, clubID, req.UserID, req.Role)
	if err != nil {
		writeMemberError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, member)
}

// AssignHead handles POST /api/clubs/{clubID}/head/{userID}. A fresh
// membership row answers 201, a promotion of an existing member answers 200.
func (h *Handler) AssignHead(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")
	userID := chi.URLParam(r, "userID")
	caller := auth.FromContext(r.Context())

	member, created, err := h.Service.AssignHead(r.Context(), caller, clubID, userID)
	if err != nil {
		writeMemberError(w, err)
		return
	}

	status := http.StatusOK
	msg := fmt.Sprintf("User %s updated to head of %s", member.User.Username, member.Club.Name)
	if created {
		status = http.StatusCreated
		msg = fmt.Sprintf("User %s assigned as head of %s", member.User.Username, member.Club.Name)
	}
	utils.WriteJSON(w, status, map[string]string{"message": msg})
}

// RemoveMember handles DELETE /api/memberships/{membershipID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	membershipID := chi.URLParam(r, "membershipID")
	caller := auth.FromContext(r.Context())

	if err := h.Service.RemoveMember(r.Context(), caller, membershipID); err != nil {
		writeMemberError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeRole handles PATCH /api/memberships/{membershipID}.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	membershipID := chi.URLParam(r, "membershipID")
	caller := auth.FromContext(r.Context())

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.Service.ChangeRole(r.Context(), caller, membershipID, req.Role)
	if err != nil {
		writeMemberError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, member)
}

// ListClubMembers handles GET /api/clubs/{clubID}/members.
func (h *Handler) ListClubMembers(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubID")

	members, err := h.Service.ListClubMembers(r.Context(), clubID)
	if err != nil {
		writeMemberError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, members)
}

// ListUserMemberships handles GET /api/students/{studentID}/clubs.
func (h *Handler) ListUserMemberships(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "studentID")
	caller := auth.FromContext(r.Context())

	members, err := h.Service.ListUserMemberships(r.Context(), caller, userID)
	if err != nil {
		writeMemberError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, members)
}

func writeMemberError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, membership.ErrDuplicateMembership):
		utils.WriteFieldError(w, http.StatusBadRequest, "membership", "User is already a member of this club.")
	case errors.Is(err, membership.ErrInvalidRole):
		utils.WriteFieldError(w, http.StatusBadRequest, "role", "Role must be 'member' or 'head'.")
	case errors.Is(err, membership.ErrClubNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "club", "Club not found.")
	case errors.Is(err, membership.ErrStudentNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "student", "Student not found.")
	case errors.Is(err, membership.ErrMembershipNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "membership", "Membership not found.")
	case errors.Is(err, authz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
	}
}
