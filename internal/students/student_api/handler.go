package student_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
	"ms-clubs/internal/students"
	"ms-clubs/internal/utils"
)

type Handler struct {
	Service *students.Service
}

func NewHandler(service *students.Service) *Handler {
	return &Handler{Service: service}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, student)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, token)
}

// VerifyEmail handles GET /api/auth/verify/{code}.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.Service.VerifyEmail(r.Context(), code); err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"detail": "Email verified."})
}

// Me handles GET /api/students/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if caller == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	student, err := h.Service.GetStudent(r.Context(), caller, caller.UserID)
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, student)
}

// GetStudent handles GET /api/students/{studentID}.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	student, err := h.Service.GetStudent(r.Context(), caller, chi.URLParam(r, "studentID"))
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, student)
}

// UpdateStudent handles PATCH /api/students/{studentID}.
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.UpdateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.Service.UpdateStudent(r.Context(), caller, chi.URLParam(r, "studentID"), &req)
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, student)
}

// TopUp handles POST /api/students/{studentID}/wallet.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	var req models.TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.Service.TopUp(r.Context(), caller, chi.URLParam(r, "studentID"), req.Amount)
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, student)
}

// ListStudents handles GET /api/students.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	roster, err := h.Service.ListStudents(r.Context(), caller)
	if err != nil {
		writeStudentError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, roster)
}

func writeStudentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, students.ErrDuplicateUsername):
		utils.WriteFieldError(w, http.StatusBadRequest, "username", "Username already taken.")
	case errors.Is(err, students.ErrDuplicateEmail):
		utils.WriteFieldError(w, http.StatusBadRequest, "email", "Email already registered.")
	case errors.Is(err, students.ErrValidation):
		utils.WriteFieldError(w, http.StatusBadRequest, "detail", err.Error())
	case errors.Is(err, students.ErrInvalidCredentials):
		utils.WriteFieldError(w, http.StatusUnauthorized, "detail", "Invalid username or password.")
	case errors.Is(err, students.ErrInvalidCode):
		utils.WriteFieldError(w, http.StatusNotFound, "code", "Verification code not found.")
	case errors.Is(err, students.ErrCodeExpired):
		utils.WriteFieldError(w, http.StatusBadRequest, "code", "Verification code expired.")
	case errors.Is(err, students.ErrStudentNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "student", "Student not found.")
	case errors.Is(err, ledger.ErrInvalidAmount):
		utils.WriteFieldError(w, http.StatusBadRequest, "amount", "Amount must be positive.")
	case errors.Is(err, authz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
	}
}
