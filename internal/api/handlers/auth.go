package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mpetrov/pinwall/internal/api/middleware"
	"github.com/mpetrov/pinwall/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	secure      bool
}

func NewAuthHandler(authService *service.AuthService, secure bool) *AuthHandler {
	return &AuthHandler{authService: authService, secure: secure}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type MFARequest struct {
	ID   uint   `json:"id"`
	Code string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Terms    string `json:"terms"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	carrier := middleware.NewCookieCarrier(w, r, h.secure)
	result := h.authService.SignIn(r.Context(), carrier, service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})

	writeJSON(w, signInStatus(result), result)
}

func (h *AuthHandler) CompleteMFA(w http.ResponseWriter, r *http.Request) {
	var req MFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	carrier := middleware.NewCookieCarrier(w, r, h.secure)
	result := h.authService.CompleteMFA(r.Context(), carrier, service.MFAInput{
		UserID: req.ID,
		Code:   req.Code,
	})

	writeJSON(w, mfaStatus(result), result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	carrier := middleware.NewCookieCarrier(w, r, h.secure)
	if err := h.authService.Logout(r.Context(), carrier); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.authService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Terms:    req.Terms,
	})

	writeJSON(w, registerStatus(result), result)
}

func (h *AuthHandler) RegisterInit(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.authService.RegisterInit(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Terms:    "accept",
	})

	writeJSON(w, registerStatus(result), result)
}

// Probe serves the read-only auth probes the gateway and client rely on:
// /api/v1/auth/admin, /api/v1/auth/register and /api/v1/auth/session.
func (h *AuthHandler) Probe(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "slug") {
	case "admin":
		exists, err := h.authService.IsAdminBootstrapped(r.Context())
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	case "register":
		allowed, err := h.authService.IsRegistrationAllowed(r.Context())
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
	case "session":
		token := r.URL.Query().Get("token")
		carrier := middleware.NewCookieCarrier(w, r, h.secure)
		result, err := h.authService.CurrentSession(r.Context(), carrier, token)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"session": result.Session})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Auth API is working"})
	}
}

// Me returns the authenticated user resolved from the session cookie.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	carrier := middleware.NewCookieCarrier(w, r, h.secure)
	result, err := h.authService.CurrentSession(r.Context(), carrier, "")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if result.User == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, result.User)
}

func signInStatus(result service.SignInResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case len(result.FieldErrors) > 0:
		return http.StatusBadRequest
	case result.Message == service.MsgAccountLocked:
		return http.StatusForbidden
	case result.Message == service.MsgInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func mfaStatus(result service.MFAResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case len(result.FieldErrors) > 0:
		return http.StatusBadRequest
	case result.Message == service.MsgOTPInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func registerStatus(result service.RegisterResult) int {
	switch {
	case result.Success:
		return http.StatusOK
	case len(result.FieldErrors) > 0:
		return http.StatusBadRequest
	case result.Message == service.MsgUserExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
