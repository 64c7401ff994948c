package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mpetrov/pinwall/internal/api/middleware"
	"github.com/mpetrov/pinwall/internal/service"
)

// PageHandler serves the entry points the gateway routes between. Rendering
// is the client's job; these endpoints return the data each page needs.
type PageHandler struct {
	authService *service.AuthService
	secure      bool
}

func NewPageHandler(authService *service.AuthService, secure bool) *PageHandler {
	return &PageHandler{authService: authService, secure: secure}
}

// Home is only reachable through the gateway with a live session.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, map[string]interface{}{"page": "home", "user": result.User})
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"page": "login"})
}

func (h *PageHandler) OTPChallenge(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"page": "otp",
		"id":   chi.URLParam(r, "id"),
	})
}

func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"page": "register"})
}

func (h *PageHandler) RegisterInit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"page": "register-init"})
}
