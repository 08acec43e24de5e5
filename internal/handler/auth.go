package handler

import (
	"net/http"

	"github.com/scorekeep/arena/internal/service"
)

// AuthHandler handles registration, login, token rotation and the caller's
// own account.
type AuthHandler struct {
	authSvc *service.AuthService
	qrSvc   *service.QRService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, qrSvc *service.QRService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, qrSvc: qrSvc}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if !decodeOrReject(w, r, &input) {
		return
	}

	result, err := h.authSvc.Register(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !decodeOrReject(w, r, &input) {
		return
	}

	result, err := h.authSvc.Login(r.Context(), input, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if !decodeOrReject(w, r, &input) {
		return
	}

	result, err := h.authSvc.Refresh(r.Context(), input.Refresh)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if !decodeOrReject(w, r, &input) {
		return
	}

	if err := h.authSvc.Logout(r.Context(), input.Refresh); err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(r.Context(), caller.ID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user,
		"qr_image_url": h.qrSvc.ImageURL(user),
	})
}

// MyQR handles GET /me/qr and streams the caller's QR code as a PNG.
func (h *AuthHandler) MyQR(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerOrReject(w, r)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(r.Context(), caller.ID)
	if err != nil {
		RespondError(w, err)
		return
	}
	png, err := h.qrSvc.Render(user)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
