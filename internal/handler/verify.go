package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/service"
)

// VerifyHandler answers QR scans. It is public: the scanner is usually a
// door or kiosk device, not a logged-in user.
type VerifyHandler struct {
	qrSvc *service.QRService
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(qrSvc *service.QRService) *VerifyHandler {
	return &VerifyHandler{qrSvc: qrSvc}
}

// Verify handles GET /verify/{qr_id}.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.qrSvc.Verify(r.Context(), chi.URLParam(r, "qr_id"))
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
			RespondJSON(w, http.StatusNotFound, map[string]string{
				"status":  "failure",
				"message": "User not found or inactive",
			})
			return
		}
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}
