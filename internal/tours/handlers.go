package tours

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-tour/internal/common"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /tours.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "tours service not configured", nil)
		return
	}
	list, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// Get handles GET /tours/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "tours service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid tour id", nil)
		return
	}
	tour, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tour})
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog unavailable", nil)
}
