package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-tour/internal/common"
)

// Handler exposes booking HTTP endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the booking endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "booking service not configured", nil)
		return
	}
	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	res, err := h.Svc.Create(r.Context(), &draft)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"bookingId": res.ID,
		"reference": res.Reference,
	})
}

// Get handles GET /bookings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "booking service not configured", nil)
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Update handles PUT /bookings/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "booking service not configured", nil)
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Svc.Update(r.Context(), id, &draft); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"bookingId": id,
	})
}

// Delete handles DELETE /bookings/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "booking service not configured", nil)
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid booking id", nil)
		return uuid.Nil, false
	}
	return id, true
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
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "booking service unavailable", nil)
}
