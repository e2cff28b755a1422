package attendance

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-mess/internal/common"
)

// Handler exposes the attendance endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler wires the handler with a shared validator.
func NewHandler(svc *Service, v *validator.Validate) *Handler {
	if v == nil {
		v = validator.New()
	}
	return &Handler{Svc: svc, Validate: v}
}

type bulkRequest struct {
	Date    string   `json:"date" validate:"required"`
	Records []Record `json:"records" validate:"required,min=1"`
}

// Bulk applies a batch of attendance corrections for one date.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "attendance service not configured", nil)
		return
	}
	actor, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "Date and records are required", nil)
		return
	}
	res, err := h.Svc.Ingest(r.Context(), actor, IngestInput{Date: req.Date, Records: req.Records})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// List returns attendance filtered by date, month, reg_num or student_id.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "attendance service not configured", nil)
		return
	}
	actor, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	q := r.URL.Query()
	limit, offset := common.ParsePagination(r, 100, 1000)
	rows, total, err := h.Svc.List(r.Context(), actor, Filter{
		Date:      q.Get("date"),
		Month:     q.Get("month"),
		RegNum:    q.Get("reg_num"),
		StudentID: q.Get("student_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": common.Pagination{Limit: limit, Offset: offset, Total: total},
	})
}
