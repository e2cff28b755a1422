package billing

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-mess/internal/common"
)

// Handler exposes the bill endpoints.
type Handler struct {
	Engine   *Engine
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler wires the handler with a shared validator.
func NewHandler(engine *Engine, svc *Service, v *validator.Validate) *Handler {
	if v == nil {
		v = validator.New()
	}
	return &Handler{Engine: engine, Svc: svc, Validate: v}
}

type generateRequest struct {
	Month string `json:"month" validate:"required"`
	RateInput
}

type markPaidRequest struct {
	IsPaid *bool `json:"is_paid" validate:"required"`
}

// Generate bills every student for the requested month.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "billing engine not configured", nil)
		return
	}
	actor, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "month, daily_rate and nv_plate_rate must be valid numbers", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "month is required", nil)
		return
	}
	res, err := h.Engine.Generate(r.Context(), actor, GenerateInput{Month: req.Month, Rates: req.RateInput})
	if err != nil {
		if common.IsAppError(err) {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "bill generation aborted",
			"code":    "GENERATION_FAILED",
			"created": res.Created,
			"updated": res.Updated,
		})
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// List returns bills filtered by month, reg_num and payment status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, offset := common.ParsePagination(r, 100, 1000)
	bills, total, err := h.Svc.List(r.Context(), actor, Filter{
		Month:  q.Get("month"),
		RegNum: q.Get("reg_num"),
		Unpaid: common.BoolDefault(q.Get("unpaid"), false),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       bills,
		"pagination": common.Pagination{Limit: limit, Offset: offset, Total: total},
	})
}

// Get returns a single bill.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := billID(w, r)
	if !ok {
		return
	}
	bill, err := h.Svc.Get(r.Context(), actor, id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": bill})
}

// MarkPaid sets the payment flag of a bill.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := billID(w, r)
	if !ok {
		return
	}
	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "is_paid is required", nil)
		return
	}
	bill, err := h.Svc.MarkPaid(r.Context(), actor, id, *req.IsPaid)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": bill})
}

// Summary returns the billed and paid totals for a month.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}
	sum, err := h.Svc.Summary(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sum})
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (common.Identity, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "billing service not configured", nil)
		return common.Identity{}, false
	}
	actor, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return common.Identity{}, false
	}
	return actor, true
}

func billID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid bill id", nil)
		return uuid.Nil, false
	}
	return id, true
}
