package audit

import (
	"net/http"

	"github.com/noah-isme/backend-mess/internal/common"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler serves the audit trail to staff.
type Handler struct {
	Store Store
}

// List returns one page of audit entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	limit, offset := common.ParsePagination(r, defaultPageSize, maxPageSize)
	rows, total, err := h.Store.ListAuditLogs(r.Context(), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": common.Pagination{Limit: limit, Offset: offset, Total: total},
	})
}
