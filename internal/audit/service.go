package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/obs"
	"github.com/noah-isme/backend-mess/internal/store"
)

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, e store.AuditEntry) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]store.AuditLog, int, error)
}

// Service persists audit logs for staff actions that mutate attendance or bills.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor common.Identity, action, resourceType string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.Route(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	requestID := middleware.GetReqID(req.Context())
	if requestID == "" {
		requestID = req.Header.Get("X-Request-ID")
	}

	return s.Store.InsertAuditLog(ctx, store.AuditEntry{
		ActorSubject: optional(actor.Subject),
		ActorRole:    optional(actor.Role),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       status,
		IP:           optional(common.ClientIP(req)),
		RequestID:    optional(requestID),
		Metadata:     withQuery(metadata, req.URL.RawQuery),
	})
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives "bills.generate" style names from /api/v1 routes.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	return strings.Join(segments, ".")
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func withQuery(metadata []byte, query string) []byte {
	if strings.TrimSpace(query) == "" {
		return metadata
	}
	payload := map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &payload); err != nil {
			return metadata
		}
	}
	payload["query"] = query
	data, err := json.Marshal(payload)
	if err != nil {
		return metadata
	}
	return data
}
