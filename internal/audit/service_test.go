package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/store"
)

type stubStore struct {
	lastInsert store.AuditEntry
	called     bool
	limit      int
	offset     int
}

func (s *stubStore) InsertAuditLog(_ context.Context, e store.AuditEntry) error {
	s.called = true
	s.lastInsert = e
	return nil
}

func (s *stubStore) ListAuditLogs(_ context.Context, limit, offset int) ([]store.AuditLog, int, error) {
	s.limit, s.offset = limit, offset
	return []store.AuditLog{{Action: "bills.generate", Method: http.MethodPost}}, 42, nil
}

func TestServiceRecord(t *testing.T) {
	st := &stubStore{}
	svc := Service{Store: st, Enabled: true, SamplingRate: 1}
	actor := common.Identity{Subject: "staff-1", Role: common.RoleStaff}

	req := httptest.NewRequest(http.MethodPost, "https://mess.test/api/v1/attendance/bulk?dry=1", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/api/v1/attendance/bulk"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	require.NoError(t, svc.Record(req.Context(), actor, "", "", req, http.StatusOK, []byte(`{"updated":3}`)))
	require.True(t, st.called)

	got := st.lastInsert
	require.Equal(t, "staff-1", *got.ActorSubject)
	require.Equal(t, "staff", *got.ActorRole)
	require.Equal(t, "POST /api/v1/attendance/bulk", got.Action)
	require.Equal(t, "attendance.bulk", got.ResourceType)
	require.Equal(t, "10.0.0.2", *got.IP)
	require.Equal(t, "req-123", *got.RequestID)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "dry=1", meta["query"])
	require.Equal(t, float64(3), meta["updated"])
}

func TestServiceRecordDisabled(t *testing.T) {
	st := &stubStore{}
	svc := Service{Store: st, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), common.Identity{}, "", "", req, http.StatusOK, nil))
	require.False(t, st.called)
}

func TestMiddlewareRecordsStatusAndActor(t *testing.T) {
	st := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: st, Enabled: true}}
	h := rec.Middleware(HTTPConfig{
		Action:       "bills.generate",
		ResourceType: "bills",
		MetadataFunc: func(r *http.Request, status int) map[string]any {
			return map[string]any{"status_class": status / 100}
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bills/generate", nil)
	req = req.WithContext(common.WithIdentity(req.Context(), common.Identity{Subject: "staff-2", Role: common.RoleStaff}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, st.called)
	require.Equal(t, http.StatusBadRequest, st.lastInsert.Status)
	require.Equal(t, "bills.generate", st.lastInsert.Action)
	require.Equal(t, "staff-2", *st.lastInsert.ActorSubject)
	require.JSONEq(t, `{"status_class":4,"outcome":"failure"}`, string(st.lastInsert.Metadata))
}

func TestBuildResource(t *testing.T) {
	require.Equal(t, "bills.{id}", buildResource("", "/api/v1/bills/{id}"))
	require.Equal(t, "health.ready", buildResource("", "/health/ready"))
	require.Equal(t, "unknown", buildResource("", " "))
	require.Equal(t, "custom", buildResource("custom", "/api/v1/bills"))
}

func TestMiddlewareSurvivesCancelledRequest(t *testing.T) {
	st := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: st, Enabled: true}}
	h := rec.Middleware(HTTPConfig{Action: "attendance.bulk"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/bulk", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, st.called)
	require.JSONEq(t, `{"outcome":"success"}`, string(st.lastInsert.Metadata))
}
