package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemRejectsReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idem{R: client, TTL: time.Hour}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(subject, key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/bulk", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		req = req.WithContext(WithIdentity(req.Context(), Identity{Subject: subject, Role: RoleStaff}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, send("staff-1", "batch-7"))
	require.Equal(t, http.StatusConflict, send("staff-1", "batch-7"))
	require.Equal(t, http.StatusOK, send("staff-2", "batch-7"))
	require.Equal(t, http.StatusOK, send("staff-1", ""))
	require.Equal(t, http.StatusOK, send("staff-1", ""))
	require.Equal(t, 4, calls)

	mr.FastForward(2 * time.Hour)
	require.Equal(t, http.StatusOK, send("staff-1", "batch-7"))
}

func TestIdemReleasesKeyOnFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusInternalServerError
	handler := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/bulk", nil)
		req.Header.Set("Idempotency-Key", "batch-9")
		req = req.WithContext(WithIdentity(req.Context(), Identity{Subject: "staff-1", Role: RoleStaff}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusInternalServerError, send())
	status = http.StatusBadRequest
	require.Equal(t, http.StatusBadRequest, send())
	status = http.StatusOK
	require.Equal(t, http.StatusOK, send())
	require.Equal(t, http.StatusConflict, send())
}

func TestIdemKeepsKeyOnHandlerConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/bulk", nil)
		req.Header.Set("Idempotency-Key", "batch-3")
		req = req.WithContext(WithIdentity(req.Context(), Identity{Subject: "staff-1", Role: RoleStaff}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 1, calls)
}

func TestReleaseClaim(t *testing.T) {
	for status, want := range map[int]bool{
		http.StatusOK:                    false,
		http.StatusBadRequest:            true,
		http.StatusRequestEntityTooLarge: true,
		http.StatusConflict:              false,
		http.StatusInternalServerError:   true,
	} {
		require.Equal(t, want, releaseClaim(status), status)
	}
}

func TestIdemStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	handler := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Idempotency-Key", "k")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
