package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

const defaultIdemTTL = 24 * time.Hour

// Idem rejects a write carrying an Idempotency-Key the same caller already used within
// TTL. A replayed attendance batch would otherwise overwrite newer corrections.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(subject, key string) string {
	sum := sha256.Sum256([]byte(subject + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware claims the key before the handler runs. The claim is released when the
// handler rejects or fails the request, so a corrected retry can reuse the key; only a
// handler-reported conflict keeps it.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = defaultIdemTTL
		}
		subject, _ := UserID(r.Context())
		key := idemKey(subject, header)

		claimed, err := i.R.SetNX(r.Context(), key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
			return
		}
		if !claimed {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if releaseClaim(ww.Status()) {
			_ = i.R.Del(context.WithoutCancel(r.Context()), key).Err()
		}
	})
}

func releaseClaim(status int) bool {
	return status >= http.StatusBadRequest && status != http.StatusConflict
}
