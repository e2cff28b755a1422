package audit

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/obs"
)

// HTTPRecorder writes an audit entry for every request that reaches a wrapped route.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig names the audited action. MetadataFunc may add route specific fields; the
// outcome ("success" or "failure") is always included.
type HTTPConfig struct {
	Action       string
	ResourceType string
	MetadataFunc func(*http.Request, int) map[string]any
}

// Middleware records after the handler has returned, so it sees the final status. It must
// sit behind authentication for the actor to be known.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r.Service == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}
			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)

			status := recorder.Status()
			actor, _ := common.IdentityFrom(req.Context())
			// The client may already be gone; the entry is still written.
			ctx := context.WithoutCancel(req.Context())
			err := r.Service.Record(ctx, actor, cfg.Action, cfg.ResourceType, req, status, metadataFor(cfg, req, status))
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func metadataFor(cfg HTTPConfig, req *http.Request, status int) []byte {
	payload := map[string]any{}
	if cfg.MetadataFunc != nil {
		for k, v := range cfg.MetadataFunc(req, status) {
			payload[k] = v
		}
	}
	payload["outcome"] = "success"
	if status >= http.StatusBadRequest {
		payload["outcome"] = "failure"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
