package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertAuditLog appends an audit entry.
func (s *Store) InsertAuditLog(ctx context.Context, e AuditEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}
	_, err := s.db.Exec(ctx, `INSERT INTO audit_logs
    (actor_subject, actor_role, action, resource_type, method, path, status, ip, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ActorSubject, e.ActorRole, e.Action, e.ResourceType, e.Method, e.Path, e.Status, e.IP, e.RequestID, metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// AuditLog is a persisted audit entry.
type AuditLog struct {
	ID           uuid.UUID       `json:"id"`
	ActorSubject *string         `json:"actor_subject,omitempty"`
	ActorRole    *string         `json:"actor_role,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	RequestID    *string         `json:"request_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListAuditLogs returns one page of audit entries newest first and the total entry count.
func (s *Store) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	rows, err := s.db.Query(ctx, `SELECT id, actor_subject, actor_role, action, resource_type, method, path, status,
       ip, request_id, metadata, created_at
FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.ActorSubject, &l.ActorRole, &l.Action, &l.ResourceType, &l.Method, &l.Path,
			&l.Status, &l.IP, &l.RequestID, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}
