package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/baes-monitor/baes-core/internal/audit"
)

// auditLog records an entry for the caller of r. Once Start has run the
// write is queued; a full queue drops the entry with a warning.
func (s *Server) auditLog(r *http.Request, action, entityType string, entityID int64, details map[string]any) {
	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		Details:    details,
	}
	if uid, ok := sessionUserID(r); ok {
		entry.UserID = &uid
	}

	if s.auditCh == nil {
		s.writeAudit(context.WithoutCancel(r.Context()), entry)
		return
	}
	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit log queue full, dropping entry",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
		)
	}
}

// drainAuditLog writes queued entries serially and flushes on shutdown.
func (s *Server) drainAuditLog(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(context.Background(), entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(ctx context.Context, entry *audit.Entry) {
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}

// handleListAuditLogs returns one page of audit entries.
//
// Query parameters: action, entity_type, entity_id, user_id, limit, offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if v := q.Get("user_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.UserID = &id
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
