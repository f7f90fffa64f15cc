// Package audit records administrative changes for the admin log.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Recorder is the hook other services call after a mutation.
type Recorder interface {
	Record(ctx context.Context, action audit.Action, model string, objectID int64, repr string)
}

// Service stores entries for changes made by staff callers. Changes made by
// regular users or background jobs are not logged.
type Service struct {
	store storage.AuditStore
	users storage.UserStore
	sink  Sink
	log   *logger.Logger
	now   func() time.Time
}

var _ Recorder = (*Service)(nil)

// New creates an audit service. users resolves actor names and sink mirrors
// entries to a file; both may be nil.
func New(store storage.AuditStore, users storage.UserStore, sink Sink, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Service{store: store, users: users, sink: sink, log: log, now: time.Now}
}

// Record appends an entry when the caller in ctx is staff. Failures are
// logged and never surface to the caller.
func (s *Service) Record(ctx context.Context, action audit.Action, model string, objectID int64, repr string) {
	principal, ok := auth.PrincipalFrom(ctx)
	if !ok || !principal.IsAdmin() {
		return
	}
	entry := audit.Entry{
		UserID:     principal.UserID,
		Action:     action,
		Model:      model,
		ObjectID:   strconv.FormatInt(objectID, 10),
		ObjectRepr: repr,
		Time:       s.now().UTC(),
	}
	if s.users != nil {
		if user, err := s.users.GetUser(ctx, principal.UserID); err == nil {
			entry.Username = user.Username
		}
	}

	stored, err := s.store.AppendAudit(ctx, entry)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("model", model).Error("append audit entry")
		return
	}
	if s.sink != nil {
		if err := s.sink.Write(stored); err != nil {
			s.log.WithError(err).Warn("write audit sink")
		}
	}
}

// List returns the newest entries first. limit <= 0 returns all.
func (s *Service) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	return s.store.ListAudit(ctx, limit)
}
