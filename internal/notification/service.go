package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/platform/sentinel"
)

// Store is the inbox persistence contract.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	Exists(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, kind Kind, subject string) (bool, error)
	ListByRecipient(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, unreadOnly bool, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, notifID id.NotificationID) error
	MarkAllRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID) (int, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Notify writes one inbox entry. It is called from event handlers, so it
// logs failures instead of surfacing them to the request that triggered the
// event.
func (s *Service) Notify(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID,
	kind Kind, subject, message string, at time.Time) {

	n := &Notification{
		ID:        id.NotificationID(uuid.New()),
		OrgID:     orgID,
		Recipient: recipient,
		Kind:      kind,
		Subject:   subject,
		Message:   message,
		CreatedAt: at,
	}
	if err := s.store.Create(ctx, n); err != nil {
		s.logger.Error("write notification", "kind", kind, "recipient", recipient, "error", err)
	}
}

// NotifyOnce writes the entry unless the recipient already has one with the
// same kind and subject. Mentions use it: being named in a post and again in
// a comment under it is still one inbox entry.
func (s *Service) NotifyOnce(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID,
	kind Kind, subject, message string, at time.Time) {

	seen, err := s.store.Exists(ctx, orgID, recipient, kind, subject)
	if err != nil {
		s.logger.Error("check notification", "kind", kind, "recipient", recipient, "error", err)
		return
	}
	if seen {
		return
	}
	s.Notify(ctx, orgID, recipient, kind, subject, message, at)
}

func (s *Service) List(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, unreadOnly bool, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := s.store.ListByRecipient(ctx, orgID, recipient, unreadOnly, limit)
	if err != nil {
		return nil, wrapNotifErr(err)
	}
	return list, nil
}

func (s *Service) MarkRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID, notifID id.NotificationID) error {
	return wrapNotifErr(s.store.MarkRead(ctx, orgID, recipient, notifID))
}

func (s *Service) MarkAllRead(ctx context.Context, orgID id.OrgID, recipient id.EmployeeID) (int, error) {
	n, err := s.store.MarkAllRead(ctx, orgID, recipient)
	if err != nil {
		return 0, wrapNotifErr(err)
	}
	return n, nil
}

func wrapNotifErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "notification store failure")
	}
}
