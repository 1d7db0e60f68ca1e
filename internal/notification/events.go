package notification

import (
	"context"
	"fmt"
	"log/slog"

	"crewpulse/internal/directory"
	"crewpulse/internal/events"
	id "crewpulse/pkg/domain"
)

// DirectoryResolver is the slice of the directory the event handler needs to
// pick recipients.
type DirectoryResolver interface {
	DepartmentHead(ctx context.Context, orgID id.OrgID, employeeID id.EmployeeID) (id.EmployeeID, error)
	ListEmployees(ctx context.Context, orgID id.OrgID, filter directory.EmployeeFilter) ([]*directory.Employee, error)
}

// EventHandler turns domain events into inbox entries. It subscribes to the
// dispatcher like any other handler and never fails the publishing request.
type EventHandler struct {
	notifier  *Service
	directory DirectoryResolver
	logger    *slog.Logger
}

func NewEventHandler(notifier *Service, dir DirectoryResolver, logger *slog.Logger) *EventHandler {
	return &EventHandler{notifier: notifier, directory: dir, logger: logger}
}

func (h *EventHandler) Name() string { return "notifications" }

// Kinds lists the events this handler subscribes to.
func (h *EventHandler) Kinds() []events.Kind {
	return []events.Kind{
		events.KindMembersMentioned,
		events.KindCommentAdded,
		events.KindPollClosed,
		events.KindKudosGiven,
		events.KindLeaveRequested,
		events.KindLeaveDecided,
		events.KindSurveyOpened,
		events.KindListingSold,
	}
}

func (h *EventHandler) Handle(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.MembersMentioned:
		for _, recipient := range e.Mentioned {
			h.notifier.NotifyOnce(ctx, e.OrgID, recipient, KindMention, e.PostID.String(),
				"You were mentioned in a post", e.At)
		}

	case events.CommentAdded:
		if e.PostAuthor == e.Actor {
			return
		}
		h.notifier.Notify(ctx, e.OrgID, e.PostAuthor, KindComment, e.PostID.String(),
			"Someone commented on your post", e.At)

	case events.PollClosed:
		h.notifier.Notify(ctx, e.OrgID, e.Actor, KindPollClosed, e.PostID.String(),
			"Your poll has closed, results are in", e.At)

	case events.KudosGiven:
		h.notifier.Notify(ctx, e.OrgID, e.Recipient, KindKudos, e.KudosID.String(),
			fmt.Sprintf("You received a %s badge", e.Badge), e.At)

	case events.LeaveRequested:
		head, err := h.directory.DepartmentHead(ctx, e.OrgID, e.Employee)
		if err != nil {
			h.logger.Warn("resolve department head", "employee", e.Employee, "error", err)
			return
		}
		if head.IsNil() || head == e.Employee {
			return
		}
		h.notifier.Notify(ctx, e.OrgID, head, KindLeaveRequested, e.RequestID.String(),
			"A leave request is waiting for your decision", e.At)

	case events.LeaveDecided:
		msg := "Your leave request was approved"
		if !e.Approved {
			msg = "Your leave request was rejected: " + e.Reason
		}
		h.notifier.Notify(ctx, e.OrgID, e.Employee, KindLeaveDecided, e.RequestID.String(), msg, e.At)

	case events.SurveyOpened:
		employees, err := h.directory.ListEmployees(ctx, e.OrgID, directory.EmployeeFilter{
			Status: directory.EmployeeActive,
		})
		if err != nil {
			h.logger.Warn("list survey recipients", "survey", e.SurveyID, "error", err)
			return
		}
		for _, emp := range employees {
			if emp.ID == e.Actor {
				continue
			}
			h.notifier.Notify(ctx, e.OrgID, emp.ID, KindSurveyOpened, e.SurveyID.String(),
				fmt.Sprintf("New survey open: %s", e.Title), e.At)
		}

	case events.ListingSold:
		for _, recipient := range []id.EmployeeID{e.Seller, e.Buyer} {
			if recipient.IsNil() || recipient == e.Actor {
				continue
			}
			h.notifier.Notify(ctx, e.OrgID, recipient, KindListingSold, e.ListingID.String(),
				"A marketplace listing you were part of has sold", e.At)
		}
	}
}
