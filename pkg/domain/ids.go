// Package domain holds typed identifiers shared across modules. Each aggregate
// gets its own UUID-backed type so org, employee, and entity ids cannot be
// swapped by accident; the compiler enforces the boundary.
package domain

import (
	"github.com/google/uuid"

	dErrors "crewpulse/pkg/domain-errors"
)

type (
	OrgID          uuid.UUID
	EmployeeID     uuid.UUID
	DepartmentID   uuid.UUID
	PostID         uuid.UUID
	CommentID      uuid.UUID
	KudosID        uuid.UUID
	LeaveRequestID uuid.UUID
	SurveyID       uuid.UUID
	ListingID      uuid.UUID
	NotificationID uuid.UUID
)

func (id OrgID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id EmployeeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DepartmentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PostID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CommentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id KudosID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id LeaveRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SurveyID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text round-tripping delegates to uuid.UUID so ids render as canonical UUID
// strings in JSON and cache payloads rather than raw byte arrays.
func (id OrgID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id EmployeeID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id DepartmentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id PostID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id CommentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id KudosID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id LeaveRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SurveyID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ListingID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *OrgID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EmployeeID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DepartmentID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PostID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CommentID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *KudosID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *LeaveRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SurveyID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ListingID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id OrgID) String() string          { return uuid.UUID(id).String() }
func (id EmployeeID) String() string     { return uuid.UUID(id).String() }
func (id DepartmentID) String() string   { return uuid.UUID(id).String() }
func (id PostID) String() string         { return uuid.UUID(id).String() }
func (id CommentID) String() string      { return uuid.UUID(id).String() }
func (id KudosID) String() string        { return uuid.UUID(id).String() }
func (id LeaveRequestID) String() string { return uuid.UUID(id).String() }
func (id SurveyID) String() string       { return uuid.UUID(id).String() }
func (id ListingID) String() string      { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

// parseUUID enforces the trust-boundary invariant: ids arriving from the
// outside must be valid, non-nil UUIDs.
func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, what+" must not be the nil UUID")
	}
	return parsed, nil
}

func ParseOrgID(raw string) (OrgID, error) {
	u, err := parseUUID(raw, "org id")
	return OrgID(u), err
}

func ParseEmployeeID(raw string) (EmployeeID, error) {
	u, err := parseUUID(raw, "employee id")
	return EmployeeID(u), err
}

func ParseDepartmentID(raw string) (DepartmentID, error) {
	u, err := parseUUID(raw, "department id")
	return DepartmentID(u), err
}

func ParsePostID(raw string) (PostID, error) {
	u, err := parseUUID(raw, "post id")
	return PostID(u), err
}

func ParseCommentID(raw string) (CommentID, error) {
	u, err := parseUUID(raw, "comment id")
	return CommentID(u), err
}

func ParseKudosID(raw string) (KudosID, error) {
	u, err := parseUUID(raw, "kudos id")
	return KudosID(u), err
}

func ParseLeaveRequestID(raw string) (LeaveRequestID, error) {
	u, err := parseUUID(raw, "leave request id")
	return LeaveRequestID(u), err
}

func ParseSurveyID(raw string) (SurveyID, error) {
	u, err := parseUUID(raw, "survey id")
	return SurveyID(u), err
}

func ParseListingID(raw string) (ListingID, error) {
	u, err := parseUUID(raw, "listing id")
	return ListingID(u), err
}

func ParseNotificationID(raw string) (NotificationID, error) {
	u, err := parseUUID(raw, "notification id")
	return NotificationID(u), err
}
