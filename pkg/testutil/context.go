package testutil

import (
	"net/http"
	"time"

	id "crewpulse/pkg/domain"
	"crewpulse/pkg/requestcontext"
)

// WithOrg scopes the request to an organization, the way the auth middleware
// would for a verified token.
func WithOrg(req *http.Request, orgID id.OrgID) *http.Request {
	return req.WithContext(requestcontext.WithOrgID(req.Context(), orgID))
}

// WithActor sets both the organization and the acting employee on the request
// context. This is the typical state for an authenticated request.
func WithActor(req *http.Request, orgID id.OrgID, employeeID id.EmployeeID) *http.Request {
	ctx := requestcontext.WithOrgID(req.Context(), orgID)
	ctx = requestcontext.WithEmployeeID(ctx, employeeID)
	return req.WithContext(ctx)
}

// WithClock pins the request time so timestamp assertions are deterministic.
func WithClock(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
