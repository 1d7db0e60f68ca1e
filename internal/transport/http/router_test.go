package httptransport_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/events"
	"crewpulse/internal/notification"
	notifhandler "crewpulse/internal/notification/handler"
	orghandler "crewpulse/internal/org/handler"
	orgservice "crewpulse/internal/org/service"
	orgstore "crewpulse/internal/org/store"
	"crewpulse/internal/platform/metrics"
	"crewpulse/internal/platform/middleware"
	httptransport "crewpulse/internal/transport/http"
	id "crewpulse/pkg/domain"
	"crewpulse/pkg/testutil"
)

const (
	adminToken = "operator-secret"
	signingKey = "test-signing-key"
)

var routerMetrics = metrics.New()

type routerFixture struct {
	router http.Handler
	orgs   *orgservice.Service
	inbox  *notification.Service
	orgID  id.OrgID
	actor  id.EmployeeID
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := events.NewDispatcher(logger, events.Synchronous())

	orgSvc := orgservice.New(orgstore.NewInMemory(), dispatcher, logger)
	inboxSvc := notification.NewService(notification.NewInMemory(), logger)

	org, err := orgSvc.Create(context.Background(), "Fixture Org")
	require.NoError(t, err)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:     logger,
		Metrics:    routerMetrics,
		Verifier:   middleware.NewHMACVerifier(signingKey),
		OrgGate:    orgSvc,
		AdminToken: adminToken,
		Org:        orghandler.New(orgSvc, logger),
		Modules:    []httptransport.Registrar{notifhandler.New(inboxSvc, logger)},
		Health: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	return &routerFixture{
		router: router,
		orgs:   orgSvc,
		inbox:  inboxSvc,
		orgID:  org.ID,
		actor:  id.EmployeeID(uuid.New()),
	}
}

func mintToken(t *testing.T, key string, orgID id.OrgID, employeeID id.EmployeeID) string {
	t.Helper()
	claims := middleware.Claims{
		OrgID:      orgID.String(),
		EmployeeID: employeeID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestHealthzIsOpen(t *testing.T) {
	f := newRouterFixture(t)
	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestAdminEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("admin token required", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/orgs",
			map[string]string{"name": "Acme"}))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("wrong admin token rejected", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/orgs", map[string]string{"name": "Acme"})
		req.Header.Set("X-Admin-Token", "operator-secre")
		testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusForbidden)
	})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/orgs", map[string]string{"name": "Acme"})
	req.Header.Set("X-Admin-Token", adminToken)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	org := testutil.UnmarshalResponse[map[string]any](t, rr)
	orgID := (*org)["id"].(string)

	t.Run("suspend then reinstate", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodPost, "/orgs/"+orgID+"/suspend")
		req.Header.Set("X-Admin-Token", adminToken)
		testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusOK)

		req = testutil.NewRequest(t, http.MethodPost, "/orgs/"+orgID+"/suspend")
		req.Header.Set("X-Admin-Token", adminToken)
		testutil.AssertStatusAndError(t, testutil.DoRequest(f.router, req), http.StatusConflict, "conflict")

		req = testutil.NewRequest(t, http.MethodPost, "/orgs/"+orgID+"/reinstate")
		req.Header.Set("X-Admin-Token", adminToken)
		testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusOK)
	})
}

func TestOrgAuthGate(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("missing token", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/notifications/"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("token signed with the wrong key", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/notifications/")
		req.Header.Set("Authorization", "Bearer "+mintToken(t, "other-key", f.orgID, f.actor))
		testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusUnauthorized)
	})

	t.Run("valid token reaches the module", func(t *testing.T) {
		f.inbox.Notify(context.Background(), f.orgID, f.actor, notification.KindMention,
			uuid.NewString(), "hello", time.Now())

		req := testutil.NewRequest(t, http.MethodGet, "/notifications/")
		req.Header.Set("Authorization", "Bearer "+mintToken(t, signingKey, f.orgID, f.actor))
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		body := testutil.UnmarshalResponse[map[string][]notification.Notification](t, rr)
		assert.Len(t, (*body)["notifications"], 1)
	})

	t.Run("token naming an unknown org is turned away", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/notifications/")
		req.Header.Set("Authorization", "Bearer "+mintToken(t, signingKey, id.OrgID(uuid.New()), f.actor))
		testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusNotFound)
	})
}

func TestSuspendedOrgIsLockedOut(t *testing.T) {
	f := newRouterFixture(t)
	token := mintToken(t, signingKey, f.orgID, f.actor)

	req := testutil.NewRequest(t, http.MethodGet, "/notifications/")
	req.Header.Set("Authorization", "Bearer "+token)
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusOK)

	_, err := f.orgs.Suspend(context.Background(), f.orgID)
	require.NoError(t, err)

	req = testutil.NewRequest(t, http.MethodGet, "/notifications/")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
	assert.Contains(t, rr.Body.String(), "suspended")

	_, err = f.orgs.Reinstate(context.Background(), f.orgID)
	require.NoError(t, err)

	req = testutil.NewRequest(t, http.MethodGet, "/notifications/")
	req.Header.Set("Authorization", "Bearer "+token)
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusOK)
}
