package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewpulse/internal/platform/metrics"
	"crewpulse/internal/platform/middleware"
	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/requestcontext"
)

var mwMetrics = metrics.New()

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestLatencyBucketsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Latency(mwMetrics))
	r.Get("/things/{thingID}", okHandler)

	before := promtestutil.CollectAndCount(mwMetrics.RequestDuration)

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/things/"+uuid.NewString(), nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	// Three distinct paths, one route pattern: exactly one new series.
	assert.Equal(t, before+1, promtestutil.CollectAndCount(mwMetrics.RequestDuration))
}

type fakeGate struct{ err error }

func (g fakeGate) RequireActive(context.Context, id.OrgID) error { return g.err }

func TestRequireActiveOrg(t *testing.T) {
	serve := func(gate middleware.OrgGate, withOrg bool) *httptest.ResponseRecorder {
		h := middleware.RequireActiveOrg(gate, discardLogger())(http.HandlerFunc(okHandler))
		req := httptest.NewRequest(http.MethodGet, "/feed/", nil)
		if withOrg {
			req = req.WithContext(requestcontext.WithOrgID(req.Context(), id.OrgID(uuid.New())))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("active org passes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(fakeGate{}, true).Code)
	})

	t.Run("suspended org gets 403", func(t *testing.T) {
		rr := serve(fakeGate{err: dErrors.New(dErrors.CodeForbidden, "organization is suspended")}, true)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "suspended")
	})

	t.Run("unknown org gets 404", func(t *testing.T) {
		rr := serve(fakeGate{err: dErrors.New(dErrors.CodeNotFound, "organization not found")}, true)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing org scope gets 401", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(fakeGate{}, false).Code)
	})
}

func TestRequireAdminToken(t *testing.T) {
	h := middleware.RequireAdminToken("operator-secret", discardLogger())(http.HandlerFunc(okHandler))

	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/orgs", nil)
		if token != "" {
			req.Header.Set("X-Admin-Token", token)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, serve("operator-secret"))
	assert.Equal(t, http.StatusForbidden, serve("operator-secre"))
	assert.Equal(t, http.StatusForbidden, serve(""))
}
