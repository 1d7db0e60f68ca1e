package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
	"crewpulse/pkg/requestcontext"
)

// Claims is the shape of the access token this service accepts. Tokens are
// minted by the identity provider in front of us; here we only verify the
// signature and lift org/employee into request context.
type Claims struct {
	OrgID      string `json:"org_id"`
	EmployeeID string `json:"employee_id"`
	jwt.RegisteredClaims
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// HMACVerifier verifies HS256 tokens with a shared signing key.
type HMACVerifier struct {
	key []byte
}

func NewHMACVerifier(signingKey string) *HMACVerifier {
	return &HMACVerifier{key: []byte(signingKey)}
}

func (v *HMACVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireOrgAuth authenticates the bearer token and scopes the request to the
// claimed org and employee. Every downstream read and write resolves through
// these two values; a request can never name another org explicitly.
func RequireOrgAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "token rejected", "error", err.Error())
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			orgID, err := id.ParseOrgID(claims.OrgID)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			employeeID, err := id.ParseEmployeeID(claims.EmployeeID)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := requestcontext.WithOrgID(r.Context(), orgID)
			ctx = requestcontext.WithEmployeeID(ctx, employeeID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgGate reports whether an org may act. Suspended and unknown orgs are
// turned away before any module handler runs.
type OrgGate interface {
	RequireActive(ctx context.Context, orgID id.OrgID) error
}

// RequireActiveOrg rejects requests whose token names a suspended or unknown
// org. Runs after RequireOrgAuth, so the org id is already in context.
func RequireActiveOrg(gate OrgGate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := requestcontext.OrgID(r.Context())
			if orgID.IsNil() {
				http.Error(w, "missing org scope", http.StatusUnauthorized)
				return
			}
			if err := gate.RequireActive(r.Context(), orgID); err != nil {
				logger.WarnContext(r.Context(), "org gate rejected request",
					"org_id", orgID.String(), "error", dErrors.MessageOf(err))
				if dErrors.HasCode(err, dErrors.CodeNotFound) {
					http.Error(w, "unknown organization", http.StatusNotFound)
					return
				}
				http.Error(w, "organization is suspended", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminToken guards bootstrap endpoints (org creation) with a static
// operator token. Comparison is constant-time.
func RequireAdminToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Admin-Token")), []byte(token)) != 1 {
				logger.WarnContext(r.Context(), "admin token missing or wrong", "path", r.URL.Path)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
