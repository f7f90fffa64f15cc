// Package middleware provides the HTTP middleware chain of the API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/EduShopX/edushop/internal/auth"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/pkg/logger"
)

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(ctx context.Context, raw string, want auth.TokenType) (*auth.Claims, error)
}

// PrincipalLoader reloads the caller named by verified claims, so that
// deactivation and role changes apply before the token expires.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (auth.Principal, error)
}

// AuthMiddleware authenticates requests that carry a bearer token. Requests
// without one continue anonymously; route guards decide whether that is
// acceptable. Paths under queryTokenPrefixes may pass ?token= instead.
type AuthMiddleware struct {
	tokens             TokenParser
	principals         PrincipalLoader
	logger             *logger.Logger
	queryTokenPrefixes []string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenParser, log *logger.Logger, queryTokenPrefixes []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{tokens: tokens, logger: log, queryTokenPrefixes: queryTokenPrefixes}
}

// WithPrincipals makes every authenticated request reload its user.
func (m *AuthMiddleware) WithPrincipals(loader PrincipalLoader) *AuthMiddleware {
	m.principals = loader
	return m
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := m.extractToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.Parse(r.Context(), raw, auth.TokenAccess)
		if err != nil {
			m.respondError(w, r, err)
			return
		}
		if !claims.IsActive {
			m.respondError(w, r, apperrors.Unauthorized("User is inactive"))
			return
		}

		principal := claims.Principal()
		if m.principals != nil {
			principal, err = m.principals.LoadPrincipal(r.Context(), claims.UserID)
			if err != nil {
				m.respondError(w, r, err)
				return
			}
		}

		ctx := auth.WithPrincipal(r.Context(), principal)
		m.logger.WithContext(ctx).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) extractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.Unauthorized("Invalid Authorization header format")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	for _, prefix := range m.queryTokenPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return r.URL.Query().Get("token"), nil
		}
	}
	return "", nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, err)
	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed")
}

// Guard checks the caller of a request.
type Guard func(p auth.Principal, authenticated bool) error

// IsAuthenticated admits any authenticated caller.
func IsAuthenticated(_ auth.Principal, ok bool) error {
	if !ok {
		return apperrors.Unauthorized("")
	}
	return nil
}

// IsAdmin admits staff users.
func IsAdmin(p auth.Principal, ok bool) error {
	if err := IsAuthenticated(p, ok); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return apperrors.Forbidden("")
	}
	return nil
}

// IsTeacher admits users with the teacher role.
func IsTeacher(p auth.Principal, ok bool) error {
	if err := IsAuthenticated(p, ok); err != nil {
		return err
	}
	if !p.IsTeacher() {
		return apperrors.Forbidden("")
	}
	return nil
}

// NotAdmin admits authenticated non-staff users.
func NotAdmin(p auth.Principal, ok bool) error {
	if err := IsAuthenticated(p, ok); err != nil {
		return err
	}
	if p.IsAdmin() {
		return apperrors.Forbidden("")
	}
	return nil
}

// Require wraps next with guard.
func Require(guard Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if err := guard(p, ok); err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
