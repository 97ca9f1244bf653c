package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/causeway/internal/api/errors"
	"github.com/narvanalabs/causeway/internal/auth"
	"github.com/narvanalabs/causeway/pkg/logger"
)

type contextKey string

// RoleKey is the context key for the role of the authenticated subject.
const RoleKey contextKey = "role"

// GetSubject extracts the authenticated subject from the request context.
func GetSubject(ctx context.Context) string {
	return logger.SubjectFromContext(ctx)
}

// GetRole extracts the role of the authenticated subject.
func GetRole(ctx context.Context) auth.Role {
	if v, ok := ctx.Value(RoleKey).(auth.Role); ok {
		return v
	}
	return ""
}

// AuthMiddleware handles JWT bearer authentication.
type AuthMiddleware struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(authService *auth.Service, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		authService: authService,
		logger:      logger,
	}
}

// Authenticate rejects requests without a valid bearer token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeUnauthorized(w, r, "Missing authentication")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			m.logger.Debug("JWT validation failed", "error", err)
			if errors.Is(err, auth.ErrExpiredToken) {
				writeUnauthorized(w, r, "Token has expired")
				return
			}
			writeUnauthorized(w, r, "Invalid token")
			return
		}

		ctx := logger.ContextWithSubject(r.Context(), claims.Subject)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission returns a middleware that rejects subjects whose role
// lacks perm.
func RequirePermission(perm auth.Permission, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			if err := auth.CheckPermission(role, perm); err != nil {
				log.Debug("permission check failed",
					"subject", GetSubject(r.Context()),
					"role", role,
					"permission", perm,
				)
				apierrors.WriteErrorWithRequestID(w,
					apierrors.NewForbiddenError("Access denied"),
					middleware.GetReqID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.WriteErrorWithRequestID(w,
		apierrors.NewUnauthorizedError(message),
		middleware.GetReqID(r.Context()))
}
