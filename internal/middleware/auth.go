package middleware

import (
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/deppfellow/agent-chat-backend/internal/errs"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware verifies Clerk session tokens.
type AuthMiddleware struct {
	server *server.Server
}

func NewAuthMiddleware(s *server.Server) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
	}
}

// Enabled reports whether a Clerk secret key is configured.
func (auth *AuthMiddleware) Enabled() bool {
	return auth.server.Config.Auth.Enabled()
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// session token. On success the user id and role are stored in the Echo
// context and added to the request logger.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var authErr error

		// Clerk's middleware is net/http shaped; failures are carried out of
		// it and returned so the global error handler writes the response.
		handler := clerkhttp.WithHeaderAuthorization(
			clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				authErr = errs.NewUnauthorizedError("Unauthorized", false)
			})),
		)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			c.SetRequest(r)
			authErr = auth.authenticated(c, next)
		}))

		handler.ServeHTTP(c.Response(), c.Request())
		return authErr
	}
}

func (auth *AuthMiddleware) authenticated(c echo.Context, next echo.HandlerFunc) error {
	claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
	if !ok {
		GetLogger(c).Warn().Msg("could not get session claims from context")
		return errs.NewUnauthorizedError("Unauthorized", false)
	}

	c.Set(UserIDKey, claims.Subject)
	c.Set(UserRoleKey, claims.ActiveOrganizationRole)
	c.Set("permissions", claims.Claims.ActiveOrganizationPermissions)

	userLogger := GetLogger(c).With().Str("user_id", claims.Subject).Logger()
	c.Set(LoggerKey, &userLogger)
	c.SetRequest(c.Request().WithContext(userLogger.WithContext(c.Request().Context())))

	userLogger.Debug().Msg("user authenticated")

	return next(c)
}
