package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codemorph/internal/store"
	"github.com/codemorph/pkg/models"
)

// ContextKey represents keys for context values
type ContextKey string

const UserContextKey ContextKey = "user"

// UserResolver resolves an account from a hashed API key.
type UserResolver interface {
	GetUserByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
}

// RequireAPIKey validates the Bearer API key on every request and puts
// the resolved user on the echo context.
func RequireAPIKey(resolver UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			key := tokenParts[1]
			if !strings.HasPrefix(key, apiKeyPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
			}

			user, err := resolver.GetUserByAPIKeyHash(c.Request().Context(), HashAPIKey(key))
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to authenticate")
			}

			c.Set(string(UserContextKey), user)
			return next(c)
		}
	}
}

// GetUser extracts the authenticated user from echo context.
func GetUser(c echo.Context) *models.User {
	userInterface := c.Get(string(UserContextKey))
	if userInterface == nil {
		return nil
	}
	return userInterface.(*models.User)
}
