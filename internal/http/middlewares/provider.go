package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

// RequireProvider lets through only authenticated users flagged as providers.
// It must run after RequireAuth.
func RequireProvider(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		u, err := users.GetByID(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			slog.Default().ErrorContext(c.Request.Context(), "provider lookup failed", "user_id", userID, "err", err)
			abortWithError(c, http.StatusInternalServerError, "internal_error", "Could not verify provider")
			return
		}
		if err != nil || !u.Provider {
			abortWithError(c, http.StatusUnauthorized, "not_a_provider", "Only provider can load notifications")
			return
		}

		c.Next()
	}
}
