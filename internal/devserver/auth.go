package devserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// RequireUser verifies the bearer token and stores its user id on the context.
func (h *Handler) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return errorJSON(c, http.StatusUnauthorized, "missing bearer token")
		}

		claims, err := h.tokens.VerifyToken(token)
		if err != nil {
			return errorJSON(c, http.StatusUnauthorized, "invalid token")
		}

		c.Set(userIDKey, claims.UserID)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
