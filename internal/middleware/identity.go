package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID  = "user_id"
	ctxIsAdmin = "is_admin"
)

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// IsAdmin reports whether the access token carried the admin claim.
func IsAdmin(c echo.Context) bool {
	admin, _ := c.Get(ctxIsAdmin).(bool)
	return admin
}

// SetIdentity stores an identity on the context the way JWTAuth does.
func SetIdentity(c echo.Context, userID uint64, isAdmin bool) {
	c.Set(ctxUserID, userID)
	c.Set(ctxIsAdmin, isAdmin)
}

// rateUser is the user component of rate-limit keys.
func rateUser(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
