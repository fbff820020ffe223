// Package middleware contains the gin middleware shared by every route group.
package middleware

import (
	"strings"

	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/web/service"
	"github.com/viewer360/viewer360/web/session"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// IdentityMiddleware resolves the caller from the session cookie or an
// "Authorization: Bearer" token and stores it in the context. Banned or deleted
// accounts lose their session and continue as anonymous visitors.
func IdentityMiddleware() gin.HandlerFunc {
	var userService service.UserService
	var authService service.AuthService
	return func(c *gin.Context) {
		userId := 0
		fromSession := false
		if user := session.GetLoginUser(c); user != nil {
			userId = user.Id
			fromSession = true
		} else if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			id, err := authService.ParseToken(header)
			if err == nil {
				userId = id
			}
		}

		identity := service.Anonymous()
		if userId > 0 {
			var err error
			identity, err = userService.GetIdentity(userId)
			if err != nil {
				// the session stays; the next request retries the lookup
				logger.Warning("resolve identity failed:", err)
				identity = service.Anonymous()
			} else if fromSession && !identity.IsAuthenticated() {
				if err := session.ClearSession(c); err != nil {
					logger.Warning("clear session failed:", err)
				}
			}
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by IdentityMiddleware.
func CurrentIdentity(c *gin.Context) service.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(service.Identity); ok {
			return id
		}
	}
	return service.Anonymous()
}
