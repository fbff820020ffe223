package middleware

import (
	"net/http"

	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/web/entity"
	"github.com/viewer360/viewer360/web/locale"

	"github.com/gin-gonic/gin"
)

// RoleRequired lets through authenticated callers holding one of roles.
func RoleRequired(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool)
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)
		if !identity.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, entity.Msg{Msg: locale.I18n(c, "loginRequired")})
			return
		}
		if !allowed[identity.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, entity.Msg{Msg: locale.I18n(c, "adminRequired")})
			return
		}
		c.Next()
	}
}
