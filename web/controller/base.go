// Package controller provides the HTTP handlers of viewer360. Handlers decode
// requests, call the services with the caller's identity and write entity.Msg
// envelopes.
package controller

import (
	"net/http"

	"github.com/viewer360/viewer360/web/locale"
	"github.com/viewer360/viewer360/web/middleware"
	"github.com/viewer360/viewer360/web/service"

	"github.com/gin-gonic/gin"
)

// BaseController provides the login check shared by controllers.
type BaseController struct{}

// checkLogin rejects anonymous callers with 401.
func (a *BaseController) checkLogin(c *gin.Context) {
	if !middleware.CurrentIdentity(c).IsAuthenticated() {
		pureJsonMsg(c, http.StatusUnauthorized, false, I18nWeb(c, "loginRequired"))
		c.Abort()
		return
	}
	c.Next()
}

func identity(c *gin.Context) service.Identity {
	return middleware.CurrentIdentity(c)
}

// I18nWeb translates a router message for the current request.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	return locale.I18n(c, name, params...)
}
