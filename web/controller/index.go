package controller

import (
	"net/http"

	"github.com/viewer360/viewer360/config"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/web/service"
	"github.com/viewer360/viewer360/web/session"

	"github.com/gin-gonic/gin"
)

type RegisterForm struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// IndexController handles account creation, login and logout.
type IndexController struct {
	BaseController

	settingService service.SettingService
	userService    service.UserService
	authService    service.AuthService
}

func NewIndexController(g *gin.RouterGroup) *IndexController {
	a := &IndexController{}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.index)
	g.GET("/logout", a.logout)

	g.POST("/register", a.register)
	g.POST("/login", a.login)
	g.POST("/api/token", a.token)
}

func (a *IndexController) index(c *gin.Context) {
	id := identity(c)
	jsonObj(c, gin.H{
		"name":    config.GetName(),
		"version": config.GetVersion(),
		"userId":  id.CurrentUserId(),
		"role":    id.Role,
	}, nil)
}

func (a *IndexController) register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	user, err := a.userService.Register(form.Username, form.Email, form.Password)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	logger.Infof("user %s registered, IP: %s", user.Username, getRemoteIp(c))
	jsonMsgObj(c, I18nWeb(c, "pages.register.success"), user, nil)
}

func (a *IndexController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}

	user, err := a.userService.CheckUser(form.Email, form.Password)
	if err != nil {
		logger.Warningf("failed login for %q, IP: %s", form.Email, getRemoteIp(c))
		jsonMsg(c, "", err)
		return
	}

	sessionMaxAge, err := a.settingService.GetSessionMaxAge()
	if err != nil {
		logger.Warning("Unable to get session's max age from DB")
	}
	if sessionMaxAge > 0 {
		if err := session.SetMaxAge(c, sessionMaxAge*60); err != nil {
			logger.Warning("Unable to set session max age:", err)
		}
	}
	if err := session.SetLoginUser(c, user); err != nil {
		logger.Warning("Unable to save session:", err)
		pureJsonMsg(c, http.StatusInternalServerError, false, I18nWeb(c, "somethingWentWrong"))
		return
	}

	logger.Infof("%s logged in successfully, IP: %s", user.Username, getRemoteIp(c))
	jsonMsgObj(c, I18nWeb(c, "pages.login.successLogin"), user, nil)
}

// token issues a bearer token for API clients.
func (a *IndexController) token(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	tok, user, err := a.authService.Login(form.Email, form.Password)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonObj(c, gin.H{"token": tok, "user": user}, nil)
}

func (a *IndexController) logout(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		logger.Infof("%s logged out successfully", user.Username)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("Unable to clear session:", err)
	}
	jsonMsg(c, I18nWeb(c, "pages.login.logout"), nil)
}
