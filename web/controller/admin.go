package controller

import (
	"net/http"
	"strconv"

	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/web/entity"
	"github.com/viewer360/viewer360/web/middleware"
	"github.com/viewer360/viewer360/web/service"

	"github.com/gin-gonic/gin"
)

// AdminController exposes moderation and panel settings to administrators.
type AdminController struct {
	moderationService service.ModerationService
	settingService    service.SettingService
}

func NewAdminController(g *gin.RouterGroup) *AdminController {
	a := &AdminController{}
	a.initRouter(g)
	return a
}

func (a *AdminController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/admin", middleware.RoleRequired(model.RoleAdmin))

	g.GET("/stats", a.stats)
	g.GET("/users", a.users)
	g.POST("/users/:id/ban", a.toggleBan)
	g.GET("/panoramas", a.panoramas)
	g.POST("/panoramas/:id/delete", a.deletePanorama)
	g.GET("/markers", a.markers)
	g.POST("/markers/:id/delete", a.deleteMarker)
	g.POST("/cleanup", a.cleanup)
	g.GET("/logs", a.logs)
	g.GET("/settings", a.getAllSetting)
	g.POST("/settings", a.updateSetting)
}

func (a *AdminController) stats(c *gin.Context) {
	stats, err := a.moderationService.Stats(identity(c))
	jsonObj(c, stats, err)
}

func (a *AdminController) users(c *gin.Context) {
	users, err := a.moderationService.ListUsers(identity(c))
	jsonObj(c, users, err)
}

func (a *AdminController) toggleBan(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	result, err := a.moderationService.ToggleBan(identity(c), id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, result.Message, result, nil)
}

func (a *AdminController) panoramas(c *gin.Context) {
	list, err := a.moderationService.ListPanoramas(identity(c), queryIntPtr(c, "user_id"))
	jsonObj(c, list, err)
}

func (a *AdminController) deletePanorama(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	result, err := a.moderationService.ForceDeletePanorama(identity(c), id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.admin.panoramaDeleted"), result, nil)
}

func (a *AdminController) markers(c *gin.Context) {
	list, err := a.moderationService.ListMarkers(identity(c), queryIntPtr(c, "panorama_id"))
	jsonObj(c, list, err)
}

func (a *AdminController) deleteMarker(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	audioDeleted, err := a.moderationService.ForceDeleteMarker(identity(c), id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.admin.markerDeleted"), gin.H{"audioDeleted": audioDeleted}, nil)
}

func (a *AdminController) cleanup(c *gin.Context) {
	result, err := a.moderationService.CleanupOrphanFiles(identity(c))
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	msg := I18nWeb(c, "pages.admin.cleanupDone", "Count=="+strconv.Itoa(result.DeletedCount))
	jsonMsgObj(c, msg, result, nil)
}

func (a *AdminController) logs(c *gin.Context) {
	count, _ := strconv.Atoi(c.DefaultQuery("count", "100"))
	level := c.DefaultQuery("level", "info")
	logs, err := a.moderationService.Logs(identity(c), count, level)
	jsonObj(c, logs, err)
}

func (a *AdminController) getAllSetting(c *gin.Context) {
	allSetting, err := a.settingService.GetAllSetting()
	jsonObj(c, allSetting, err)
}

func (a *AdminController) updateSetting(c *gin.Context) {
	allSetting := &entity.AllSetting{}
	if err := c.ShouldBind(allSetting); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	if err := a.settingService.UpdateAllSetting(allSetting); err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsg(c, I18nWeb(c, "pages.admin.settingsSaved"), nil)
}
