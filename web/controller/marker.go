package controller

import (
	"net/http"

	"github.com/viewer360/viewer360/web/service"

	"github.com/gin-gonic/gin"
)

type markerForm struct {
	PanoramaId       int      `json:"panoramaId" form:"panoramaId"`
	Yaw              *float64 `json:"yaw" form:"yaw"`
	Pitch            *float64 `json:"pitch" form:"pitch"`
	Label            string   `json:"label" form:"label"`
	Description      string   `json:"description" form:"description"`
	Type             string   `json:"type" form:"type"`
	Color            string   `json:"color" form:"color"`
	TargetPanoramaId *int     `json:"targetPanoramaId" form:"targetPanoramaId"`
	RemoveAudio      bool     `json:"removeAudio" form:"removeAudio"`
}

// target treats an empty or zero target as "no portal".
func (f *markerForm) target() *int {
	if f.TargetPanoramaId == nil || *f.TargetPanoramaId <= 0 {
		return nil
	}
	return f.TargetPanoramaId
}

type MarkerController struct {
	BaseController

	markerService service.MarkerService
}

func NewMarkerController(g *gin.RouterGroup) *MarkerController {
	a := &MarkerController{}
	a.initRouter(g)
	return a
}

func (a *MarkerController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/markers")

	g.GET("/colors", a.colors)
	g.GET("/:id", a.get)

	auth := g.Group("", a.checkLogin)
	auth.POST("", a.create)
	auth.POST("/:id/update", a.update)
	auth.POST("/:id/delete", a.delete)
}

func (a *MarkerController) colors(c *gin.Context) {
	jsonObj(c, a.markerService.Colors(), nil)
}

func (a *MarkerController) get(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	m, err := a.markerService.GetMarkerForViewer(id, identity(c))
	jsonObj(c, m, err)
}

func (a *MarkerController) create(c *gin.Context) {
	var form markerForm
	if err := c.ShouldBind(&form); err != nil || form.Yaw == nil || form.Pitch == nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	audio, err := formUpload(c, "audio")
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	m, err := a.markerService.Create(identity(c), service.MarkerInput{
		PanoramaId:       form.PanoramaId,
		Yaw:              *form.Yaw,
		Pitch:            *form.Pitch,
		Label:            form.Label,
		Description:      form.Description,
		Type:             form.Type,
		Color:            form.Color,
		Audio:            &audio,
		TargetPanoramaId: form.target(),
	})
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.markers.created"), m, nil)
}

func (a *MarkerController) update(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var form markerForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	audio, err := formUpload(c, "audio")
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	m, err := a.markerService.Update(identity(c), id, service.MarkerUpdate{
		Label:            form.Label,
		Description:      form.Description,
		Type:             form.Type,
		Color:            form.Color,
		Yaw:              form.Yaw,
		Pitch:            form.Pitch,
		Audio:            &audio,
		RemoveAudio:      form.RemoveAudio,
		TargetPanoramaId: form.target(),
	})
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.markers.updated"), m, nil)
}

func (a *MarkerController) delete(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	if err := a.markerService.Delete(identity(c), id); err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsg(c, I18nWeb(c, "pages.markers.deleted"), nil)
}
