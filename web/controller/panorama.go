package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/service"

	"github.com/gin-gonic/gin"
)

type panoramaForm struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	IsPublic    bool   `json:"isPublic" form:"isPublic"`
}

type PanoramaController struct {
	BaseController

	panoramaService service.PanoramaService
	markerService   service.MarkerService
	voteService     service.VoteService
}

func NewPanoramaController(g *gin.RouterGroup) *PanoramaController {
	a := &PanoramaController{}
	a.initRouter(g)
	return a
}

func (a *PanoramaController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/panoramas")

	g.GET("/public", a.listPublic)
	g.GET("/:id", a.get)
	g.GET("/:id/markers", a.markers)
	g.GET("/:id/lineage", a.lineage)

	auth := g.Group("", a.checkLogin)
	auth.GET("/mine", a.listMine)
	auth.GET("/linkable", a.linkable)
	auth.POST("", a.upload)
	auth.POST("/:id/update", a.update)
	auth.POST("/:id/delete", a.delete)
	auth.POST("/:id/fork", a.fork)
	auth.GET("/:id/export", a.export)
}

// formUpload returns the named multipart file, or an absent upload.
func formUpload(c *gin.Context, name string) (storage.Upload, error) {
	fh, err := c.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return storage.Upload{}, nil
	}
	if err != nil {
		return storage.Upload{}, err
	}
	return storage.FromFileHeader(fh), nil
}

func (a *PanoramaController) listPublic(c *gin.Context) {
	list, err := a.panoramaService.ListPublic()
	jsonObj(c, list, err)
}

func (a *PanoramaController) listMine(c *gin.Context) {
	list, err := a.panoramaService.ListByOwner(identity(c).UserId)
	jsonObj(c, list, err)
}

func (a *PanoramaController) linkable(c *gin.Context) {
	list, err := a.panoramaService.ListForLinking(identity(c).UserId, queryIntPtr(c, "exclude_id"))
	jsonObj(c, list, err)
}

// get returns everything the viewer page needs. Panoramas the caller may not
// see are reported as missing.
func (a *PanoramaController) get(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	caller := identity(c)
	p, err := a.panoramaService.GetForViewer(id, caller)
	if common.IsKind(err, common.KindForbidden) {
		err = common.NotFound("Panorama not found.")
	}
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	markers, err := a.markerService.GetByPanorama(id, caller)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	vote, err := a.voteService.Status(caller, id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	lineage, err := a.panoramaService.GetLineage(id, caller)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonObj(c, gin.H{
		"panorama": p,
		"markers":  markers,
		"vote":     vote,
		"lineage":  lineage,
		"isOwner":  caller.Owns(p.UserId),
	}, nil)
}

func (a *PanoramaController) markers(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	markers, err := a.markerService.GetByPanorama(id, identity(c))
	jsonObj(c, markers, err)
}

func (a *PanoramaController) lineage(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	lineage, err := a.panoramaService.GetLineage(id, identity(c))
	if common.IsKind(err, common.KindForbidden) {
		err = common.NotFound("Panorama not found.")
	}
	jsonObj(c, lineage, err)
}

func (a *PanoramaController) upload(c *gin.Context) {
	var form panoramaForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	file, err := formUpload(c, "panorama")
	if err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	p, err := a.panoramaService.Upload(identity(c), file, form.Title, form.Description, form.IsPublic)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.panoramas.uploaded"), p, nil)
}

func (a *PanoramaController) update(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var form panoramaForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidFormData"))
		return
	}
	p, err := a.panoramaService.Update(identity(c), id, form.Title, form.Description, form.IsPublic)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.panoramas.updated"), p, nil)
}

func (a *PanoramaController) delete(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	err := a.panoramaService.Delete(identity(c), id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsg(c, I18nWeb(c, "pages.panoramas.deleted"), nil)
}

func (a *PanoramaController) fork(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	p, err := a.panoramaService.ForkPanorama(identity(c), id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.panoramas.forked"), p, nil)
}

func (a *PanoramaController) export(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	data, err := a.panoramaService.Export(identity(c), id)
	if err != nil {
		jsonMsg(c, "", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=panorama-%d.json", id))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
