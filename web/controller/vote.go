package controller

import (
	"net/http"

	"github.com/viewer360/viewer360/web/service"

	"github.com/gin-gonic/gin"
)

type voteForm struct {
	PanoramaId int `json:"panoramaId" form:"panorama_id"`
	Value      int `json:"value" form:"value"`
}

type VoteController struct {
	BaseController

	voteService service.VoteService
}

func NewVoteController(g *gin.RouterGroup) *VoteController {
	a := &VoteController{}
	a.initRouter(g)
	return a
}

func (a *VoteController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/votes")

	g.GET("/status", a.status)
	g.POST("/toggle", a.checkLogin, a.toggle)
}

func (a *VoteController) toggle(c *gin.Context) {
	var form voteForm
	if err := c.ShouldBind(&form); err != nil || form.PanoramaId <= 0 {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidId"))
		return
	}
	result, err := a.voteService.ToggleVote(identity(c), form.PanoramaId, form.Value)
	jsonObj(c, result, err)
}

func (a *VoteController) status(c *gin.Context) {
	id := queryIntPtr(c, "panorama_id")
	if id == nil || *id <= 0 {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidId"))
		return
	}
	result, err := a.voteService.Status(identity(c), *id)
	jsonObj(c, result, err)
}
