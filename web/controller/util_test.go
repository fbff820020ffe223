package controller

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/entity"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusOf(common.KindInvalid))
	assert.Equal(t, http.StatusUnauthorized, statusOf(common.KindUnauthenticated))
	assert.Equal(t, http.StatusForbidden, statusOf(common.KindForbidden))
	assert.Equal(t, http.StatusNotFound, statusOf(common.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusOf(common.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusOf(common.KindInternal))
}

func respond(t *testing.T, handler gin.HandlerFunc) (int, entity.Msg) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)
	var msg entity.Msg
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	return w.Code, msg
}

func TestJsonMsgObj(t *testing.T) {
	code, msg := respond(t, func(c *gin.Context) { jsonObj(c, 5, nil) })
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, msg.Success)
	assert.Equal(t, float64(5), msg.Obj)

	code, msg = respond(t, func(c *gin.Context) {
		jsonMsg(c, "", common.InvalidList([]string{"a", "b"}))
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, msg.Success)
	assert.Equal(t, []string{"a", "b"}, msg.Errors)

	code, msg = respond(t, func(c *gin.Context) { jsonMsg(c, "", common.Invalid("Label is required.")) })
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"Label is required."}, msg.Errors)

	code, msg = respond(t, func(c *gin.Context) { jsonMsg(c, "", common.NotFound("Panorama not found.")) })
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Panorama not found.", msg.Msg)
	assert.Empty(t, msg.Errors)

	code, msg = respond(t, func(c *gin.Context) { jsonMsg(c, "", errors.New("disk on fire")) })
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, msg.Msg, "disk on fire")
}

func TestParamId(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, ok := paramId(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "12"}}
	id, ok := paramId(c, "id")
	assert.True(t, ok)
	assert.Equal(t, 12, id)
}

func TestMarkerFormTarget(t *testing.T) {
	zero, seven := 0, 7
	assert.Nil(t, (&markerForm{}).target())
	assert.Nil(t, (&markerForm{TargetPanoramaId: &zero}).target())
	assert.Equal(t, &seven, (&markerForm{TargetPanoramaId: &seven}).target())
}
