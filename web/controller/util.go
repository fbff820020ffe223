package controller

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/entity"

	"github.com/gin-gonic/gin"
)

// getRemoteIp extracts the real IP address from the request headers or remote address.
func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	value = c.GetHeader("X-Forwarded-For")
	if value != "" {
		ips := strings.Split(value, ",")
		return strings.TrimSpace(ips[0])
	}
	addr := c.Request.RemoteAddr
	ip, _, _ := net.SplitHostPort(addr)
	return ip
}

// statusOf maps a service error kind to its HTTP status.
func statusOf(kind common.ErrorKind) int {
	switch kind {
	case common.KindInvalid:
		return http.StatusBadRequest
	case common.KindUnauthenticated:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj writes the response envelope. Service errors carry their own
// user-facing messages; anything else is logged and reported generically.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, entity.Msg{Success: true, Msg: msg, Obj: obj})
		return
	}

	var e *common.Error
	if !errors.As(err, &e) {
		logger.Warning(c.Request.Method, c.Request.URL.Path, "failed:", err)
		pureJsonMsg(c, http.StatusInternalServerError, false, I18nWeb(c, "somethingWentWrong"))
		return
	}
	m := entity.Msg{Msg: e.Msg}
	if e.Kind == common.KindInvalid {
		m.Errors = e.Messages()
	}
	c.JSON(statusOf(e.Kind), m)
}

func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// paramId reads a positive integer path parameter, answering 400 otherwise.
func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "invalidId"))
		return 0, false
	}
	return id, true
}

// queryIntPtr returns nil when the query value is absent or not a number.
func queryIntPtr(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}
