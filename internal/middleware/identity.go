package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"b2b_workflow/internal/model"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	actorKey = "workflow.actor"
)

// Identity 从请求头解析调用者身份。身份由上游网关注入，这里只做格式校验。
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderUserID)), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "missing or invalid " + HeaderUserID})
			return
		}
		role, err := model.ParseRole(c.GetHeader(HeaderUserRole))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": err.Error()})
			return
		}
		c.Set(actorKey, model.Actor{ID: id, Role: role})
		c.Next()
	}
}

// ActorFrom 取出 Identity 写入的调用者。
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
