package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/config"
	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/middleware"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
)

// HeaderIdempotencyKey 创建接口的客户端幂等键。
const HeaderIdempotencyKey = "Idempotency-Key"

// Deps 路由依赖。Redis 为 nil 时关闭限流与幂等键。
type Deps struct {
	Engine *engine.Engine
	Store  *store.Store
	Redis  *rd.Client
	Config config.AppConfig
	Logger *slog.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Identity())

	// 迁移接口按用户限流
	limit := func(c *gin.Context) { c.Next() }
	if d.Redis != nil {
		limit = middleware.RedisRateLimit(d.Redis, "transition", d.Config.TransitionRateLimit, d.Config.TransitionRateWindow(), d.Logger)
	}
	idem := &idempotency{rdb: d.Redis, store: d.Store, logger: d.Logger, ttl: 24 * time.Hour}

	links := api.Group("/links")
	links.POST("", createLink(d.Engine, idem))
	links.GET("", listLinks(d.Store))

	orders := api.Group("/orders")
	orders.POST("", createOrder(d.Engine, idem))
	orders.GET("", listOrders(d.Store))

	complaints := api.Group("/complaints")
	complaints.POST("", createComplaint(d.Engine, idem))
	complaints.GET("", listComplaints(d.Store))
	complaints.PATCH("/:id/triage", limit, triageComplaint(d.Engine))

	for kind, g := range map[model.Kind]*gin.RouterGroup{
		model.KindLink:      links,
		model.KindOrder:     orders,
		model.KindComplaint: complaints,
	} {
		g.GET("/:id", getRecord(d.Store, kind))
		g.GET("/:id/actions", listActions(d.Engine, kind))
		g.GET("/:id/logs", listLogs(d.Store, kind))
		g.POST("/:id/:verb", limit, doVerb(d.Engine, kind))
		g.PATCH("/:id", limit, patchStatus(d.Engine, kind))
	}
}

// ok 统一成功响应
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

// fail 将业务错误映射为 HTTP 状态码；基础设施错误不向调用方暴露细节。
func fail(c *gin.Context, err error) {
	status, code := apperr.Status(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"code": code, "msg": "internal error"})
		return
	}
	c.JSON(status, gin.H{"code": code, "msg": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": msg})
}

// parseID 解析路径中的记录 ID
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// actorOf Identity 中间件保证已写入身份
func actorOf(c *gin.Context) model.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}
