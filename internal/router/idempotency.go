package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
	rediskey "b2b_workflow/pkg/redis"
)

const maxIdempotencyKeyLen = 128

// idempotency 创建接口的幂等重放：同一用户同一个键只创建一次，重放返回首次创建的记录。
// Redis 不可用时退化为普通创建。
type idempotency struct {
	rdb    *rd.Client
	store  *store.Store
	logger *slog.Logger
	ttl    time.Duration
}

func (i *idempotency) run(c *gin.Context, kind model.Kind, create func() (model.Record, error)) {
	clientKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if clientKey == "" || i.rdb == nil {
		respond(c, create)
		return
	}
	if len(clientKey) > maxIdempotencyKeyLen {
		badRequest(c, HeaderIdempotencyKey+" is too long")
		return
	}

	ctx := c.Request.Context()
	key := rediskey.IdempotencyKey(string(kind), actorOf(c).ID, clientKey)
	claim, err := rediskey.ClaimIdempotency(ctx, i.rdb, key, i.ttl)
	if err != nil {
		i.logger.Warn("idempotency unavailable, creating without it", "key", key, "err", err)
		respond(c, create)
		return
	}

	switch {
	case claim.InFlight:
		c.JSON(http.StatusConflict, gin.H{"code": apperr.CodeConflict, "msg": "a request with this " + HeaderIdempotencyKey + " is in progress"})
	case claim.RecordID > 0:
		rec, err := i.store.Get(ctx, kind, claim.RecordID)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Idempotent-Replayed", "true")
		ok(c, rec)
	default:
		rec, err := create()
		if err != nil {
			if relErr := rediskey.ReleaseIdempotency(ctx, i.rdb, key); relErr != nil {
				i.logger.Warn("release idempotency key", "key", key, "err", relErr)
			}
			fail(c, err)
			return
		}
		if err := rediskey.CompleteIdempotency(ctx, i.rdb, key, rec.RecordID(), i.ttl); err != nil {
			i.logger.Warn("complete idempotency key", "key", key, "err", err)
		}
		ok(c, rec)
	}
}

func respond(c *gin.Context, create func() (model.Record, error)) {
	rec, err := create()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rec)
}
