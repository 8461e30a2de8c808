package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"

	rediskey "b2b_workflow/pkg/redis"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前毫秒时间戳，ARGV[2]=窗口开始毫秒时间戳，ARGV[3]=key 过期秒数
// ARGV[4]=本次请求成员，ARGV[5]=窗口内上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, ttl)
  return count + 1
else
  return -1
end
`

// RedisRateLimit Redis 分布式限流（Lua 原子操作）。
// 已识别身份时按用户限流，否则按 IP；Redis 出错时放行。
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	ttlSec := int64(window / time.Second)
	if window%time.Second != 0 || ttlSec == 0 {
		ttlSec++
	}
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if actor, ok := ActorFrom(c); ok {
			subject = fmt.Sprintf("user:%d", actor.ID)
		}
		key := rediskey.RateLimitKey(scope, subject)

		now := time.Now().UnixMilli()
		windowStart := now - window.Milliseconds()

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now, windowStart, ttlSec, uuid.NewString(), limit).Int()
		if err != nil {
			logger.Warn("rate limit unavailable, allowing request", "key", key, "err", err)
			c.Next()
			return
		}

		if res < 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", ttlSec))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "too many requests, please retry later",
			})
			return
		}
		c.Next()
	}
}
