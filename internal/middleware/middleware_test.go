package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2b_workflow/pkg/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/who", func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.JSON(http.StatusOK, actor)
	})
	return r
}

func do(r http.Handler, id, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if id != "" {
		req.Header.Set(HeaderUserID, id)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentity(t *testing.T) {
	r := newEngine(Identity())

	w := do(r, "7", "Consumer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"role":"consumer"}`, w.Body.String())

	for _, tc := range []struct{ id, role string }{
		{"", "consumer"},
		{"abc", "consumer"},
		{"-1", "manager"},
		{"7", ""},
		{"7", "admin"},
	} {
		w := do(r, tc.id, tc.role)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%+v", tc)
	}
}

func TestActorFromWithoutIdentity(t *testing.T) {
	w := do(newEngine(), "7", "consumer")
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRedisRateLimitPerActor(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	r := newEngine(Identity(), RedisRateLimit(rdb, "transition", 2, time.Minute, log.Discard()))

	assert.Equal(t, http.StatusOK, do(r, "7", "manager").Code)
	assert.Equal(t, http.StatusOK, do(r, "7", "manager").Code)
	w := do(r, "7", "manager")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// 其他用户不受影响
	assert.Equal(t, http.StatusOK, do(r, "8", "manager").Code)
	assert.True(t, mr.Exists("workflow:rate_limit:transition:user:7"))
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	r := newEngine(RedisRateLimit(rdb, "transition", 1, time.Second, log.Discard()))

	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "", "").Code)
	}
}

func TestAccessLogPassesThrough(t *testing.T) {
	r := newEngine(AccessLog(log.Discard()), Identity())
	assert.Equal(t, http.StatusOK, do(r, "3", "owner").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "", "").Code)
}
