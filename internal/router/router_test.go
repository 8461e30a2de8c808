package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/config"
	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
	"b2b_workflow/pkg/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t     *testing.T
	r     *gin.Engine
	store *store.Store
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	st := store.New(db)

	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	Setup(r, Deps{
		Engine: engine.New(st, nil, engine.WithLogger(log.Discard())),
		Store:  st,
		Redis:  rdb,
		Config: config.AppConfig{TransitionRateLimit: rateLimit, TransitionRateWindowSec: 60},
		Logger: log.Discard(),
	})
	return &testServer{t: t, r: r, store: st}
}

type caller struct {
	id   int64
	role model.Role
}

var (
	consumer = caller{7, model.RoleConsumer}
	mgr      = caller{30, model.RoleManager}
	rep      = caller{31, model.RoleSalesRepresentative}
)

func (s *testServer) call(who caller, method, path string, body any, headers ...string) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.id != 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(who.id))
		req.Header.Set("X-User-Role", string(who.role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) approvedLink() model.Link {
	code, env := s.call(consumer, http.MethodPost, "/api/links", gin.H{"supplier_id": 3})
	require.Equal(s.t, http.StatusOK, code, env.Msg)
	link := decode[model.Link](s.t, env)
	code, env = s.call(mgr, http.MethodPost, fmt.Sprintf("/api/links/%d/approve", link.ID), nil)
	require.Equal(s.t, http.StatusOK, code, env.Msg)
	return decode[model.Link](s.t, env)
}

func TestPingAndMetrics(t *testing.T) {
	s := newTestServer(t, 100)
	code, _ := s.call(caller{}, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiresIdentity(t *testing.T) {
	s := newTestServer(t, 100)
	code, env := s.call(caller{}, http.MethodGet, "/api/links", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 401, env.Code)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, 100)
	link := s.approvedLink()
	assert.Equal(t, model.LinkApproved, link.Status)
	require.NotNil(t, link.ApprovedAt)

	code, env := s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": link.ID, "total_amount": 120.50})
	require.Equal(t, http.StatusOK, code, env.Msg)
	order := decode[model.Order](t, env)
	assert.Equal(t, int64(12050), order.TotalAmount)

	path := fmt.Sprintf("/api/orders/%d", order.ID)
	code, env = s.call(rep, http.MethodPost, path+"/reject", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 400, env.Code)

	code, env = s.call(consumer, http.MethodPost, path+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 403, env.Code)

	code, env = s.call(rep, http.MethodPost, path+"/reject", gin.H{"rejection_reason": "out of stock"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	rejected := decode[model.Order](t, env)
	assert.Equal(t, model.OrderRejected, rejected.Status)
	assert.Equal(t, "out of stock", rejected.RejectionReason)

	code, env = s.call(rep, http.MethodPatch, path, gin.H{"status": "rejected", "rejection_reason": "again"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.CodeInvalidTransition, env.Code)

	code, env = s.call(rep, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.OrderRejected, decode[model.Order](t, env).Status)

	code, env = s.call(rep, http.MethodGet, fmt.Sprintf("/api/orders?link_id=%d&status=rejected", link.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.Order](t, env), 1)
}

func TestComplaintFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, 100)
	link := s.approvedLink()
	_, env := s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": link.ID, "total_amount": 10})
	order := decode[model.Order](t, env)

	code, _ := s.call(consumer, http.MethodPost, "/api/complaints", gin.H{"order_id": order.ID, "title": "Late"})
	assert.Equal(t, http.StatusBadRequest, code, "description is required")

	code, env = s.call(consumer, http.MethodPost, "/api/complaints",
		gin.H{"order_id": order.ID, "title": "Late", "description": "two weeks late"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	complaint := decode[model.Complaint](t, env)
	path := fmt.Sprintf("/api/complaints/%d", complaint.ID)

	code, _ = s.call(rep, http.MethodPost, path+"/mark-in-progress", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.call(rep, http.MethodPost, path+"/resolve", gin.H{"resolution_notes": "refund"})
	assert.Equal(t, http.StatusForbidden, code)
	code, env = s.call(mgr, http.MethodPost, path+"/resolve", gin.H{"resolution_notes": "refund"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Equal(t, model.ComplaintResolved, decode[model.Complaint](t, env).Status)

	code, env = s.call(mgr, http.MethodPost, path+"/resolve", gin.H{"resolution_notes": "refund"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.CodeInvalidTransition, env.Code)

	require.NoError(t, s.store.AppendLog(context.Background(), &model.TransitionLog{
		EventID: "evt-1", Kind: model.KindComplaint, EntityID: complaint.ID,
		FromState: model.ComplaintOpen, ToState: model.ComplaintInProgress,
		ActorID: rep.id, ActorRole: rep.role, OccurredAt: time.Now(),
	}))
	code, env = s.call(mgr, http.MethodGet, path+"/logs", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.TransitionLog](t, env), 1)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, 100)

	code, env := s.call(mgr, http.MethodGet, "/api/links/99", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 404, env.Code)

	code, _ = s.call(mgr, http.MethodGet, "/api/links/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.call(consumer, http.MethodPost, "/api/links", gin.H{"supplier_id": 3})
	require.Equal(t, http.StatusOK, code)
	link := decode[model.Link](t, env)

	code, env = s.call(consumer, http.MethodPost, "/api/links", gin.H{"supplier_id": 3})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.CodeConflict, env.Code)

	code, env = s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": link.ID, "total_amount": 5})
	assert.Equal(t, http.StatusPreconditionFailed, code)
	assert.Equal(t, 412, env.Code)

	code, _ = s.call(consumer, http.MethodPost, fmt.Sprintf("/api/links/%d/approve", link.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.call(mgr, http.MethodPost, fmt.Sprintf("/api/links/%d/ship", link.ID), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownTargetStatusIsForbidden(t *testing.T) {
	s := newTestServer(t, 100)
	link := s.approvedLink()
	path := fmt.Sprintf("/api/links/%d", link.ID)

	// 权限表先于状态机检查：表外的边（包括未知状态）一律 403
	for _, status := range []string{"bogus", "pending"} {
		code, env := s.call(mgr, http.MethodPatch, path, gin.H{"status": status})
		assert.Equal(t, http.StatusForbidden, code, status)
		assert.Equal(t, 403, env.Code, status)
	}
	// 自迁移在权限检查之前拒绝
	code, env := s.call(mgr, http.MethodPatch, path, gin.H{"status": "approved"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.CodeInvalidTransition, env.Code)

	code, env = s.call(mgr, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.LinkApproved, decode[model.Link](t, env).Status)
}

func TestComplaintTriageOverHTTP(t *testing.T) {
	s := newTestServer(t, 100)
	link := s.approvedLink()

	code, _ := s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": link.ID, "total_amount": 1e17})
	assert.Equal(t, http.StatusBadRequest, code, "amount above cap")

	code, env := s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": link.ID, "total_amount": 10})
	require.Equal(t, http.StatusOK, code, env.Msg)
	order := decode[model.Order](t, env)

	code, env = s.call(rep, http.MethodPost, fmt.Sprintf("/api/orders/%d/accept", order.ID), gin.H{"delivery_date": "2026-11-20"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	accepted := decode[model.Order](t, env)
	require.NotNil(t, accepted.DeliveryDate)
	assert.Equal(t, "2026-11-20", accepted.DeliveryDate.Format(time.DateOnly))

	code, env = s.call(consumer, http.MethodPost, "/api/complaints",
		gin.H{"order_id": order.ID, "title": "Late", "description": "two weeks late"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	complaint := decode[model.Complaint](t, env)
	path := fmt.Sprintf("/api/complaints/%d/triage", complaint.ID)

	code, _ = s.call(consumer, http.MethodPatch, path, gin.H{"priority": "high"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.call(rep, http.MethodPatch, path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.call(rep, http.MethodPatch, path, gin.H{"assignee_id": 31, "priority": "high"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	got := decode[model.Complaint](t, env)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, int64(31), *got.AssigneeID)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, model.ComplaintOpen, got.Status)

	code, env = s.call(rep, http.MethodPatch, path, gin.H{"priority": "high"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.CodeInvalidTransition, env.Code)
}

func TestActionsEndpoint(t *testing.T) {
	s := newTestServer(t, 100)
	link := s.approvedLink()

	code, env := s.call(mgr, http.MethodGet, fmt.Sprintf("/api/links/%d/actions", link.ID), nil)
	require.Equal(t, http.StatusOK, code)
	out := decode[struct {
		Actions []engine.Action `json:"actions"`
	}](t, env)
	require.Len(t, out.Actions, 2)
	for _, a := range out.Actions {
		assert.True(t, a.Allowed, a.Target)
	}

	_, env = s.call(consumer, http.MethodGet, fmt.Sprintf("/api/links/%d/actions", link.ID), nil)
	out = decode[struct {
		Actions []engine.Action `json:"actions"`
	}](t, env)
	for _, a := range out.Actions {
		assert.False(t, a.Allowed, a.Target)
	}
}

func TestIdempotentCreate(t *testing.T) {
	s := newTestServer(t, 100)

	code, env := s.call(consumer, http.MethodPost, "/api/links", gin.H{"supplier_id": 3}, HeaderIdempotencyKey, "req-1")
	require.Equal(t, http.StatusOK, code, env.Msg)
	first := decode[model.Link](t, env)

	req := httptest.NewRequest(http.MethodPost, "/api/links", bytes.NewBufferString(`{"supplier_id":3}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("X-User-Role", "consumer")
	req.Header.Set(HeaderIdempotencyKey, "req-1")
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	var env2 envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env2))
	assert.Equal(t, first.ID, decode[model.Link](t, env2).ID)

	// 失败的创建释放占位，允许同一个键重试
	code, _ = s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": first.ID, "total_amount": 1}, HeaderIdempotencyKey, "req-2")
	assert.Equal(t, http.StatusPreconditionFailed, code)
	code, _ = s.call(mgr, http.MethodPost, fmt.Sprintf("/api/links/%d/approve", first.ID), nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.call(consumer, http.MethodPost, "/api/orders", gin.H{"link_id": first.ID, "total_amount": 1}, HeaderIdempotencyKey, "req-2")
	assert.Equal(t, http.StatusOK, code, env.Msg)
}

func TestTransitionRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	code, env := s.call(consumer, http.MethodPost, "/api/links", gin.H{"supplier_id": 3})
	require.Equal(t, http.StatusOK, code)
	link := decode[model.Link](t, env)

	code, _ = s.call(mgr, http.MethodPost, fmt.Sprintf("/api/links/%d/approve", link.ID), nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.call(mgr, http.MethodPost, fmt.Sprintf("/api/links/%d/block", link.ID), nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, 429, env.Code)

	// 读接口不限流
	code, _ = s.call(mgr, http.MethodGet, fmt.Sprintf("/api/links/%d", link.ID), nil)
	assert.Equal(t, http.StatusOK, code)
}
