// Package engine 组合状态机、权限表与存储，是所有状态变更的唯一入口。
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/authz"
	"b2b_workflow/internal/metrics"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/queue"
	"b2b_workflow/internal/store"
	"b2b_workflow/internal/workflow"
)

// Store 引擎依赖的存储能力，由 store.Store 实现。
type Store interface {
	Get(ctx context.Context, kind model.Kind, id uint) (model.Record, error)
	CommitTransition(ctx context.Context, kind model.Kind, id uint, expect store.Expect, to model.State, fields map[string]any) (model.Record, error)
	CommitUpdate(ctx context.Context, kind model.Kind, id uint, expect store.Expect, fields map[string]any) (model.Record, error)
	CreateLink(ctx context.Context, in store.NewLink) (*model.Link, error)
	CreateOrder(ctx context.Context, in store.NewOrder) (*model.Order, error)
	CreateComplaint(ctx context.Context, in store.NewComplaint) (*model.Complaint, error)
}

// Emitter 接收迁移成功后的事件，必须立即返回。
type Emitter interface {
	Emit(e queue.Event) bool
}

type discardEmitter struct{}

func (discardEmitter) Emit(queue.Event) bool { return false }

// Engine 无状态，可被多个 goroutine 共享。
type Engine struct {
	store   Store
	emitter Emitter
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Engine)

// WithClock 替换时间源，测试用。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(st Store, emitter Emitter, opts ...Option) *Engine {
	if emitter == nil {
		emitter = discardEmitter{}
	}
	e := &Engine{
		store:   st,
		emitter: emitter,
		now:     time.Now,
		logger:  slog.Default().With("module", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TransitionRequest 一次状态迁移请求。Fields 携带目标状态要求的附加字段。
type TransitionRequest struct {
	Kind   model.Kind
	ID     uint
	Target model.State
	Actor  model.Actor
	Fields map[string]string
}

// RequestTransition 执行一次迁移：
//  1. 读取记录
//  2. 自迁移直接拒绝
//  3. 权限校验
//  4. 状态机校验
//  5. 附加字段校验
//  6. 按读取时的状态与版本 CAS 提交，冲突不自动重试
//  7. 提交成功后异步发出事件
func (e *Engine) RequestTransition(ctx context.Context, req TransitionRequest) (rec model.Record, err error) {
	start := time.Now()
	from := model.None
	defer func() {
		result := "ok"
		if err != nil {
			result = apperr.Kind(err)
		}
		metrics.TransitionsTotal.WithLabelValues(string(req.Kind), string(from), string(req.Target), result).Inc()
		metrics.TransitionDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
		e.logResult(ctx, req, from, err)
	}()

	current, err := e.store.Get(ctx, req.Kind, req.ID)
	if err != nil {
		return nil, err
	}
	from = current.CurrentState()

	if req.Target == from {
		return nil, errors.Wrapf(apperr.ErrInvalidTransition, "%s %d is already %s", req.Kind, req.ID, from)
	}
	edge := workflow.Edge{From: from, To: req.Target}
	if !authz.Authorize(req.Kind, edge, req.Actor.Role) {
		return nil, errors.Wrapf(apperr.ErrForbidden, "role %q may not move %s %s", req.Actor.Role, req.Kind, edge)
	}
	to, err := workflow.Evaluate(req.Kind, from, req.Target)
	if err != nil {
		return nil, err
	}
	fields, err := e.sideFields(req.Kind, to, req.Fields)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "transition aborted")
	}
	updated, err := e.store.CommitTransition(ctx, req.Kind, req.ID, store.ExpectOf(current), to, fields)
	if err != nil {
		return nil, err
	}

	e.emitter.Emit(queue.NewEvent(req.Kind, req.ID, from, to, req.Actor, e.now()))
	return updated, nil
}

// Do 按动作名执行迁移，例如 order accept、complaint resolve。
func (e *Engine) Do(ctx context.Context, kind model.Kind, id uint, verb string, actor model.Actor, fields map[string]string) (model.Record, error) {
	target, err := workflow.VerbTarget(kind, verb)
	if err != nil {
		return nil, err
	}
	return e.RequestTransition(ctx, TransitionRequest{Kind: kind, ID: id, Target: target, Actor: actor, Fields: fields})
}

// sideFields 校验必填附加字段、转换可选字段并补齐时间戳字段。未声明的字段被忽略。
func (e *Engine) sideFields(kind model.Kind, to model.State, in map[string]string) (map[string]any, error) {
	required := workflow.RequiredFields(kind, to)
	optional := workflow.OptionalFields(kind, to)
	stamps := workflow.StampFields(kind, to)
	if len(required) == 0 && len(optional) == 0 && len(stamps) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(required)+len(optional)+len(stamps))
	for _, f := range required {
		v := strings.TrimSpace(in[f])
		if v == "" {
			return nil, errors.Wrapf(apperr.ErrValidation, "%s is required to move %s to %s", f, kind, to)
		}
		out[f] = v
	}
	for _, f := range optional {
		v := strings.TrimSpace(in[f])
		if v == "" {
			continue
		}
		parsed, err := fieldValue(f, v)
		if err != nil {
			return nil, err
		}
		out[f] = parsed
	}
	now := e.now().UTC()
	for _, f := range stamps {
		out[f] = now
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// fieldValue 把字符串形式的附加字段转换为列类型。
func fieldValue(field, raw string) (any, error) {
	switch field {
	case workflow.FieldDeliveryDate:
		for _, layout := range []string{time.DateOnly, time.RFC3339} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, errors.Wrapf(apperr.ErrValidation, "%s must be YYYY-MM-DD or RFC 3339, got %q", field, raw)
	}
	return raw, nil
}

func (e *Engine) logResult(ctx context.Context, req TransitionRequest, from model.State, err error) {
	attrs := []any{
		"kind", req.Kind,
		"id", req.ID,
		"from", from,
		"to", req.Target,
		"actor_id", req.Actor.ID,
		"role", req.Actor.Role,
	}
	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "transition committed", attrs...)
	case apperr.IsDomain(err):
		e.logger.DebugContext(ctx, "transition rejected", append(attrs, "err", err)...)
	default:
		e.logger.ErrorContext(ctx, "transition failed", append(attrs, "err", err)...)
	}
}
