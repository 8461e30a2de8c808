package engine

import (
	"context"

	"github.com/pkg/errors"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/authz"
	"b2b_workflow/internal/metrics"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/queue"
	"b2b_workflow/internal/store"
	"b2b_workflow/internal/workflow"
)

// CreateLink 采购方发起合作申请。ConsumerID 为空时取 actor.ID。
func (e *Engine) CreateLink(ctx context.Context, actor model.Actor, in store.NewLink) (link *model.Link, err error) {
	defer e.observeCreate(ctx, model.KindLink, actor, &err)

	if err := e.authorizeCreate(model.KindLink, actor); err != nil {
		return nil, err
	}
	if in.ConsumerID, err = bindConsumer(actor, in.ConsumerID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "create aborted")
	}
	link, err = e.store.CreateLink(ctx, in)
	if err != nil {
		return nil, err
	}
	e.emitCreated(model.KindLink, link.ID, link.Status, actor)
	return link, nil
}

// CreateOrder 采购方基于已审批的 Link 下单。
func (e *Engine) CreateOrder(ctx context.Context, actor model.Actor, in store.NewOrder) (order *model.Order, err error) {
	defer e.observeCreate(ctx, model.KindOrder, actor, &err)

	if err := e.authorizeCreate(model.KindOrder, actor); err != nil {
		return nil, err
	}
	if in.ConsumerID, err = bindConsumer(actor, in.ConsumerID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "create aborted")
	}
	order, err = e.store.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	e.emitCreated(model.KindOrder, order.ID, order.Status, actor)
	return order, nil
}

// CreateComplaint 采购方对自己的订单发起投诉。
func (e *Engine) CreateComplaint(ctx context.Context, actor model.Actor, in store.NewComplaint) (complaint *model.Complaint, err error) {
	defer e.observeCreate(ctx, model.KindComplaint, actor, &err)

	if err := e.authorizeCreate(model.KindComplaint, actor); err != nil {
		return nil, err
	}
	rec, err := e.store.Get(ctx, model.KindOrder, in.OrderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, errors.Wrapf(apperr.ErrPreconditionFailed, "order %d does not exist", in.OrderID)
		}
		return nil, err
	}
	if order, ok := rec.(*model.Order); ok && order.ConsumerID != actor.ID {
		return nil, errors.Wrapf(apperr.ErrForbidden, "order %d belongs to another consumer", in.OrderID)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "create aborted")
	}
	complaint, err = e.store.CreateComplaint(ctx, in)
	if err != nil {
		return nil, err
	}
	e.emitCreated(model.KindComplaint, complaint.ID, complaint.Status, actor)
	return complaint, nil
}

// authorizeCreate 创建视为从 None 到初始状态的一条边，走同一张权限表。
func (e *Engine) authorizeCreate(kind model.Kind, actor model.Actor) error {
	edge := workflow.Edge{From: model.None, To: workflow.InitialState(kind)}
	if !authz.Authorize(kind, edge, actor.Role) {
		return errors.Wrapf(apperr.ErrForbidden, "role %q may not create %s", actor.Role, kind)
	}
	return nil
}

// bindConsumer 采购方只能以自己的身份创建记录。
func bindConsumer(actor model.Actor, consumerID int64) (int64, error) {
	if consumerID == 0 {
		return actor.ID, nil
	}
	if consumerID != actor.ID {
		return 0, errors.Wrapf(apperr.ErrForbidden, "user %d may not act for consumer %d", actor.ID, consumerID)
	}
	return consumerID, nil
}

func (e *Engine) emitCreated(kind model.Kind, id uint, initial model.State, actor model.Actor) {
	e.emitter.Emit(queue.NewEvent(kind, id, model.None, initial, actor, e.now()))
}

func (e *Engine) observeCreate(ctx context.Context, kind model.Kind, actor model.Actor, errp *error) {
	err := *errp
	metrics.CreatesTotal.WithLabelValues(string(kind), apperr.Kind(err)).Inc()
	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "record created", "kind", kind, "actor_id", actor.ID, "role", actor.Role)
	case apperr.IsDomain(err):
		e.logger.DebugContext(ctx, "create rejected", "kind", kind, "actor_id", actor.ID, "err", err)
	default:
		e.logger.ErrorContext(ctx, "create failed", "kind", kind, "actor_id", actor.ID, "err", err)
	}
}
