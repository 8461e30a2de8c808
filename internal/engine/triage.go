package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/authz"
	"b2b_workflow/internal/metrics"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/queue"
	"b2b_workflow/internal/store"
	"b2b_workflow/internal/workflow"
)

// ComplaintTriage 投诉分派与优先级调整，字段为 nil 表示不修改。
type ComplaintTriage struct {
	AssigneeID *int64
	Priority   *model.Priority
}

// TriageComplaint 修改投诉的负责人或优先级，状态保持不变。
// 与迁移共用同一套 CAS：并发修改时后提交者得到 ErrConflict。
// 已解决的投诉不可再调整；值没有变化时返回 ErrInvalidTransition。
func (e *Engine) TriageComplaint(ctx context.Context, id uint, actor model.Actor, in ComplaintTriage) (rec model.Record, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = apperr.Kind(err)
		}
		metrics.UpdatesTotal.WithLabelValues(string(model.KindComplaint), result).Inc()
		if err != nil && !apperr.IsDomain(err) {
			e.logger.ErrorContext(ctx, "complaint triage failed", "id", id, "actor_id", actor.ID, "err", err)
		}
	}()

	if in.AssigneeID == nil && in.Priority == nil {
		return nil, errors.Wrap(apperr.ErrValidation, "assignee_id or priority is required")
	}
	current, err := e.store.Get(ctx, model.KindComplaint, id)
	if err != nil {
		return nil, err
	}
	complaint, ok := current.(*model.Complaint)
	if !ok {
		return nil, errors.Errorf("unexpected record type %T", current)
	}

	if in.AssigneeID != nil && !authz.AuthorizeOp(model.KindComplaint, authz.OpAssign, actor.Role) {
		return nil, errors.Wrapf(apperr.ErrForbidden, "role %q may not assign complaints", actor.Role)
	}
	if in.Priority != nil && !authz.AuthorizeOp(model.KindComplaint, authz.OpPrioritize, actor.Role) {
		return nil, errors.Wrapf(apperr.ErrForbidden, "role %q may not change complaint priority", actor.Role)
	}
	if in.AssigneeID != nil && *in.AssigneeID <= 0 {
		return nil, errors.Wrap(apperr.ErrValidation, "assignee_id must be a positive id")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, errors.Wrapf(apperr.ErrValidation, "priority must be low, medium or high, got %q", *in.Priority)
	}
	if workflow.IsTerminal(model.KindComplaint, complaint.Status) {
		return nil, errors.Wrapf(apperr.ErrInvalidTransition, "complaint %d is %s", id, complaint.Status)
	}

	fields := map[string]any{}
	var events []queue.Event
	status := complaint.Status
	if in.AssigneeID != nil && (complaint.AssigneeID == nil || *complaint.AssigneeID != *in.AssigneeID) {
		fields["assignee_id"] = *in.AssigneeID
		events = append(events, queue.NewEvent(model.KindComplaint, id, status, status, actor, e.now()).
			WithAction(queue.ActionAssigned, fmt.Sprintf("assignee_id=%d", *in.AssigneeID)))
	}
	if in.Priority != nil && complaint.Priority != *in.Priority {
		fields["priority"] = *in.Priority
		events = append(events, queue.NewEvent(model.KindComplaint, id, status, status, actor, e.now()).
			WithAction(queue.ActionReprioritized, fmt.Sprintf("priority=%s", *in.Priority)))
	}
	if len(fields) == 0 {
		return nil, errors.Wrapf(apperr.ErrInvalidTransition, "complaint %d already has the requested assignee and priority", id)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "triage aborted")
	}
	updated, err := e.store.CommitUpdate(ctx, model.KindComplaint, id, store.ExpectOf(current), fields)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		e.emitter.Emit(ev)
	}
	e.logger.InfoContext(ctx, "complaint triaged", "id", id, "actor_id", actor.ID, "role", actor.Role, "fields", len(fields))
	return updated, nil
}
