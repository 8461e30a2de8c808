package engine

import (
	"context"

	"b2b_workflow/internal/authz"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/workflow"
)

// Action 当前状态下的一个可选迁移。
type Action struct {
	Target   model.State `json:"target"`
	Verbs    []string    `json:"verbs"`
	Allowed  bool        `json:"allowed"`
	Requires []string    `json:"requires,omitempty"`
	Accepts  []string    `json:"accepts,omitempty"`
}

// Actions 列出记录当前可达的目标状态，以及 role 是否有权执行。终态返回空列表。
func (e *Engine) Actions(ctx context.Context, kind model.Kind, id uint, role model.Role) (model.Record, []Action, error) {
	rec, err := e.store.Get(ctx, kind, id)
	if err != nil {
		return nil, nil, err
	}
	from := rec.CurrentState()
	next := workflow.Next(kind, from)
	out := make([]Action, 0, len(next))
	for _, to := range next {
		out = append(out, Action{
			Target:   to,
			Verbs:    workflow.VerbsFor(kind, to),
			Allowed:  authz.Authorize(kind, workflow.Edge{From: from, To: to}, role),
			Requires: workflow.RequiredFields(kind, to),
			Accepts:  workflow.OptionalFields(kind, to),
		})
	}
	return rec, out, nil
}
