package workflow

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
)

// verbs 公开动作 -> 目标状态。每个动作只对应一个 (kind, target)。
// link 的 reject 与 remove 都落到 removed。
var verbs = map[model.Kind]map[string]model.State{
	model.KindLink: {
		"approve": model.LinkApproved,
		"reject":  model.LinkRemoved,
		"remove":  model.LinkRemoved,
		"block":   model.LinkBlocked,
	},
	model.KindOrder: {
		"accept":   model.OrderAccepted,
		"reject":   model.OrderRejected,
		"start":    model.OrderInProgress,
		"complete": model.OrderCompleted,
		"cancel":   model.OrderCancelled,
	},
	model.KindComplaint: {
		"start":    model.ComplaintInProgress,
		"escalate": model.ComplaintEscalated,
		"resolve":  model.ComplaintResolved,
	},
}

// 兼容前端写法
var verbAliases = map[string]string{
	"mark-in-progress": "start",
	"in_progress":      "start",
	"in-progress":      "start",
}

// VerbTarget 解析动作对应的目标状态。
func VerbTarget(kind model.Kind, verb string) (model.State, error) {
	v := strings.ToLower(strings.TrimSpace(verb))
	if alias, ok := verbAliases[v]; ok {
		v = alias
	}
	target, ok := verbs[kind][v]
	if !ok {
		return model.None, errors.Wrapf(apperr.ErrValidation, "unknown %s action %q", kind, verb)
	}
	return target, nil
}

// Verbs 返回某实体支持的动作名（已排序）。
func Verbs(kind model.Kind) []string {
	out := make([]string, 0, len(verbs[kind]))
	for v := range verbs[kind] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// VerbsFor 返回落到 target 的动作名（已排序），用于前端展示可执行操作。
func VerbsFor(kind model.Kind, target model.State) []string {
	var out []string
	for v, to := range verbs[kind] {
		if to == target {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
