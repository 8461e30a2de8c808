package workflow

import (
	"github.com/pkg/errors"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
)

// Evaluate 校验 kind 实体从 current 迁移到 requested 是否合法，合法时返回新状态。
// 自迁移（current == requested）、未知状态、未知实体一律 ErrInvalidTransition。
func Evaluate(kind model.Kind, current, requested model.State) (model.State, error) {
	d, ok := Lookup(kind)
	if !ok {
		return current, errors.Wrapf(apperr.ErrInvalidTransition, "unknown kind %q", kind)
	}
	if current == requested {
		return current, errors.Wrapf(apperr.ErrInvalidTransition, "%s is already %s", kind, current)
	}
	if !d.Has(current, requested) {
		return current, errors.Wrapf(apperr.ErrInvalidTransition, "%s: no edge %s", kind, Edge{From: current, To: requested})
	}
	return requested, nil
}

// Next 返回从 from 出发当前可达的目标状态。
func Next(kind model.Kind, from model.State) []model.State {
	d, ok := Lookup(kind)
	if !ok {
		return nil
	}
	out := make([]model.State, len(d.Transitions[from]))
	copy(out, d.Transitions[from])
	return out
}

// RequiredFields 返回进入 to 状态时必须提供的附加字段。
func RequiredFields(kind model.Kind, to model.State) []string {
	d, _ := Lookup(kind)
	return d.Required[to]
}

// OptionalFields 返回进入 to 状态时可选的附加字段。
func OptionalFields(kind model.Kind, to model.State) []string {
	d, _ := Lookup(kind)
	return d.Optional[to]
}

// IsTerminal 判断 s 是否为 kind 的终态。
func IsTerminal(kind model.Kind, s model.State) bool {
	d, ok := Lookup(kind)
	return ok && d.IsTerminal(s)
}

// StampFields 返回进入 to 状态时需要打时间戳的字段。
func StampFields(kind model.Kind, to model.State) []string {
	d, _ := Lookup(kind)
	return d.Stamps[to]
}

// InitialState 返回实体创建时的状态。
func InitialState(kind model.Kind) model.State {
	d, _ := Lookup(kind)
	return d.Initial
}
