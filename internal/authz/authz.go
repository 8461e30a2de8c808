// Package authz 是纯表驱动、无状态的授权守卫。
// 以 (实体, 边, 角色) 为键查询，而不是只看目标状态：同一目标从不同起点出发时权限不同。
package authz

import (
	"sync"

	"b2b_workflow/internal/model"
	"b2b_workflow/internal/workflow"
)

type key struct {
	kind model.Kind
	edge workflow.Edge
}

var (
	supplierAdmins = []model.Role{model.RoleManager, model.RoleOwner}
	supplierStaff  = []model.Role{model.RoleManager, model.RoleOwner, model.RoleSalesRepresentative}
	salesOnly      = []model.Role{model.RoleSalesRepresentative}
	consumerOnly   = []model.Role{model.RoleConsumer}
	orderCancel    = []model.Role{model.RoleConsumer, model.RoleManager, model.RoleOwner}
)

func edge(from, to model.State) workflow.Edge { return workflow.Edge{From: from, To: to} }

var (
	mu    sync.RWMutex
	table = map[key][]model.Role{
		// 创建边：from 为空
		{model.KindLink, edge(model.None, model.LinkPending)}:        consumerOnly,
		{model.KindOrder, edge(model.None, model.OrderPending)}:      consumerOnly,
		{model.KindComplaint, edge(model.None, model.ComplaintOpen)}: consumerOnly,

		{model.KindLink, edge(model.LinkPending, model.LinkApproved)}: supplierAdmins,
		{model.KindLink, edge(model.LinkPending, model.LinkRemoved)}:  supplierAdmins,
		{model.KindLink, edge(model.LinkApproved, model.LinkRemoved)}: supplierAdmins,
		{model.KindLink, edge(model.LinkApproved, model.LinkBlocked)}: supplierAdmins,

		{model.KindOrder, edge(model.OrderPending, model.OrderAccepted)}:     supplierStaff,
		{model.KindOrder, edge(model.OrderPending, model.OrderRejected)}:     supplierStaff,
		{model.KindOrder, edge(model.OrderAccepted, model.OrderInProgress)}:  supplierStaff,
		{model.KindOrder, edge(model.OrderInProgress, model.OrderCompleted)}: supplierStaff,
		{model.KindOrder, edge(model.OrderPending, model.OrderCancelled)}:    orderCancel,
		{model.KindOrder, edge(model.OrderAccepted, model.OrderCancelled)}:   orderCancel,

		{model.KindComplaint, edge(model.ComplaintOpen, model.ComplaintInProgress)}:      salesOnly,
		{model.KindComplaint, edge(model.ComplaintInProgress, model.ComplaintEscalated)}: salesOnly,
		{model.KindComplaint, edge(model.ComplaintOpen, model.ComplaintResolved)}:        supplierAdmins,
		{model.KindComplaint, edge(model.ComplaintInProgress, model.ComplaintResolved)}:  supplierAdmins,
		{model.KindComplaint, edge(model.ComplaintEscalated, model.ComplaintResolved)}:   supplierAdmins,
	}
)

// Op 是不改变状态的属性操作。
type Op string

const (
	OpAssign     Op = "assign"
	OpPrioritize Op = "prioritize"
)

type opKey struct {
	kind model.Kind
	op   Op
}

// ops 属性操作权限：投诉的分派与优先级调整由供应商侧员工处理。
var ops = map[opKey][]model.Role{
	{model.KindComplaint, OpAssign}:     supplierStaff,
	{model.KindComplaint, OpPrioritize}: supplierStaff,
}

// AuthorizeOp 判断 role 能否对 kind 执行属性操作 op。
func AuthorizeOp(kind model.Kind, op Op, role model.Role) bool {
	mu.RLock()
	defer mu.RUnlock()
	for _, r := range ops[opKey{kind, op}] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize 判断 role 能否触发 kind 的 e 边。表中未列出的组合一律拒绝。
func Authorize(kind model.Kind, e workflow.Edge, role model.Role) bool {
	mu.RLock()
	defer mu.RUnlock()
	for _, r := range table[key{kind, e}] {
		if r == role {
			return true
		}
	}
	return false
}

// Permitted 返回允许触发该边的角色集合（副本）。
func Permitted(kind model.Kind, e workflow.Edge) []model.Role {
	mu.RLock()
	defer mu.RUnlock()
	roles := table[key{kind, e}]
	out := make([]model.Role, len(roles))
	copy(out, roles)
	return out
}

// Grant 为新实体类别补充权限行，与 workflow.Register 配合使用。
func Grant(kind model.Kind, e workflow.Edge, roles ...model.Role) {
	mu.Lock()
	defer mu.Unlock()
	table[key{kind, e}] = append([]model.Role(nil), roles...)
}

// Revoke 删除一条权限行。
func Revoke(kind model.Kind, e workflow.Edge) {
	mu.Lock()
	defer mu.Unlock()
	delete(table, key{kind, e})
}
