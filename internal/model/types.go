package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind 表示受工作流引擎管理的实体类别。
type Kind string

const (
	KindLink      Kind = "link"
	KindOrder     Kind = "order"
	KindComplaint Kind = "complaint"
)

// Kinds 返回全部实体类别，顺序固定。
func Kinds() []Kind { return []Kind{KindLink, KindOrder, KindComplaint} }

// ParseKind 解析路由或命令行中的实体类别，兼容复数形式（links/orders/complaints）。
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch k {
	case KindLink, KindOrder, KindComplaint:
		return k, nil
	}
	return "", errors.Errorf("unknown entity kind %q", s)
}

// State 是任意实体的状态值。各实体的合法取值由 workflow 包的迁移表决定。
type State string

// None 表示“尚不存在”，用作创建边的起点。
const None State = ""

// Link 状态
const (
	LinkPending  State = "pending"
	LinkApproved State = "approved"
	LinkRemoved  State = "removed"
	LinkBlocked  State = "blocked"
)

// Order 状态
const (
	OrderPending    State = "pending"
	OrderAccepted   State = "accepted"
	OrderRejected   State = "rejected"
	OrderInProgress State = "in_progress"
	OrderCompleted  State = "completed"
	OrderCancelled  State = "cancelled"
)

// Complaint 状态
const (
	ComplaintOpen       State = "open"
	ComplaintInProgress State = "in_progress"
	ComplaintEscalated  State = "escalated"
	ComplaintResolved   State = "resolved"
)

// Priority 是投诉优先级。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid 判断是否为已知优先级。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Record 是 Relationship Store 返回的任意一条记录。
type Record interface {
	RecordKind() Kind
	RecordID() uint
	CurrentState() State
	CurrentVersion() int64
}
