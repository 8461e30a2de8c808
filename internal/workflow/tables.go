package workflow

import "b2b_workflow/internal/model"

// 附加字段名，与 API 请求体字段一致。
const (
	FieldRejectionReason = "rejection_reason"
	FieldResolutionNotes = "resolution_notes"
	FieldApprovedAt      = "approved_at"
	FieldResolvedAt      = "resolved_at"
	FieldDeliveryDate    = "delivery_date"
)

// LinkDefinition: removed/blocked 为终态，记录永不删除。
var LinkDefinition = Definition{
	Kind:    model.KindLink,
	Initial: model.LinkPending,
	Transitions: map[model.State][]model.State{
		model.LinkPending:  {model.LinkApproved, model.LinkRemoved},
		model.LinkApproved: {model.LinkRemoved, model.LinkBlocked},
	},
	Stamps: map[model.State][]string{
		model.LinkApproved: {FieldApprovedAt},
	},
}

// OrderDefinition: rejected/completed/cancelled 为终态。
var OrderDefinition = Definition{
	Kind:    model.KindOrder,
	Initial: model.OrderPending,
	Transitions: map[model.State][]model.State{
		model.OrderPending:    {model.OrderAccepted, model.OrderRejected, model.OrderCancelled},
		model.OrderAccepted:   {model.OrderInProgress, model.OrderCancelled},
		model.OrderInProgress: {model.OrderCompleted},
	},
	Required: map[model.State][]string{
		model.OrderRejected: {FieldRejectionReason},
	},
	// 供应商接单时可确认交付日期
	Optional: map[model.State][]string{
		model.OrderAccepted: {FieldDeliveryDate},
	},
}

// ComplaintDefinition: escalated 之后仍可 resolved；resolved 为终态。
var ComplaintDefinition = Definition{
	Kind:    model.KindComplaint,
	Initial: model.ComplaintOpen,
	Transitions: map[model.State][]model.State{
		model.ComplaintOpen:       {model.ComplaintInProgress, model.ComplaintResolved},
		model.ComplaintInProgress: {model.ComplaintEscalated, model.ComplaintResolved},
		model.ComplaintEscalated:  {model.ComplaintResolved},
	},
	Required: map[model.State][]string{
		model.ComplaintResolved: {FieldResolutionNotes},
	},
	Stamps: map[model.State][]string{
		model.ComplaintResolved: {FieldResolvedAt},
	},
}

func init() {
	Register(LinkDefinition)
	Register(OrderDefinition)
	Register(ComplaintDefinition)
}
