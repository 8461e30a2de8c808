package model

import "time"

// Order 采购方基于已审批 Link 下的采购单
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LinkID          uint       `gorm:"not null;index" json:"link_id"`
	ConsumerID      int64      `gorm:"not null;index" json:"consumer_id"`
	SupplierID      int64      `gorm:"not null;index" json:"supplier_id"`
	TotalAmount     int64      `gorm:"not null" json:"total_amount"` // 总金额，单位分
	Status          State      `gorm:"size:32;not null;default:pending;index" json:"status"`
	RejectionReason string     `gorm:"size:500" json:"rejection_reason,omitempty"`
	DeliveryDate    *time.Time `json:"delivery_date,omitempty"`
	Version         int64      `gorm:"not null;default:0" json:"version"`
}

// 显式实现结构，确定表名
func (Order) TableName() string { return "orders" }

func (o *Order) RecordKind() Kind      { return KindOrder }
func (o *Order) RecordID() uint        { return o.ID }
func (o *Order) CurrentState() State   { return o.Status }
func (o *Order) CurrentVersion() int64 { return o.Version }
