package model

import "time"

// Complaint 针对某张订单的投诉。订单状态变化不影响投诉本身。
type Complaint struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID         uint       `gorm:"not null;index" json:"order_id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text;not null" json:"description"`
	Priority        Priority   `gorm:"size:16;not null;default:medium" json:"priority"`
	AssigneeID      *int64     `gorm:"index" json:"assignee_id,omitempty"` // 负责处理的供应商员工
	Status          State      `gorm:"size:32;not null;default:open;index" json:"status"`
	ResolutionNotes string     `gorm:"type:text" json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	Version         int64      `gorm:"not null;default:0" json:"version"`
}

func (Complaint) TableName() string { return "complaints" }

func (c *Complaint) RecordKind() Kind      { return KindComplaint }
func (c *Complaint) RecordID() uint        { return c.ID }
func (c *Complaint) CurrentState() State   { return c.Status }
func (c *Complaint) CurrentVersion() int64 { return c.Version }
