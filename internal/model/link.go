package model

import "time"

// Link 采购方与供应商之间的合作关系，审批通过后才能下单。
type Link struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConsumerID int64      `gorm:"not null;index:idx_links_pair" json:"consumer_id"`
	SupplierID int64      `gorm:"not null;index:idx_links_pair" json:"supplier_id"`
	Status     State      `gorm:"size:32;not null;default:pending;index" json:"status"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	// Version 每次状态迁移 +1，用于 CAS。
	Version int64 `gorm:"not null;default:0" json:"version"`
}

func (Link) TableName() string { return "links" }

func (l *Link) RecordKind() Kind      { return KindLink }
func (l *Link) RecordID() uint        { return l.ID }
func (l *Link) CurrentState() State   { return l.Status }
func (l *Link) CurrentVersion() int64 { return l.Version }
