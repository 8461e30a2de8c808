package model

import "time"

// TransitionLog 审计流水：每条已投递的领域事件落一行。
// EventID 唯一，消费端重复消息直接视为成功。
type TransitionLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID    string    `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	Kind       Kind      `gorm:"size:16;not null;index:idx_logs_entity" json:"kind"`
	EntityID   uint      `gorm:"not null;index:idx_logs_entity" json:"entity_id"`
	FromState  State     `gorm:"size:32" json:"from_state"`
	ToState    State     `gorm:"size:32;not null" json:"to_state"`
	Action     string    `gorm:"size:32" json:"action"`
	Detail     string    `gorm:"size:255" json:"detail,omitempty"`
	ActorID    int64     `json:"actor_id"`
	ActorRole  Role      `gorm:"size:32" json:"actor_role"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
}

func (TransitionLog) TableName() string { return "transition_logs" }
