package queue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"b2b_workflow/internal/model"
)

// 事件动作。分派与调整优先级不改变状态，From 与 To 相同。
const (
	ActionCreated       = "created"
	ActionTransition    = "transition"
	ActionAssigned      = "assigned"
	ActionReprioritized = "reprioritized"
)

// Event 是状态迁移成功后发出的领域事件。From 为空表示创建。
type Event struct {
	ID        string      `json:"id"`
	Kind      model.Kind  `json:"entity_kind"`
	EntityID  uint        `json:"entity_id"`
	From      model.State `json:"from_state"`
	To        model.State `json:"to_state"`
	Action    string      `json:"action"`
	Detail    string      `json:"detail,omitempty"`
	ActorID   int64       `json:"actor_id"`
	ActorRole model.Role  `json:"acting_role"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent 生成带唯一 ID 的事件，ID 作为下游幂等键。
func NewEvent(kind model.Kind, id uint, from, to model.State, actor model.Actor, at time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		EntityID:  id,
		From:      from,
		To:        to,
		Action:    defaultAction(from),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Timestamp: at.UTC(),
	}
}

// WithAction 返回替换了动作与说明的副本。
func (e Event) WithAction(action, detail string) Event {
	e.Action = action
	e.Detail = detail
	return e
}

func defaultAction(from model.State) string {
	if from == model.None {
		return ActionCreated
	}
	return ActionTransition
}

// Key 同一实体的事件使用相同 key，保证在 Kafka 同分区内有序。
func (e Event) Key() string {
	return fmt.Sprintf("%s:%d", e.Kind, e.EntityID)
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Kind == "" {
		return errors.New("entity_kind is required")
	}
	if e.EntityID == 0 {
		return errors.New("entity_id is required")
	}
	if e.To == "" {
		return errors.New("to_state is required")
	}
	if e.ActorRole == "" {
		return errors.New("acting_role is required")
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// Values 转为 Redis Stream 字段。
func (e Event) Values() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"entity_kind": string(e.Kind),
		"entity_id":   strconv.FormatUint(uint64(e.EntityID), 10),
		"from_state":  string(e.From),
		"to_state":    string(e.To),
		"action":      e.Action,
		"detail":      e.Detail,
		"actor_id":    strconv.FormatInt(e.ActorID, 10),
		"acting_role": string(e.ActorRole),
		"timestamp":   e.Timestamp.Format(time.RFC3339Nano),
	}
}

// AuditLog 转为审计流水记录。
func (e Event) AuditLog() *model.TransitionLog {
	return &model.TransitionLog{
		EventID:    e.ID,
		Kind:       e.Kind,
		EntityID:   e.EntityID,
		FromState:  e.From,
		ToState:    e.To,
		Action:     e.Action,
		Detail:     e.Detail,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		OccurredAt: e.Timestamp,
	}
}

// parseEvent 从 Redis Stream 字段还原事件。
func parseEvent(values map[string]interface{}) (Event, error) {
	fields := make(map[string]string, 8)
	for _, key := range []string{"id", "entity_kind", "entity_id", "to_state", "actor_id", "acting_role", "timestamp"} {
		v, err := getStreamString(values, key)
		if err != nil {
			return Event{}, err
		}
		fields[key] = v
	}
	// 创建事件没有 from_state；旧消息没有 action
	from, _ := getStreamString(values, "from_state")
	action, _ := getStreamString(values, "action")
	detail, _ := getStreamString(values, "detail")
	if action == "" {
		action = defaultAction(model.State(from))
	}

	entityID, err := strconv.ParseUint(fields["entity_id"], 10, 64)
	if err != nil {
		return Event{}, errors.Errorf("invalid entity_id %q", fields["entity_id"])
	}
	actorID, err := strconv.ParseInt(fields["actor_id"], 10, 64)
	if err != nil {
		return Event{}, errors.Errorf("invalid actor_id %q", fields["actor_id"])
	}
	ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"])
	if err != nil {
		return Event{}, errors.Errorf("invalid timestamp %q", fields["timestamp"])
	}

	e := Event{
		ID:        fields["id"],
		Kind:      model.Kind(fields["entity_kind"]),
		EntityID:  uint(entityID),
		From:      model.State(from),
		To:        model.State(fields["to_state"]),
		Action:    action,
		Detail:    detail,
		ActorID:   actorID,
		ActorRole: model.Role(fields["acting_role"]),
		Timestamp: ts,
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", errors.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", errors.Errorf("unsupported field type %s: %T", key, v)
	}
}
