package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2b_workflow/internal/model"
)

func sampleEvent() Event {
	return NewEvent(model.KindOrder, 12, model.OrderPending, model.OrderAccepted,
		model.Actor{ID: 5, Role: model.RoleSalesRepresentative},
		time.Date(2026, 10, 15, 8, 30, 0, 123456789, time.UTC))
}

func TestNewEvent(t *testing.T) {
	e := sampleEvent()
	assert.Len(t, e.ID, 36)
	assert.Equal(t, "order:12", e.Key())
	assert.NoError(t, e.Validate())
	assert.NotEqual(t, e.ID, sampleEvent().ID)
}

func TestEventValidate(t *testing.T) {
	cases := map[string]func(*Event){
		"id":        func(e *Event) { e.ID = "" },
		"kind":      func(e *Event) { e.Kind = "" },
		"entity":    func(e *Event) { e.EntityID = 0 },
		"to":        func(e *Event) { e.To = "" },
		"role":      func(e *Event) { e.ActorRole = "" },
		"timestamp": func(e *Event) { e.Timestamp = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := sampleEvent()
			mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestParseEventFromStream(t *testing.T) {
	e := sampleEvent()
	values := map[string]interface{}{}
	for k, v := range e.Values() {
		values[k] = v
	}
	got, err := parseEvent(values)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Kind, got.Kind)
	assert.Equal(t, e.EntityID, got.EntityID)
	assert.Equal(t, e.From, got.From)
	assert.Equal(t, e.To, got.To)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))

	// 创建事件没有 from_state
	delete(values, "from_state")
	got, err = parseEvent(values)
	require.NoError(t, err)
	assert.Equal(t, model.None, got.From)
}

func TestParseEventRejectsBadInput(t *testing.T) {
	base := func() map[string]interface{} {
		out := map[string]interface{}{}
		for k, v := range sampleEvent().Values() {
			out[k] = v
		}
		return out
	}

	missing := base()
	delete(missing, "to_state")
	_, err := parseEvent(missing)
	assert.ErrorContains(t, err, "missing field to_state")

	badID := base()
	badID["entity_id"] = "twelve"
	_, err = parseEvent(badID)
	assert.ErrorContains(t, err, "invalid entity_id")

	badTS := base()
	badTS["timestamp"] = "yesterday"
	_, err = parseEvent(badTS)
	assert.ErrorContains(t, err, "invalid timestamp")

	badType := base()
	badType["actor_id"] = []int{1}
	_, err = parseEvent(badType)
	assert.ErrorContains(t, err, "unsupported field type")
}

func TestEventJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"entity_kind", "entity_id", "from_state", "to_state", "acting_role", "timestamp"} {
		assert.Contains(t, m, key)
	}
}

func TestEncodeMessage(t *testing.T) {
	e := sampleEvent()
	m, err := encodeMessage(e)
	require.NoError(t, err)
	assert.Equal(t, "order:12", string(m.Key))
	require.Len(t, m.Headers, 2)
	assert.Equal(t, e.ID, string(m.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
}

func TestAuditLog(t *testing.T) {
	e := sampleEvent()
	entry := e.AuditLog()
	assert.Equal(t, e.ID, entry.EventID)
	assert.Equal(t, model.KindOrder, entry.Kind)
	assert.Equal(t, uint(12), entry.EntityID)
	assert.Equal(t, model.RoleSalesRepresentative, entry.ActorRole)
}

func TestEventAction(t *testing.T) {
	assert.Equal(t, ActionTransition, sampleEvent().Action)

	actor := model.Actor{ID: 5, Role: model.RoleManager}
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	created := NewEvent(model.KindLink, 1, model.None, model.LinkPending, model.Actor{ID: 7, Role: model.RoleConsumer}, at)
	assert.Equal(t, ActionCreated, created.Action)

	assigned := NewEvent(model.KindComplaint, 3, model.ComplaintOpen, model.ComplaintOpen, actor, at).
		WithAction(ActionAssigned, "assignee_id=9")
	require.NoError(t, assigned.Validate())

	values := map[string]interface{}{}
	for k, v := range assigned.Values() {
		values[k] = v
	}
	got, err := parseEvent(values)
	require.NoError(t, err)
	assert.Equal(t, ActionAssigned, got.Action)
	assert.Equal(t, "assignee_id=9", got.Detail)
	assert.Equal(t, got.From, got.To)

	entry := got.AuditLog()
	assert.Equal(t, ActionAssigned, entry.Action)
	assert.Equal(t, "assignee_id=9", entry.Detail)

	// 没有 action 字段的旧消息按起点推断
	delete(values, "action")
	delete(values, "detail")
	got, err = parseEvent(values)
	require.NoError(t, err)
	assert.Equal(t, ActionTransition, got.Action)
	assert.Empty(t, got.Detail)
}
