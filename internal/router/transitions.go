package router

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/workflow"
)

// sideFields 迁移请求可携带的附加字段，body 可省略。
type sideFields struct {
	RejectionReason string `json:"rejection_reason"`
	ResolutionNotes string `json:"resolution_notes"`
	DeliveryDate    string `json:"delivery_date"`
}

func (s sideFields) toMap() map[string]string {
	out := map[string]string{}
	if s.RejectionReason != "" {
		out[workflow.FieldRejectionReason] = s.RejectionReason
	}
	if s.ResolutionNotes != "" {
		out[workflow.FieldResolutionNotes] = s.ResolutionNotes
	}
	if s.DeliveryDate != "" {
		out[workflow.FieldDeliveryDate] = s.DeliveryDate
	}
	return out
}

// doVerb 按动作名迁移，例如 POST /api/orders/1/accept。
func doVerb(eng *engine.Engine, kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		var body sideFields
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
		rec, err := eng.Do(c.Request.Context(), kind, id, c.Param("verb"), actorOf(c), body.toMap())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, rec)
	}
}

// patchStatus 直接指定目标状态，兼容 PATCH {status, ...} 写法。
func patchStatus(eng *engine.Engine, kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		var body struct {
			Status string `json:"status" binding:"required"`
			sideFields
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		rec, err := eng.RequestTransition(c.Request.Context(), engine.TransitionRequest{
			Kind:   kind,
			ID:     id,
			Target: model.State(body.Status),
			Actor:  actorOf(c),
			Fields: body.toMap(),
		})
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, rec)
	}
}

// triageComplaint 分派投诉或调整优先级，PATCH /api/complaints/:id/triage。
func triageComplaint(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		var body struct {
			AssigneeID *int64  `json:"assignee_id"`
			Priority   *string `json:"priority"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		in := engine.ComplaintTriage{AssigneeID: body.AssigneeID}
		if body.Priority != nil {
			p := model.Priority(*body.Priority)
			in.Priority = &p
		}
		rec, err := eng.TriageComplaint(c.Request.Context(), id, actorOf(c), in)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, rec)
	}
}

// listActions 返回当前可执行的迁移，以及调用者角色是否有权执行。
func listActions(eng *engine.Engine, kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		rec, actions, err := eng.Actions(c.Request.Context(), kind, id, actorOf(c).Role)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"record": rec, "actions": actions})
	}
}
