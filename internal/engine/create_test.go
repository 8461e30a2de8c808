package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
)

func TestCreateRequiresConsumerRole(t *testing.T) {
	e, em := newTestEngine(t, newTestStore(t))
	ctx := context.Background()

	for _, actor := range []model.Actor{manager, salesRep, owner} {
		_, err := e.CreateLink(ctx, actor, store.NewLink{ConsumerID: 7, SupplierID: 3})
		assert.ErrorIs(t, err, apperr.ErrForbidden, actor.Role)
	}
	assert.Empty(t, em.all())
}

func TestCreateBindsConsumerToActor(t *testing.T) {
	e, _ := newTestEngine(t, newTestStore(t))
	ctx := context.Background()

	_, err := e.CreateLink(ctx, consumer7, store.NewLink{ConsumerID: 8, SupplierID: 3})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	link, err := e.CreateLink(ctx, consumer7, store.NewLink{ConsumerID: 7, SupplierID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), link.ConsumerID)

	_, err = e.CreateLink(ctx, consumer7, store.NewLink{SupplierID: 3})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateOrderPreconditions(t *testing.T) {
	e, _ := newTestEngine(t, newTestStore(t))
	ctx := context.Background()

	link, err := e.CreateLink(ctx, consumer7, store.NewLink{SupplierID: 3})
	require.NoError(t, err)
	_, err = e.CreateOrder(ctx, consumer7, store.NewOrder{LinkID: link.ID, TotalAmount: 10})
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)

	_, err = e.Do(ctx, model.KindLink, link.ID, "approve", owner, nil)
	require.NoError(t, err)

	other := model.Actor{ID: 9, Role: model.RoleConsumer}
	_, err = e.CreateOrder(ctx, other, store.NewOrder{LinkID: link.ID, TotalAmount: 10})
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)

	_, err = e.CreateOrder(ctx, consumer7, store.NewOrder{LinkID: link.ID, TotalAmount: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	order, err := e.CreateOrder(ctx, consumer7, store.NewOrder{LinkID: link.ID, TotalAmount: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.TotalAmount)
}

func TestCreateComplaintOwnership(t *testing.T) {
	e, em := newTestEngine(t, newTestStore(t))
	ctx := context.Background()
	order := pendingOrder(t, e)
	in := store.NewComplaint{OrderID: order.ID, Title: "Damaged", Description: "Box was crushed"}

	_, err := e.CreateComplaint(ctx, model.Actor{ID: 9, Role: model.RoleConsumer}, in)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	missing := in
	missing.OrderID = 999
	_, err = e.CreateComplaint(ctx, consumer7, missing)
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)

	_, err = e.CreateComplaint(ctx, salesRep, in)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	complaint, err := e.CreateComplaint(ctx, consumer7, in)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityMedium, complaint.Priority)
	assert.Equal(t, model.ComplaintOpen, complaint.Status)

	events := em.all()
	last := events[len(events)-1]
	assert.Equal(t, model.KindComplaint, last.Kind)
	assert.Equal(t, complaint.ID, last.EntityID)
	assert.Equal(t, model.None, last.From)
}

func TestActions(t *testing.T) {
	e, _ := newTestEngine(t, newTestStore(t))
	ctx := context.Background()
	order := pendingOrder(t, e)

	rec, actions, err := e.Actions(ctx, model.KindOrder, order.ID, model.RoleSalesRepresentative)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, rec.CurrentState())
	require.Len(t, actions, 3)

	byTarget := map[model.State]Action{}
	for _, a := range actions {
		byTarget[a.Target] = a
	}
	assert.True(t, byTarget[model.OrderAccepted].Allowed)
	assert.Equal(t, []string{"accept"}, byTarget[model.OrderAccepted].Verbs)
	assert.True(t, byTarget[model.OrderRejected].Allowed)
	assert.Equal(t, []string{"rejection_reason"}, byTarget[model.OrderRejected].Requires)
	assert.False(t, byTarget[model.OrderCancelled].Allowed)

	_, err = e.Do(ctx, model.KindOrder, order.ID, "reject", salesRep, map[string]string{"rejection_reason": "no stock"})
	require.NoError(t, err)
	_, actions, err = e.Actions(ctx, model.KindOrder, order.ID, model.RoleOwner)
	require.NoError(t, err)
	assert.Empty(t, actions)

	_, _, err = e.Actions(ctx, model.KindLink, 404, model.RoleOwner)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
