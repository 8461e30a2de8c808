package store

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/workflow"
)

// NewLink 建立合作关系的请求参数。
type NewLink struct {
	ConsumerID int64 `validate:"gt=0"`
	SupplierID int64 `validate:"gt=0"`
}

// MaxOrderAmount 单笔订单金额上限（元）。换算为分后不超过 2^53，转 int64 不会溢出。
// NaN 与 ±Inf 同样无法通过校验。
const MaxOrderAmount = 10_000_000_000_000

// NewOrder 下单参数。TotalAmount 以元为单位，入库时换算为分。
type NewOrder struct {
	LinkID       uint    `validate:"required"`
	ConsumerID   int64   `validate:"gt=0"`
	TotalAmount  float64 `validate:"gte=0,lte=10000000000000"`
	DeliveryDate *time.Time
}

// NewComplaint 投诉参数，Priority 为空时取 medium。
type NewComplaint struct {
	OrderID     uint           `validate:"required"`
	Title       string         `validate:"required,max=255"`
	Description string         `validate:"required"`
	Priority    model.Priority `validate:"omitempty,oneof=low medium high"`
}

// CreateLink 创建 pending 状态的 Link；该组合已有活跃 Link 时返回 ErrConflict。
func (s *Store) CreateLink(ctx context.Context, in NewLink) (*model.Link, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	link := &model.Link{
		ConsumerID: in.ConsumerID,
		SupplierID: in.SupplierID,
		Status:     workflow.InitialState(model.KindLink),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&model.Link{}).
			Where("consumer_id = ? AND supplier_id = ? AND status IN ?", in.ConsumerID, in.SupplierID,
				[]model.State{model.LinkPending, model.LinkApproved}).
			Count(&n).Error
		if err != nil {
			return errors.Wrap(err, "count active links")
		}
		if n > 0 {
			return errors.Wrapf(apperr.ErrConflict, "active link already exists for consumer %d and supplier %d", in.ConsumerID, in.SupplierID)
		}
		return tx.Create(link).Error
	})
	if err != nil {
		// 并发创建时由部分唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Wrapf(apperr.ErrConflict, "active link already exists for consumer %d and supplier %d", in.ConsumerID, in.SupplierID)
		}
		if errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create link")
	}
	return link, nil
}

// CreateOrder 在已审批的 Link 上创建订单。Link 状态只在此刻校验一次，
// 之后 Link 被移除或拉黑不影响既有订单。
func (s *Store) CreateOrder(ctx context.Context, in NewOrder) (*model.Order, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link model.Link
		if err := tx.First(&link, in.LinkID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(apperr.ErrPreconditionFailed, "link %d not found", in.LinkID)
			}
			return errors.Wrap(err, "load link")
		}
		if link.Status != model.LinkApproved {
			return errors.Wrapf(apperr.ErrPreconditionFailed, "link %d is %s, want %s", link.ID, link.Status, model.LinkApproved)
		}
		if link.ConsumerID != in.ConsumerID {
			return errors.Wrapf(apperr.ErrPreconditionFailed, "link %d does not belong to consumer %d", link.ID, in.ConsumerID)
		}
		order = &model.Order{
			LinkID:       link.ID,
			ConsumerID:   link.ConsumerID,
			SupplierID:   link.SupplierID,
			TotalAmount:  toCents(in.TotalAmount),
			Status:       workflow.InitialState(model.KindOrder),
			DeliveryDate: in.DeliveryDate,
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// toCents 元转分。调用前 amount 已通过 [0, MaxOrderAmount] 校验。
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateComplaint 针对任意状态的已存在订单创建投诉。
func (s *Store) CreateComplaint(ctx context.Context, in NewComplaint) (*model.Complaint, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	var complaint *model.Complaint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Order{}).Where("id = ?", in.OrderID).Count(&n).Error; err != nil {
			return errors.Wrap(err, "check order")
		}
		if n == 0 {
			return errors.Wrapf(apperr.ErrPreconditionFailed, "order %d not found", in.OrderID)
		}
		complaint = &model.Complaint{
			OrderID:     in.OrderID,
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
			Status:      workflow.InitialState(model.KindComplaint),
		}
		return tx.Create(complaint).Error
	})
	if err != nil {
		return nil, err
	}
	return complaint, nil
}
