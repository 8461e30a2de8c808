package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"b2b_workflow/internal/model"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Filter 列表查询条件，零值字段不参与过滤。
type Filter struct {
	ConsumerID int64
	SupplierID int64
	LinkID     uint
	OrderID    uint
	Status     model.State
	Offset     int
	Limit      int
}

func (f Filter) apply(db *gorm.DB, kind model.Kind) *gorm.DB {
	if f.ConsumerID > 0 && kind != model.KindComplaint {
		db = db.Where("consumer_id = ?", f.ConsumerID)
	}
	if f.SupplierID > 0 && kind != model.KindComplaint {
		db = db.Where("supplier_id = ?", f.SupplierID)
	}
	if f.LinkID > 0 && kind == model.KindOrder {
		db = db.Where("link_id = ?", f.LinkID)
	}
	if f.OrderID > 0 && kind == model.KindComplaint {
		db = db.Where("order_id = ?", f.OrderID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return db.Order("id").Offset(offset).Limit(limit)
}

func (s *Store) ListLinks(ctx context.Context, f Filter) ([]model.Link, error) {
	var out []model.Link
	if err := f.apply(s.db.WithContext(ctx), model.KindLink).Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list links")
	}
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context, f Filter) ([]model.Order, error) {
	var out []model.Order
	if err := f.apply(s.db.WithContext(ctx), model.KindOrder).Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

// ListComplaints 按订单过滤；ConsumerID/SupplierID 通过订单关联过滤。
func (s *Store) ListComplaints(ctx context.Context, f Filter) ([]model.Complaint, error) {
	db := s.db.WithContext(ctx)
	if f.ConsumerID > 0 || f.SupplierID > 0 {
		sub := s.db.Model(&model.Order{}).Select("id")
		if f.ConsumerID > 0 {
			sub = sub.Where("consumer_id = ?", f.ConsumerID)
		}
		if f.SupplierID > 0 {
			sub = sub.Where("supplier_id = ?", f.SupplierID)
		}
		db = db.Where("order_id IN (?)", sub)
	}
	var out []model.Complaint
	if err := f.apply(db, model.KindComplaint).Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list complaints")
	}
	return out, nil
}
