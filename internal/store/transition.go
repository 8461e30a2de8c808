package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
)

// Expect 是调用方读取时看到的状态与版本，提交时据此做 CAS。
type Expect struct {
	State   model.State
	Version int64
}

// ExpectOf 从已读记录构造 CAS 期望值。
func ExpectOf(rec model.Record) Expect {
	return Expect{State: rec.CurrentState(), Version: rec.CurrentVersion()}
}

// sideColumns 每类实体允许随迁移一起写入的附加列。
var sideColumns = map[model.Kind]map[string]bool{
	model.KindLink:      {"approved_at": true},
	model.KindOrder:     {"rejection_reason": true, "delivery_date": true},
	model.KindComplaint: {"resolution_notes": true, "resolved_at": true},
}

// attributeColumns 不改变状态、只修改属性的列（投诉分派与优先级调整）。
var attributeColumns = map[model.Kind]map[string]bool{
	model.KindComplaint: {"assignee_id": true, "priority": true},
}

// CommitTransition 原子地把记录从 expect 迁移到 to，并写入附加字段。
// 记录在读取之后被他人修改时返回 ErrConflict，调用方需重新读取后重试。
func (s *Store) CommitTransition(ctx context.Context, kind model.Kind, id uint, expect Expect, to model.State, fields map[string]any) (model.Record, error) {
	updates := map[string]any{"status": to}
	for col, v := range fields {
		if !sideColumns[kind][col] {
			return nil, errors.Wrapf(apperr.ErrValidation, "%s does not accept field %q", kind, col)
		}
		updates[col] = v
	}
	return s.commit(ctx, kind, id, expect, updates)
}

// CommitUpdate 在状态不变的前提下修改属性列，同样按状态与版本 CAS。
func (s *Store) CommitUpdate(ctx context.Context, kind model.Kind, id uint, expect Expect, fields map[string]any) (model.Record, error) {
	if len(fields) == 0 {
		return nil, errors.Wrapf(apperr.ErrValidation, "%s %d: nothing to update", kind, id)
	}
	updates := make(map[string]any, len(fields))
	for col, v := range fields {
		if !attributeColumns[kind][col] {
			return nil, errors.Wrapf(apperr.ErrValidation, "%s does not accept field %q", kind, col)
		}
		updates[col] = v
	}
	return s.commit(ctx, kind, id, expect, updates)
}

func (s *Store) commit(ctx context.Context, kind model.Kind, id uint, expect Expect, updates map[string]any) (model.Record, error) {
	rec, err := newRecord(kind)
	if err != nil {
		return nil, err
	}
	updates["version"] = gorm.Expr("version + 1")

	db := s.db.WithContext(ctx)
	res := db.Model(rec).
		Where("id = ? AND status = ? AND version = ?", id, expect.State, expect.Version).
		Updates(updates)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "commit %s %d", kind, id)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(rec).Where("id = ?", id).Count(&n).Error; err != nil {
			return nil, errors.Wrapf(err, "recheck %s %d", kind, id)
		}
		if n == 0 {
			return nil, errors.Wrapf(apperr.ErrNotFound, "%s %d", kind, id)
		}
		return nil, errors.Wrapf(apperr.ErrConflict, "%s %d changed since read (expected %s v%d)", kind, id, expect.State, expect.Version)
	}
	// 已提交，之后的读取不再受调用方取消影响
	return s.Get(context.WithoutCancel(ctx), kind, id)
}
