package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"b2b_workflow/internal/model"
)

// AppendLog 写入一条审计流水。EventID 重复时忽略，保证消费端幂等。
func (s *Store) AppendLog(ctx context.Context, entry *model.TransitionLog) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(entry).Error
	if err != nil {
		return errors.Wrapf(err, "append log %s", entry.EventID)
	}
	return nil
}

// ListLogs 按发生时间返回某条记录的审计流水。
func (s *Store) ListLogs(ctx context.Context, kind model.Kind, id uint) ([]model.TransitionLog, error) {
	var out []model.TransitionLog
	err := s.db.WithContext(ctx).
		Where("kind = ? AND entity_id = ?", kind, id).
		Order("occurred_at, id").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list logs")
	}
	return out, nil
}
