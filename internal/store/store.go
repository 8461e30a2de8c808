// Package store 是 Link / Order / Complaint 的唯一持久化入口。
// 跨实体引用只在创建时校验；状态迁移统一走 CommitTransition 的 CAS。
package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"b2b_workflow/internal/apperr"
	"b2b_workflow/internal/model"
)

// Store 基于 gorm 的 Relationship Store，可被多个 goroutine 并发使用。
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB 暴露底层连接，供健康检查与测试使用。
func (s *Store) DB() *gorm.DB { return s.db }

// Open 打开 SQLite 并限制为单连接：SQLite 只允许一个写者，
// 单连接下事务之间排队执行，不会出现 SQLITE_BUSY。
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "sqlite handle")
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// activePairIndex 保证同一 (consumer, supplier) 至多一条 pending/approved 的 Link。
const activePairIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uidx_links_active_pair
ON links(consumer_id, supplier_id) WHERE status IN ('pending', 'approved')`

// Migrate 自动建表并补充 gorm 标签无法表达的部分唯一索引。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Link{}, &model.Order{}, &model.Complaint{}, &model.TransitionLog{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	if err := db.Exec(activePairIndex).Error; err != nil {
		return errors.Wrap(err, "create active pair index")
	}
	return nil
}

// newRecord 按实体类别分配一个空记录，用作 gorm 的查询目标。
func newRecord(kind model.Kind) (model.Record, error) {
	switch kind {
	case model.KindLink:
		return &model.Link{}, nil
	case model.KindOrder:
		return &model.Order{}, nil
	case model.KindComplaint:
		return &model.Complaint{}, nil
	}
	return nil, errors.Wrapf(apperr.ErrNotFound, "unknown kind %q", kind)
}

// Get 按 id 读取一条记录，不存在返回 ErrNotFound。
func (s *Store) Get(ctx context.Context, kind model.Kind, id uint) (model.Record, error) {
	rec, err := newRecord(kind)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(apperr.ErrNotFound, "%s %d", kind, id)
		}
		return nil, errors.Wrapf(err, "get %s %d", kind, id)
	}
	return rec, nil
}
