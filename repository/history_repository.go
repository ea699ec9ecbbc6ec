package repository

import (
	"context"

	"GuildFM/model"

	"gorm.io/gorm"
)

// MaxHistoryLimit Recent 单次最多返回条数
const MaxHistoryLimit = 50

// HistoryRepository 播放记录数据访问接口
type HistoryRepository interface {
	Record(ctx context.Context, h *model.PlayHistory) error
	Recent(ctx context.Context, tenantID string, limit int) ([]*model.PlayHistory, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

// gormHistoryRepository GORM 实现
type gormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository 创建 GORM 播放记录仓库
func NewGormHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

// Record 写入一条播放记录
func (r *gormHistoryRepository) Record(ctx context.Context, h *model.PlayHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// Recent 最近播放（按开始时间倒序）
func (r *gormHistoryRepository) Recent(ctx context.Context, tenantID string, limit int) ([]*model.PlayHistory, error) {
	var rows []*model.PlayHistory
	err := r.recentQuery(ctx, tenantID, limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByTenant 租户累计播放次数
func (r *gormHistoryRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PlayHistory{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

func (r *gormHistoryRepository) recentQuery(ctx context.Context, tenantID string, limit int) *gorm.DB {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit)
}
