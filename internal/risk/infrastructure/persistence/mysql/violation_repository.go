// Package mysql 违规审计的 MySQL 仓储实现
package mysql

import (
	"context"

	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/db"
)

// ViolationRepository 违规审计仓储
type ViolationRepository struct {
	db *db.DB
}

// NewViolationRepository 创建违规审计仓储
func NewViolationRepository(database *db.DB) *ViolationRepository {
	return &ViolationRepository{db: database}
}

// Save 保存违规记录
func (r *ViolationRepository) Save(ctx context.Context, violation *domain.RiskViolation) error {
	return r.db.WithContext(ctx).Create(violation).Error
}

// ListRecent 按时间倒序获取最近违规
func (r *ViolationRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RiskViolation, error) {
	if limit <= 0 {
		limit = 100
	}

	var violations []*domain.RiskViolation
	err := r.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&violations).Error
	if err != nil {
		return nil, err
	}
	return violations, nil
}
