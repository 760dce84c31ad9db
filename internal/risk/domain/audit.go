// 违规审计实体与仓储接口。审计记录是事后追溯用的落库数据，
// 不属于引擎运行状态，引擎重启后不回放。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RiskViolation 限额违规审计实体
type RiskViolation struct {
	gorm.Model
	// 违规 ID
	ViolationID string `gorm:"column:violation_id;type:varchar(50);uniqueIndex;not null" json:"violation_id"`
	// 违规类别
	Reason string `gorm:"column:reason;type:varchar(30);index;not null" json:"reason"`
	// 触发标的（单标的类违规）
	SymbolID uint32 `gorm:"column:symbol_id;not null" json:"symbol_id"`
	// 观测值
	Observed decimal.Decimal `gorm:"column:observed;type:decimal(24,8);not null" json:"observed"`
	// 限额值
	LimitValue decimal.Decimal `gorm:"column:limit_value;type:decimal(24,8);not null" json:"limit_value"`
	// 违规时刻的组合 VaR
	PortfolioVaR decimal.Decimal `gorm:"column:portfolio_var;type:decimal(24,8);not null" json:"portfolio_var"`
	// 累计检查次数
	ChecksPerformed uint64 `gorm:"column:checks_performed;not null" json:"checks_performed"`
	// 违规时间
	OccurredAt time.Time `gorm:"column:occurred_at;type:datetime;index;not null" json:"occurred_at"`
}

// RiskViolationRepository 违规审计仓储接口
type RiskViolationRepository interface {
	// 保存违规记录
	Save(ctx context.Context, violation *RiskViolation) error
	// 按时间倒序获取最近违规
	ListRecent(ctx context.Context, limit int) ([]*RiskViolation, error)
}
