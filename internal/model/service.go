package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalonService 服务项目表（美甲、美睫等门店服务）
type SalonService struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Description string          `gorm:"type:varchar(256)" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Duration    int             `gorm:"not null;default:60" json:"duration"` // 时长（分钟）
	Category    string          `gorm:"type:varchar(32);index" json:"category"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SalonService) TableName() string {
	return "salon_service"
}
