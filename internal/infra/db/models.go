package db

import (
	"time"

	"gorm.io/gorm"
)

type userModel struct {
	ID             uint   `gorm:"primaryKey"`
	TelegramUserID int64  `gorm:"uniqueIndex;not null"`
	Username       string `gorm:""`
	WalletAddress  string `gorm:"size:42;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

type alertModel struct {
	ID            uint     `gorm:"primaryKey"`
	UserID        uint     `gorm:"index;not null"`
	Asset         string   `gorm:"index:idx_alerts_active_asset,priority:2;not null"`
	Market        string   `gorm:"size:8;not null;default:perp"`
	Type          string   `gorm:"size:32;not null"`
	Condition     string   `gorm:"size:16"`
	Target        float64  `gorm:"not null"`
	CurrentValue  *float64 `gorm:""`
	Active        bool     `gorm:"index:idx_alerts_active_asset,priority:1;not null;default:true"`
	Triggered     bool     `gorm:"not null;default:false"`
	TriggerCount  int      `gorm:"not null;default:0"`
	LastTriggered *time.Time
	Telegram      bool   `gorm:"not null;default:true"`
	Email         bool   `gorm:"not null;default:false"`
	Webhook       bool   `gorm:"not null;default:false"`
	Push          bool   `gorm:"not null;default:false"`
	Params        []byte `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (alertModel) TableName() string {
	return "alerts"
}

func (userModel) TableName() string {
	return "users"
}
