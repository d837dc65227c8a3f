package model

import "time"

// Account represents a player account.
type Account struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email       string     `gorm:"size:128" json:"email"`
	Status      int        `gorm:"default:1" json:"status"` // 0=blocked 1=normal
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `gorm:"size:45" json:"last_login_ip"`
}

// BlockType classifies the duration kind of an account block.
type BlockType int

const (
	BlockTemporary BlockType = 1
	BlockPermanent BlockType = 2
)

// AccountBlock records a timed or permanent suspension for an account.
type AccountBlock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index:idx_block_account;not null" json:"account_id"`
	Type      BlockType `gorm:"not null" json:"type"`
	Reason    string    `gorm:"size:255;not null" json:"reason"`
	StartAt   time.Time `gorm:"not null" json:"start_at"`
	EndAt     time.Time `gorm:"not null" json:"end_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
