package model

import "time"

// Tamer represents a player's primary game character.
type Tamer struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     int64     `gorm:"index:idx_tamer_account;not null" json:"account_id"`
	Name          string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Level         int       `gorm:"default:1" json:"level"`
	Bits          int64     `gorm:"default:0" json:"bits"`
	DigimonSlots  int       `gorm:"default:5" json:"digimon_slots"`
	IncubatorEgg  int       `gorm:"default:0" json:"incubator_egg"`
	IncubatorLvl  int       `gorm:"default:0" json:"incubator_lvl"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// InventoryRow is one persisted item stack in a tamer's inventory.
type InventoryRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TamerID   int64     `gorm:"index:idx_inv_tamer;not null" json:"tamer_id"`
	Slot      int       `gorm:"not null" json:"slot"`
	ItemID    int       `gorm:"not null" json:"item_id"`
	Amount    int       `gorm:"not null" json:"amount"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
