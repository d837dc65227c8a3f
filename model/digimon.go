package model

import "time"

// Digimon is a player-owned companion entity.
type Digimon struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TamerID    int64     `gorm:"index:idx_digimon_tamer;not null" json:"tamer_id"`
	Name       string    `gorm:"size:32;not null" json:"name"`
	BaseType   int       `gorm:"not null" json:"base_type"`
	Slot       int       `gorm:"not null" json:"slot"`
	Level      int       `gorm:"default:1" json:"level"`
	HatchGrade int       `gorm:"default:0" json:"hatch_grade"`
	Size       int       `gorm:"default:10000" json:"size"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Evolution is one unlocked evolution form of a Digimon, carrying the
// shared skill cap for that form's skills.
type Evolution struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DigimonID     int64     `gorm:"index:idx_evo_digimon;not null" json:"digimon_id"`
	Type          int       `gorm:"not null" json:"type"`
	SkillMaxLevel int       `gorm:"default:10" json:"skill_max_level"`
	Unlocked      bool      `gorm:"default:false" json:"unlocked"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
