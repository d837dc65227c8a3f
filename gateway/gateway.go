// Package gateway is the persistence boundary for game state. Handlers
// mutate in-memory sessions first and push the result through here, via
// the retry executor, once the in-memory operation has committed.
package gateway

import (
	"context"
	"time"

	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gateway persists session state changes.
type Gateway interface {
	// UpdateItemList replaces a tamer's stored inventory and bits with
	// the given snapshot.
	UpdateItemList(ctx context.Context, tamerID int64, stacks []item.Stack, bits int64) error
	// UpdateEvolution writes a changed skill cap back to the evolution row.
	UpdateEvolution(ctx context.Context, evolutionID int64, skillMaxLevel int) error
	// CreateDigimon inserts a freshly hatched partner and returns its ID.
	CreateDigimon(ctx context.Context, d *model.Digimon) (int64, error)
	// UpdateIncubator writes the tamer's incubator egg and hatch level.
	UpdateIncubator(ctx context.Context, tamerID int64, eggID, hatchLevel int) error
	// AddAccountBlock records a ban against the account.
	AddAccountBlock(ctx context.Context, block *model.AccountBlock) error
}

type gormGateway struct {
	db *gorm.DB
}

// NewGorm returns a Gateway backed by the given database.
func NewGorm(db *gorm.DB) Gateway {
	return &gormGateway{db: db}
}

func (g *gormGateway) UpdateItemList(ctx context.Context, tamerID int64, stacks []item.Stack, bits int64) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tamer_id = ?", tamerID).
			Delete(&model.InventoryRow{}).Error; err != nil {
			return err
		}
		if len(stacks) > 0 {
			rows := make([]model.InventoryRow, 0, len(stacks))
			for _, s := range stacks {
				rows = append(rows, model.InventoryRow{
					TamerID: tamerID,
					Slot:    s.Slot,
					ItemID:  s.ItemID,
					Amount:  s.Amount,
				})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
				Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Tamer{}).
			Where("id = ?", tamerID).
			Update("bits", bits).Error
	})
}

func (g *gormGateway) UpdateEvolution(ctx context.Context, evolutionID int64, skillMaxLevel int) error {
	return g.db.WithContext(ctx).Model(&model.Evolution{}).
		Where("id = ?", evolutionID).
		Update("skill_max_level", skillMaxLevel).Error
}

func (g *gormGateway) CreateDigimon(ctx context.Context, d *model.Digimon) (int64, error) {
	if err := g.db.WithContext(ctx).Create(d).Error; err != nil {
		return 0, err
	}
	return d.ID, nil
}

func (g *gormGateway) UpdateIncubator(ctx context.Context, tamerID int64, eggID, hatchLevel int) error {
	return g.db.WithContext(ctx).Model(&model.Tamer{}).
		Where("id = ?", tamerID).
		Updates(map[string]any{
			"incubator_egg": eggID,
			"incubator_lvl": hatchLevel,
		}).Error
}

func (g *gormGateway) AddAccountBlock(ctx context.Context, block *model.AccountBlock) error {
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now()
	}
	return g.db.WithContext(ctx).Create(block).Error
}
