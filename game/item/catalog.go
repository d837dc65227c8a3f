package item

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Item types from the static game data.
const (
	TypeConsumable = 201
	TypeDigicode   = 202
	TypeEgg        = 203
)

// Info is the static metadata for an item ID.
type Info struct {
	ItemID  int    `mapstructure:"item_id"`
	Name    string `mapstructure:"name"`
	Type    int    `mapstructure:"type"`
	Section int    `mapstructure:"section"`
	// HatchType is the Digimon base type produced when this item is an egg.
	HatchType int `mapstructure:"hatch_type"`
}

// Catalog resolves static item metadata. Loaded once at startup,
// read-only afterwards.
type Catalog struct {
	mu    sync.RWMutex
	items map[int]*Info
}

// NewCatalog builds a catalog from the given static entries.
func NewCatalog(infos []Info) *Catalog {
	c := &Catalog{items: make(map[int]*Info, len(infos))}
	for i := range infos {
		info := infos[i]
		c.items[info.ItemID] = &info
	}
	return c
}

// Lookup returns the static info for an item ID, or nil if unknown.
func (c *Catalog) Lookup(itemID int) *Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[itemID]
}

// Add registers an entry. Used by data loaders and tests.
func (c *Catalog) Add(info Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[info.ItemID] = &info
}

// Len returns the number of known items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// LoadCatalog reads the static item table from a YAML file. Every item
// the server validates against has to appear here; an empty table is an
// error because it would reject all items at runtime.
func LoadCatalog(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("item catalog: %w", err)
	}
	var infos []Info
	if err := v.UnmarshalKey("items", &infos); err != nil {
		return nil, fmt.Errorf("item catalog: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("item catalog: %s has no items", path)
	}
	for _, info := range infos {
		if info.ItemID <= 0 {
			return nil, fmt.Errorf("item catalog: entry %q has no item_id", info.Name)
		}
	}
	return NewCatalog(infos), nil
}
