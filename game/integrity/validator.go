// Package integrity checks player and item state against the catalog and
// the session's in-memory truth before any mutating operation runs.
package integrity

import (
	"fmt"

	"github.com/tamer-online/gameserver/config"
	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/player"
)

// Result is the outcome of a validation. A failed result carries the
// reason used in audit details and log lines.
type Result struct {
	OK     bool
	Reason string
}

func ok() Result { return Result{OK: true} }

func fail(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Validator runs state checks backed by the item catalog.
type Validator struct {
	catalog *item.Catalog
	cfg     config.GameConfig
}

func NewValidator(catalog *item.Catalog, cfg config.GameConfig) *Validator {
	return &Validator{catalog: catalog, cfg: cfg}
}

// ValidatePlayerState verifies the session is alive and fully loaded.
func (v *Validator) ValidatePlayerState(s *player.Session) Result {
	if s == nil {
		return fail("no session")
	}
	if !s.IsConnected() {
		return fail("session disconnected")
	}
	if s.GameState() != player.StateReady {
		return fail("session still loading")
	}
	if s.Inventory == nil {
		return fail("inventory not loaded")
	}
	return ok()
}

// ValidateItemIntegrity checks that a stack refers to a known catalog
// item and that its amount is positive and within the stack's limits.
func (v *Validator) ValidateItemIntegrity(st item.Stack) Result {
	if st.ItemID <= 0 {
		return fail("item id %d invalid", st.ItemID)
	}
	info := v.catalog.Lookup(st.ItemID)
	if info == nil {
		return fail("item %d not in catalog", st.ItemID)
	}
	if st.Amount <= 0 {
		return fail("item %d amount %d invalid", st.ItemID, st.Amount)
	}
	if st.Info != nil && st.Info.ItemID != info.ItemID {
		return fail("item %d catalog mismatch", st.ItemID)
	}
	return ok()
}

// ValidateInventoryOperation checks that the session's inventory really
// holds the stack it claims at the given slot, with at least the wanted
// amount.
func (v *Validator) ValidateInventoryOperation(s *player.Session, slot, amount int) Result {
	if r := v.ValidatePlayerState(s); !r.OK {
		return r
	}
	if slot < 0 || slot >= v.cfg.InventoryCapacity {
		return fail("slot %d out of range", slot)
	}
	if amount <= 0 {
		return fail("amount %d invalid", amount)
	}
	st := s.Inventory.FindBySlot(slot)
	if st == nil {
		return fail("slot %d empty", slot)
	}
	if st.Amount < amount {
		return fail("slot %d holds %d, wanted %d", slot, st.Amount, amount)
	}
	return v.ValidateItemIntegrity(*st)
}

// ValidateTradeIntegrity checks both sides of a trade immediately before
// commit: both connected, mutually linked, both confirmed, and every
// staged stack still present in its owner's inventory.
func (v *Validator) ValidateTradeIntegrity(a, b *player.Session) Result {
	if r := v.ValidatePlayerState(a); !r.OK {
		return fail("initiator: %s", r.Reason)
	}
	if r := v.ValidatePlayerState(b); !r.OK {
		return fail("partner: %s", r.Reason)
	}
	if !a.TradeCondition() || !b.TradeCondition() {
		return fail("trade condition dropped")
	}
	if a.TargetTradeHandle() != b.Handle || b.TargetTradeHandle() != a.Handle {
		return fail("trade link mismatch")
	}
	if !a.TradeConfirm() || !b.TradeConfirm() {
		return fail("missing confirmation")
	}
	if r := v.validateOffer(a); !r.OK {
		return fail("initiator offer: %s", r.Reason)
	}
	if r := v.validateOffer(b); !r.OK {
		return fail("partner offer: %s", r.Reason)
	}
	return ok()
}

func (v *Validator) validateOffer(s *player.Session) Result {
	if s.Offer.Bits() < 0 {
		return fail("negative bits")
	}
	if s.Offer.Bits() > s.Inventory.Bits() {
		return fail("staged %d bits, holds %d", s.Offer.Bits(), s.Inventory.Bits())
	}
	for _, st := range s.Offer.Items() {
		held := s.Inventory.FindBySlot(st.Slot)
		if held == nil {
			return fail("staged slot %d no longer held", st.Slot)
		}
		if held.ItemID != st.ItemID {
			return fail("staged slot %d item changed", st.Slot)
		}
		if held.Amount < st.Amount {
			return fail("staged slot %d amount shrank", st.Slot)
		}
		if r := v.ValidateItemIntegrity(st); !r.OK {
			return r
		}
	}
	return ok()
}

// ValidateHatchIntegrity checks the session's incubator state before a
// hatch: an egg present, enough hatch progress, a legal name, and a free
// partner slot.
func (v *Validator) ValidateHatchIntegrity(s *player.Session, name string) Result {
	if r := v.ValidatePlayerState(s); !r.OK {
		return r
	}
	if s.Incubator.EggID == 0 {
		return fail("no egg in incubator")
	}
	if s.Incubator.HatchLevel < v.cfg.MinHatchLevel {
		return fail("hatch level %d below %d", s.Incubator.HatchLevel, v.cfg.MinHatchLevel)
	}
	if len(name) == 0 || len(name) > v.cfg.MaxDigimonName {
		return fail("name length %d invalid", len(name))
	}
	info := v.catalog.Lookup(s.Incubator.EggID)
	if info == nil {
		return fail("egg item %d not in catalog", s.Incubator.EggID)
	}
	if info.Type != item.TypeEgg {
		return fail("item %d is not an egg", s.Incubator.EggID)
	}
	if s.FindFreeDigimonSlot() < 0 {
		return fail("no free digimon slot")
	}
	return ok()
}
