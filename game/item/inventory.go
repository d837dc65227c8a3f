package item

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInventoryFull  = errors.New("inventory full")
	ErrNotEnoughItems = errors.New("not enough items")
	ErrNotEnoughBits  = errors.New("not enough bits")
)

// Stack is one occupied inventory slot. ItemID == 0 marks an empty slot.
// Amount is always > 0 while the slot is occupied.
type Stack struct {
	ItemID int
	Amount int
	Slot   int
	Info   *Info
}

// Clone returns a value copy of the stack.
func (s *Stack) Clone() *Stack {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Snapshot is a deep copy of an inventory's items and currency, used for
// byte-for-byte rollback during multi-step mutations.
type Snapshot struct {
	stacks []Stack
	bits   int64
}

// Inventory is a fixed-capacity slot array plus a currency balance.
// All methods are safe for concurrent use.
type Inventory struct {
	mu       sync.Mutex
	slots    []Stack
	bits     int64
	capacity int
}

// NewInventory creates an empty inventory with the given slot capacity.
func NewInventory(capacity int) *Inventory {
	return &Inventory{
		slots:    make([]Stack, capacity),
		capacity: capacity,
	}
}

// Capacity returns the total slot count.
func (inv *Inventory) Capacity() int { return inv.capacity }

// Bits returns the current currency balance.
func (inv *Inventory) Bits() int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.bits
}

// SetBits initializes the currency balance (session load).
func (inv *Inventory) SetBits(bits int64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.bits = bits
}

// AddBits credits the balance.
func (inv *Inventory) AddBits(amount int64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.bits += amount
}

// RemoveBits debits the balance. The balance never goes below zero.
func (inv *Inventory) RemoveBits(amount int64) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.bits < amount {
		return ErrNotEnoughBits
	}
	inv.bits -= amount
	return nil
}

// FindBySlot returns a copy of the stack at the given slot, or nil if the
// slot is empty or out of range.
func (inv *Inventory) FindBySlot(slot int) *Stack {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if slot < 0 || slot >= inv.capacity {
		return nil
	}
	if inv.slots[slot].ItemID == 0 {
		return nil
	}
	s := inv.slots[slot]
	return &s
}

// CountByItemID sums the held amount of an item ID across all slots.
func (inv *Inventory) CountByItemID(itemID int) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	total := 0
	for i := range inv.slots {
		if inv.slots[i].ItemID == itemID {
			total += inv.slots[i].Amount
		}
	}
	return total
}

// TotalEmptySlots counts unoccupied slots.
func (inv *Inventory) TotalEmptySlots() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n := 0
	for i := range inv.slots {
		if inv.slots[i].ItemID == 0 {
			n++
		}
	}
	return n
}

// Stacks returns copies of all occupied slots in slot order.
func (inv *Inventory) Stacks() []Stack {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Stack, 0, len(inv.slots))
	for i := range inv.slots {
		if inv.slots[i].ItemID != 0 {
			out = append(out, inv.slots[i])
		}
	}
	return out
}

// SetSlot places a stack directly into a slot (session load / restore).
func (inv *Inventory) SetSlot(slot int, itemID, amount int, info *Info) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if slot < 0 || slot >= inv.capacity {
		return fmt.Errorf("slot %d out of range", slot)
	}
	inv.slots[slot] = Stack{ItemID: itemID, Amount: amount, Slot: slot, Info: info}
	return nil
}

// AddStack merges amount into an existing stack of the same item ID or
// occupies the first empty slot.
func (inv *Inventory) AddStack(itemID, amount int, info *Info) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.addLocked(itemID, amount, info)
}

func (inv *Inventory) addLocked(itemID, amount int, info *Info) error {
	if amount <= 0 {
		return fmt.Errorf("invalid amount %d", amount)
	}
	for i := range inv.slots {
		if inv.slots[i].ItemID == itemID {
			inv.slots[i].Amount += amount
			return nil
		}
	}
	for i := range inv.slots {
		if inv.slots[i].ItemID == 0 {
			inv.slots[i] = Stack{ItemID: itemID, Amount: amount, Slot: i, Info: info}
			return nil
		}
	}
	return ErrInventoryFull
}

// AddStacks applies a batch of additions. Fails on the first error leaving
// the partial state in place; callers roll back via Snapshot/Restore.
func (inv *Inventory) AddStacks(stacks []Stack) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := range stacks {
		if err := inv.addLocked(stacks[i].ItemID, stacks[i].Amount, stacks[i].Info); err != nil {
			return err
		}
	}
	return nil
}

// RemoveOrReduce removes amount of itemID, draining lowest slots first.
// Fails without mutating when holdings are insufficient.
func (inv *Inventory) RemoveOrReduce(itemID, amount int) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.removeLocked(itemID, amount)
}

func (inv *Inventory) removeLocked(itemID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("invalid amount %d", amount)
	}
	held := 0
	for i := range inv.slots {
		if inv.slots[i].ItemID == itemID {
			held += inv.slots[i].Amount
		}
	}
	if held < amount {
		return ErrNotEnoughItems
	}
	remaining := amount
	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		if inv.slots[i].ItemID != itemID {
			continue
		}
		take := inv.slots[i].Amount
		if take > remaining {
			take = remaining
		}
		inv.slots[i].Amount -= take
		remaining -= take
		if inv.slots[i].Amount == 0 {
			inv.slots[i] = Stack{Slot: i}
		}
	}
	return nil
}

// RemoveStacks applies a batch of removals. Fails on the first error;
// callers roll back via Snapshot/Restore.
func (inv *Inventory) RemoveStacks(stacks []Stack) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := range stacks {
		if err := inv.removeLocked(stacks[i].ItemID, stacks[i].Amount); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot captures the full inventory state for rollback.
func (inv *Inventory) Snapshot() *Snapshot {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	snap := &Snapshot{
		stacks: make([]Stack, len(inv.slots)),
		bits:   inv.bits,
	}
	copy(snap.stacks, inv.slots)
	return snap
}

// Restore rewinds the inventory to a previously captured snapshot.
func (inv *Inventory) Restore(snap *Snapshot) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	copy(inv.slots, snap.stacks)
	inv.bits = snap.bits
}

// Equal reports whether two snapshots carry identical item and currency
// state. Used by rollback tests.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.bits != other.bits || len(s.stacks) != len(other.stacks) {
		return false
	}
	for i := range s.stacks {
		a, b := s.stacks[i], other.stacks[i]
		if a.ItemID != b.ItemID || a.Amount != b.Amount || a.Slot != b.Slot {
			return false
		}
	}
	return true
}
