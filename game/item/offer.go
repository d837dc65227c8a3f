package item

import (
	"errors"
	"sync"
)

var (
	ErrOfferFull      = errors.New("trade offer full")
	ErrAlreadyStaged  = errors.New("item already staged")
	ErrNoStagingSlot  = errors.New("no empty staging slot")
	ErrNotStaged      = errors.New("item not staged")
	ErrOfferBadAmount = errors.New("invalid staged amount")
)

// Offer holds the items and currency a session has staged for exchange.
// Entries reference quantities by value, not by ownership; nothing leaves
// the owner's inventory until commit.
type Offer struct {
	mu       sync.Mutex
	stacks   []*Stack // staging slot → staged copy, nil when free
	bits     int64
	maxItems int
}

// NewOffer creates an empty offer bounded to maxItems staged entries.
func NewOffer(maxItems int) *Offer {
	return &Offer{
		stacks:   make([]*Stack, maxItems),
		maxItems: maxItems,
	}
}

// Count returns the number of staged entries.
func (o *Offer) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.stacks {
		if s != nil {
			n++
		}
	}
	return n
}

// Bits returns the staged currency amount.
func (o *Offer) Bits() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bits
}

// SetBits stages a currency amount.
func (o *Offer) SetBits(bits int64) error {
	if bits < 0 {
		return ErrOfferBadAmount
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bits = bits
	return nil
}

// Items returns value copies of all staged entries.
func (o *Offer) Items() []Stack {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Stack, 0, o.maxItems)
	for _, s := range o.stacks {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Contains reports whether the given item+inventory-slot pair is already
// staged. Rejecting duplicates defends against stack-split staging.
func (o *Offer) Contains(itemID, invSlot int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.stacks {
		if s != nil && s.ItemID == itemID && s.Slot == invSlot {
			return true
		}
	}
	return false
}

// Add stages a value copy of a stack. The returned staging slot is where
// the entry landed.
func (o *Offer) Add(stack *Stack) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stack == nil || stack.Amount <= 0 {
		return -1, ErrOfferBadAmount
	}
	occupied := 0
	for _, s := range o.stacks {
		if s == nil {
			continue
		}
		occupied++
		if s.ItemID == stack.ItemID && s.Slot == stack.Slot {
			return -1, ErrAlreadyStaged
		}
	}
	if occupied >= o.maxItems {
		return -1, ErrOfferFull
	}
	for i, s := range o.stacks {
		if s == nil {
			o.stacks[i] = stack.Clone()
			return i, nil
		}
	}
	return -1, ErrNoStagingSlot
}

// Remove unstages the entry at the given staging slot.
func (o *Offer) Remove(stagingSlot int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stagingSlot < 0 || stagingSlot >= o.maxItems || o.stacks[stagingSlot] == nil {
		return ErrNotStaged
	}
	o.stacks[stagingSlot] = nil
	return nil
}

// Clear drops every staged entry and the staged currency.
func (o *Offer) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.stacks {
		o.stacks[i] = nil
	}
	o.bits = 0
}
