package item

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffer_AddAndRemove(t *testing.T) {
	o := NewOffer(8)

	slot, err := o.Add(&Stack{ItemID: 100, Amount: 5, Slot: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	assert.Equal(t, 1, o.Count())
	assert.True(t, o.Contains(100, 0))

	require.NoError(t, o.Remove(slot))
	assert.Equal(t, 0, o.Count())
	assert.False(t, o.Contains(100, 0))
	assert.ErrorIs(t, o.Remove(slot), ErrNotStaged)
}

func TestOffer_RejectsDuplicateItemSlotPair(t *testing.T) {
	o := NewOffer(8)
	_, err := o.Add(&Stack{ItemID: 100, Amount: 2, Slot: 3})
	require.NoError(t, err)

	_, err = o.Add(&Stack{ItemID: 100, Amount: 1, Slot: 3})
	assert.ErrorIs(t, err, ErrAlreadyStaged)

	// Same item from a different inventory slot is a distinct entry.
	_, err = o.Add(&Stack{ItemID: 100, Amount: 1, Slot: 4})
	assert.NoError(t, err)
}

func TestOffer_CapEnforced(t *testing.T) {
	o := NewOffer(8)
	for i := 0; i < 8; i++ {
		_, err := o.Add(&Stack{ItemID: 100 + i, Amount: 1, Slot: i})
		require.NoError(t, err, fmt.Sprintf("entry %d", i))
	}
	_, err := o.Add(&Stack{ItemID: 999, Amount: 1, Slot: 20})
	assert.ErrorIs(t, err, ErrOfferFull)
}

func TestOffer_AddValidatesAmount(t *testing.T) {
	o := NewOffer(8)
	_, err := o.Add(&Stack{ItemID: 100, Amount: 0, Slot: 0})
	assert.ErrorIs(t, err, ErrOfferBadAmount)
	_, err = o.Add(&Stack{ItemID: 100, Amount: -5, Slot: 0})
	assert.ErrorIs(t, err, ErrOfferBadAmount)
	_, err = o.Add(nil)
	assert.ErrorIs(t, err, ErrOfferBadAmount)
}

func TestOffer_BitsAndClear(t *testing.T) {
	o := NewOffer(8)
	require.NoError(t, o.SetBits(200))
	assert.Equal(t, int64(200), o.Bits())
	assert.ErrorIs(t, o.SetBits(-1), ErrOfferBadAmount)

	_, err := o.Add(&Stack{ItemID: 100, Amount: 1, Slot: 0})
	require.NoError(t, err)

	o.Clear()
	assert.Equal(t, 0, o.Count())
	assert.Equal(t, int64(0), o.Bits())
}

func TestOffer_ItemsAreValueCopies(t *testing.T) {
	o := NewOffer(8)
	src := &Stack{ItemID: 100, Amount: 5, Slot: 0}
	_, err := o.Add(src)
	require.NoError(t, err)

	// Mutating the source after staging must not touch the offer.
	src.Amount = 1
	items := o.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Amount)
}
