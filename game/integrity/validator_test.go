package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamer-online/gameserver/config"
	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/player"
	"go.uber.org/zap"
)

func gameConfig() config.GameConfig {
	return config.GameConfig{
		InventoryCapacity: 70,
		DigimonSlots:      5,
		MinHatchLevel:     3,
		MaxDigimonName:    12,
	}
}

func testCatalog() *item.Catalog {
	return item.NewCatalog([]item.Info{
		{ItemID: 100, Name: "Recovery Disk", Type: item.TypeConsumable, Section: 10101},
		{ItemID: 200, Name: "Power Digicode", Type: item.TypeDigicode, Section: 20201},
		{ItemID: 300, Name: "Koromon Egg", Type: item.TypeEgg, Section: 30301, HatchType: 1001},
	})
}

func readySession(t *testing.T, handle int64) *player.Session {
	t.Helper()
	s := player.New(handle, handle, handle, "tamer", nil, zap.NewNop())
	s.Inventory = item.NewInventory(70)
	s.Offer = item.NewOffer(8)
	s.DigimonSlots = 5
	s.SetState(player.StateReady)
	return s
}

func TestValidatePlayerState(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())

	assert.False(t, v.ValidatePlayerState(nil).OK)

	s := readySession(t, 1)
	assert.True(t, v.ValidatePlayerState(s).OK)

	s.SetState(player.StateLoading)
	assert.False(t, v.ValidatePlayerState(s).OK)
	s.SetState(player.StateReady)

	s.Close()
	assert.False(t, v.ValidatePlayerState(s).OK)
}

func TestValidateItemIntegrity(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())

	assert.True(t, v.ValidateItemIntegrity(item.Stack{ItemID: 100, Amount: 1}).OK)
	assert.False(t, v.ValidateItemIntegrity(item.Stack{ItemID: 0, Amount: 1}).OK)
	assert.False(t, v.ValidateItemIntegrity(item.Stack{ItemID: 999, Amount: 1}).OK)
	assert.False(t, v.ValidateItemIntegrity(item.Stack{ItemID: 100, Amount: 0}).OK)
	assert.False(t, v.ValidateItemIntegrity(item.Stack{ItemID: 100, Amount: -4}).OK)
}

func TestValidateInventoryOperation(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())
	s := readySession(t, 1)
	require.NoError(t, s.Inventory.SetSlot(3, 100, 5, nil))

	assert.True(t, v.ValidateInventoryOperation(s, 3, 5).OK)
	assert.False(t, v.ValidateInventoryOperation(s, 3, 6).OK, "amount exceeds holding")
	assert.False(t, v.ValidateInventoryOperation(s, 4, 1).OK, "empty slot")
	assert.False(t, v.ValidateInventoryOperation(s, -1, 1).OK)
	assert.False(t, v.ValidateInventoryOperation(s, 70, 1).OK)
	assert.False(t, v.ValidateInventoryOperation(s, 3, 0).OK)
}

func TestValidateTradeIntegrity(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())
	a := readySession(t, 1)
	b := readySession(t, 2)
	require.NoError(t, a.Inventory.SetSlot(0, 100, 5, nil))
	a.Inventory.SetBits(300)

	a.StartTrade(b.Handle)
	b.StartTrade(a.Handle)
	a.SetTradeConfirm(true)
	b.SetTradeConfirm(true)

	_, err := a.Offer.Add(&item.Stack{ItemID: 100, Amount: 5, Slot: 0})
	require.NoError(t, err)
	require.NoError(t, a.Offer.SetBits(200))

	assert.True(t, v.ValidateTradeIntegrity(a, b).OK)

	// Holdings degrade after staging: commit-time check must fail.
	require.NoError(t, a.Inventory.RemoveOrReduce(100, 3))
	r := v.ValidateTradeIntegrity(a, b)
	assert.False(t, r.OK)
	assert.Contains(t, r.Reason, "amount shrank")
}

func TestValidateTradeIntegrity_LinkAndConfirm(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())
	a := readySession(t, 1)
	b := readySession(t, 2)

	a.StartTrade(b.Handle)
	b.StartTrade(99) // mislinked
	a.SetTradeConfirm(true)
	b.SetTradeConfirm(true)
	assert.False(t, v.ValidateTradeIntegrity(a, b).OK)

	b.StartTrade(a.Handle)
	a.SetTradeConfirm(true)
	b.SetTradeConfirm(false)
	assert.False(t, v.ValidateTradeIntegrity(a, b).OK)
}

func TestValidateTradeIntegrity_OverstagedBits(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())
	a := readySession(t, 1)
	b := readySession(t, 2)
	a.Inventory.SetBits(100)
	a.StartTrade(b.Handle)
	b.StartTrade(a.Handle)
	a.SetTradeConfirm(true)
	b.SetTradeConfirm(true)
	require.NoError(t, a.Offer.SetBits(500))

	r := v.ValidateTradeIntegrity(a, b)
	assert.False(t, r.OK)
}

func TestValidateHatchIntegrity(t *testing.T) {
	v := NewValidator(testCatalog(), gameConfig())
	s := readySession(t, 1)
	s.Incubator = player.Incubator{EggID: 300, HatchLevel: 3}

	assert.True(t, v.ValidateHatchIntegrity(s, "Agumon").OK)

	assert.False(t, v.ValidateHatchIntegrity(s, "").OK)
	assert.False(t, v.ValidateHatchIntegrity(s, "NameWayTooLongHere").OK)

	s.Incubator.HatchLevel = 2
	assert.False(t, v.ValidateHatchIntegrity(s, "Agumon").OK)
	s.Incubator.HatchLevel = 3

	s.Incubator.EggID = 100 // not an egg
	assert.False(t, v.ValidateHatchIntegrity(s, "Agumon").OK)
	s.Incubator.EggID = 0
	assert.False(t, v.ValidateHatchIntegrity(s, "Agumon").OK)
	s.Incubator.EggID = 300

	// All partner slots taken.
	for i := 0; i < s.DigimonSlots; i++ {
		require.True(t, s.OccupyDigimonSlot(i))
	}
	assert.False(t, v.ValidateHatchIntegrity(s, "Agumon").OK)
}
