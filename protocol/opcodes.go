package protocol

import "fmt"

// Opcode identifies the message kind carried by a packet.
type Opcode uint16

// Inbound opcodes (client → server).
const (
	OpTradeRequest     Opcode = 3151
	OpTradeAccept      Opcode = 3152
	OpTradeAddItem     Opcode = 3153
	OpTradeAddBits     Opcode = 3154
	OpTradeRemoveItem  Opcode = 3155
	OpTradeConfirm     Opcode = 3156
	OpTradeCancel      Opcode = 3157
	OpHatchFinish      Opcode = 3137
	OpIncubatorClose   Opcode = 3947
	OpSkillCapIncrease Opcode = 3244
)

// Outbound opcodes (server → client).
const (
	OpTradeProposed         Opcode = 3161
	OpTradeItemAdded        Opcode = 3162
	OpTradeBitsAdded        Opcode = 3163
	OpTradeItemRemoved      Opcode = 3164
	OpTradeConfirmed        Opcode = 3165
	OpTradeFinalConfirm     Opcode = 3166
	OpTradeCancelled        Opcode = 3167
	OpTradeInventoryUnlock  Opcode = 3168
	OpLoadInventory         Opcode = 3945
	OpSystemMessage         Opcode = 3116
	OpNoticeMessage         Opcode = 3117
	OpBanUser               Opcode = 3118
	OpHatchFinished         Opcode = 3138
	OpIncubatorClosed       Opcode = 3948
	OpSkillCapResult        Opcode = 3245
	OpItemConsumeSuccess    Opcode = 3946
)

var opcodeNames = map[Opcode]string{
	OpTradeRequest:         "TradeRequest",
	OpTradeAccept:          "TradeAccept",
	OpTradeAddItem:         "TradeAddItem",
	OpTradeAddBits:         "TradeAddBits",
	OpTradeRemoveItem:      "TradeRemoveItem",
	OpTradeConfirm:         "TradeConfirm",
	OpTradeCancel:          "TradeCancel",
	OpHatchFinish:          "HatchFinish",
	OpIncubatorClose:       "IncubatorClose",
	OpSkillCapIncrease:     "SkillCapIncrease",
	OpTradeProposed:        "TradeProposed",
	OpTradeItemAdded:       "TradeItemAdded",
	OpTradeBitsAdded:       "TradeBitsAdded",
	OpTradeItemRemoved:     "TradeItemRemoved",
	OpTradeConfirmed:       "TradeConfirmed",
	OpTradeFinalConfirm:    "TradeFinalConfirm",
	OpTradeCancelled:       "TradeCancelled",
	OpTradeInventoryUnlock: "TradeInventoryUnlock",
	OpLoadInventory:        "LoadInventory",
	OpSystemMessage:        "SystemMessage",
	OpNoticeMessage:        "NoticeMessage",
	OpBanUser:              "BanUser",
	OpHatchFinished:        "HatchFinished",
	OpIncubatorClosed:      "IncubatorClosed",
	OpSkillCapResult:       "SkillCapResult",
	OpItemConsumeSuccess:   "ItemConsumeSuccess",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return fmt.Sprintf("%s(%d)", name, uint16(o))
	}
	return fmt.Sprintf("Opcode(%d)", uint16(o))
}
