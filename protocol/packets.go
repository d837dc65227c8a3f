package protocol

// Outbound packet constructors. Field order matches the client decoders;
// change nothing here without a matching client change.

// StackData is the wire form of one inventory stack.
type StackData struct {
	ItemID int
	Amount int
	Slot   int
}

func writeStack(w *Writer, s StackData) {
	w.WriteUint32(uint32(s.ItemID))
	w.WriteUint16(uint16(s.Amount))
	w.WriteUint16(uint16(s.Slot))
}

// TradeProposed notifies a session that a peer proposed a trade.
func TradeProposed(peerHandle int64, peerName string) []byte {
	return NewWriter(OpTradeProposed).
		WriteInt64(peerHandle).
		WriteString(peerName).
		Bytes()
}

// TradeItemAdded mirrors a staged item to both trade windows.
func TradeItemAdded(ownerHandle int64, stack StackData, stagingSlot, inventorySlot int) []byte {
	w := NewWriter(OpTradeItemAdded).WriteInt64(ownerHandle)
	writeStack(w, stack)
	return w.WriteUint8(uint8(stagingSlot)).
		WriteInt16(int16(inventorySlot)).
		Bytes()
}

// TradeBitsAdded mirrors a staged currency amount to both trade windows.
func TradeBitsAdded(ownerHandle int64, bits int64) []byte {
	return NewWriter(OpTradeBitsAdded).
		WriteInt64(ownerHandle).
		WriteInt64(bits).
		Bytes()
}

// TradeItemRemoved mirrors an unstaged item to both trade windows.
func TradeItemRemoved(ownerHandle int64, stagingSlot int) []byte {
	return NewWriter(OpTradeItemRemoved).
		WriteInt64(ownerHandle).
		WriteUint8(uint8(stagingSlot)).
		Bytes()
}

// TradeConfirmed echoes one side's confirmation to both windows.
func TradeConfirmed(handle int64) []byte {
	return NewWriter(OpTradeConfirmed).WriteInt64(handle).Bytes()
}

// TradeFinalConfirm closes the trade window after a successful commit.
func TradeFinalConfirm(handle int64) []byte {
	return NewWriter(OpTradeFinalConfirm).WriteInt64(handle).Bytes()
}

// TradeCancelled aborts the trade window. Handle 0 when the peer is gone.
func TradeCancelled(peerHandle int64) []byte {
	return NewWriter(OpTradeCancelled).WriteInt64(peerHandle).Bytes()
}

// TradeInventoryUnlock re-enables the trade inventory panel.
func TradeInventoryUnlock(handle int64) []byte {
	return NewWriter(OpTradeInventoryUnlock).WriteInt64(handle).Bytes()
}

// LoadInventory pushes the full inventory state to the client.
func LoadInventory(stacks []StackData, bits int64) []byte {
	w := NewWriter(OpLoadInventory).
		WriteInt64(bits).
		WriteUint16(uint16(len(stacks)))
	for _, s := range stacks {
		writeStack(w, s)
	}
	return w.Bytes()
}

// SystemMessage shows a system chat line to one session.
func SystemMessage(msg string) []byte {
	return NewWriter(OpSystemMessage).WriteString(msg).Bytes()
}

// NoticeMessage is a server-wide notice broadcast.
func NoticeMessage(msg string) []byte {
	return NewWriter(OpNoticeMessage).WriteString(msg).Bytes()
}

// BanUser tells the offending client it has been suspended.
func BanUser(secondsRemaining uint32, reason string) []byte {
	return NewWriter(OpBanUser).
		WriteUint32(secondsRemaining).
		WriteString(reason).
		Bytes()
}

// HatchFinished announces the newly hatched partner.
func HatchFinished(handle int64, baseType, grade, size, slot int, name string) []byte {
	return NewWriter(OpHatchFinished).
		WriteInt64(handle).
		WriteUint32(uint32(baseType)).
		WriteUint8(uint8(grade)).
		WriteUint16(uint16(size)).
		WriteUint8(uint8(slot)).
		WriteString(name).
		Bytes()
}

// IncubatorClosed acknowledges closing the incubator window.
func IncubatorClosed() []byte {
	return NewWriter(OpIncubatorClosed).WriteInt32(0).Bytes()
}

// SkillCapResult reports the outcome of a skill-cap increase attempt.
func SkillCapResult(result int, formSlot uint32, skillMaxLevel int, invSlot, itemID uint32) []byte {
	return NewWriter(OpSkillCapResult).
		WriteInt32(int32(result)).
		WriteUint32(formSlot).
		WriteUint16(uint16(skillMaxLevel)).
		WriteUint32(invSlot).
		WriteUint32(itemID).
		Bytes()
}

// ItemConsumeSuccess acknowledges consuming one item from a slot.
func ItemConsumeSuccess(handle int64, invSlot int16) []byte {
	return NewWriter(OpItemConsumeSuccess).
		WriteInt64(handle).
		WriteInt16(invSlot).
		Bytes()
}
