package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_FrameLayout(t *testing.T) {
	pkt := NewWriter(OpSystemMessage).WriteString("hello").Bytes()

	// uint16 total length, uint16 opcode, uint16 strlen, bytes.
	require.Len(t, pkt, 4+2+5)
	assert.Equal(t, uint16(len(pkt)), binary.LittleEndian.Uint16(pkt))
	assert.Equal(t, uint16(OpSystemMessage), binary.LittleEndian.Uint16(pkt[2:]))
	assert.Equal(t, uint16(5), binary.LittleEndian.Uint16(pkt[4:]))
	assert.Equal(t, "hello", string(pkt[6:]))
}

func TestReader_RoundTrip(t *testing.T) {
	pkt := NewWriter(OpTradeBitsAdded).
		WriteInt64(42).
		WriteUint32(7).
		WriteInt16(-3).
		WriteString("Agumon").
		Bytes()

	packets := Split(pkt)
	require.Len(t, packets, 1)
	assert.Equal(t, OpTradeBitsAdded, packets[0].Op)

	r := NewReader(packets[0].Payload)
	h, err := r.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), h)
	u, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), u)
	i, err := r.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-3), i)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Agumon", s)
	assert.Equal(t, 0, r.Remaining())
}

func TestReader_ShortPayload(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})

	_, err := r.ReadUint32()
	require.ErrorIs(t, err, ErrShortPayload)

	// Cursor did not move; the two bytes are still readable.
	v, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v)

	_, err = r.ReadUint8()
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestReader_StringTruncated(t *testing.T) {
	// Declared length 10, only 3 bytes present.
	r := NewReader([]byte{10, 0, 'a', 'b', 'c'})
	_, err := r.ReadString()
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestReader_StringRejectsInvalidUTF8(t *testing.T) {
	r := NewReader([]byte{2, 0, 0xff, 0xfe})
	_, err := r.ReadString()
	assert.Error(t, err)
}

func TestReader_Skip(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, r.Skip(5))
	v, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(6), v)
	assert.ErrorIs(t, r.Skip(1), ErrShortPayload)
}

func TestGroupAndSplit(t *testing.T) {
	a := NewWriter(OpTradeConfirmed).WriteInt64(1).Bytes()
	b := NewWriter(OpTradeFinalConfirm).WriteInt64(2).Bytes()
	c := NewWriter(OpTradeInventoryUnlock).WriteInt64(3).Bytes()

	frame := Group(a, b, c)
	assert.Len(t, frame, len(a)+len(b)+len(c))

	packets := Split(frame)
	require.Len(t, packets, 3)
	assert.Equal(t, OpTradeConfirmed, packets[0].Op)
	assert.Equal(t, OpTradeFinalConfirm, packets[1].Op)
	assert.Equal(t, OpTradeInventoryUnlock, packets[2].Op)

	for i, want := range []int64{1, 2, 3} {
		v, err := NewReader(packets[i].Payload).ReadInt64()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestSplit_StopsAtMalformedBoundary(t *testing.T) {
	good := NewWriter(OpTradeConfirmed).WriteInt64(9).Bytes()
	bad := []byte{0xff, 0xff, 0x00, 0x00} // declared size 65535

	packets := Split(Group(good, bad))
	require.Len(t, packets, 1)
	assert.Equal(t, OpTradeConfirmed, packets[0].Op)

	assert.Empty(t, Split([]byte{0x01}))
	assert.Empty(t, Split(nil))
}

func TestLoadInventory_Layout(t *testing.T) {
	pkt := LoadInventory([]StackData{
		{ItemID: 100, Amount: 5, Slot: 0},
		{ItemID: 200, Amount: 1, Slot: 3},
	}, 1234)

	packets := Split(pkt)
	require.Len(t, packets, 1)
	r := NewReader(packets[0].Payload)

	bits, err := r.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(1234), bits)
	count, err := r.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(2), count)

	id, _ := r.ReadUint32()
	amount, _ := r.ReadUint16()
	slot, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint32(100), id)
	assert.Equal(t, uint16(5), amount)
	assert.Equal(t, uint16(0), slot)
}

func TestOpcode_String(t *testing.T) {
	assert.Contains(t, OpTradeAddItem.String(), "3153")
	assert.NotEmpty(t, Opcode(9999).String())
}
