package protocol

import "encoding/binary"

// Frame layout: uint16 total length (including the 4-byte header),
// uint16 opcode, payload. All fields little-endian.
const headerSize = 4

// Writer builds one outbound packet. Fields are appended in declared
// order after the opcode tag; Bytes fixes the length prefix.
type Writer struct {
	buf []byte
}

// NewWriter starts a packet for the given opcode.
func NewWriter(op Opcode) *Writer {
	w := &Writer{buf: make([]byte, headerSize, 64)}
	binary.LittleEndian.PutUint16(w.buf[2:], uint16(op))
	return w
}

func (w *Writer) WriteUint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) WriteUint16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *Writer) WriteInt16(v int16) *Writer {
	return w.WriteUint16(uint16(v))
}

func (w *Writer) WriteUint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) WriteInt32(v int32) *Writer {
	return w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

func (w *Writer) WriteInt64(v int64) *Writer {
	return w.WriteUint64(uint64(v))
}

func (w *Writer) WriteBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// WriteString writes a uint16 length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) *Writer {
	w.WriteUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// Bytes finalizes the length prefix and returns the serialized packet.
func (w *Writer) Bytes() []byte {
	binary.LittleEndian.PutUint16(w.buf, uint16(len(w.buf)))
	return w.buf
}

// Group concatenates serialized packets into one physical send without
// altering per-message framing.
func Group(packets ...[]byte) []byte {
	total := 0
	for _, p := range packets {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range packets {
		out = append(out, p...)
	}
	return out
}

// Packet is one framed message inside a physical frame.
type Packet struct {
	Op      Opcode
	Payload []byte
}

// Split walks a physical frame and returns the individual packets. A
// malformed boundary stops the walk; packets before it are still
// returned.
func Split(frame []byte) []Packet {
	var out []Packet
	for len(frame) >= headerSize {
		size := int(binary.LittleEndian.Uint16(frame))
		if size < headerSize || size > len(frame) {
			break
		}
		op := Opcode(binary.LittleEndian.Uint16(frame[2:]))
		out = append(out, Packet{Op: op, Payload: frame[headerSize:size]})
		frame = frame[size:]
	}
	return out
}
