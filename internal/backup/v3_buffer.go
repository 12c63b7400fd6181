package backup

import (
	"bytes"
	"encoding/binary"
)

// writeBuffer accumulates a V3 frame's fields, deferring error handling to
// a single check at the end rather than threading it through every field
// write (binary.Write against a bytes.Buffer never actually fails, but
// encodeV3Frame still checks buf.err so future encoders of this buffer
// can't silently drop a real error).
type writeBuffer struct {
	buf bytes.Buffer
	err error
}

func (b *writeBuffer) writeUint32(v uint32) {
	if b.err != nil {
		return
	}
	b.err = binary.Write(&b.buf, binary.BigEndian, v)
}

func (b *writeBuffer) writeInt32(v int32) {
	if b.err != nil {
		return
	}
	b.err = binary.Write(&b.buf, binary.BigEndian, v)
}

func (b *writeBuffer) writeInt64(v int64) {
	if b.err != nil {
		return
	}
	b.err = binary.Write(&b.buf, binary.BigEndian, v)
}

func (b *writeBuffer) writeLenPrefixed(data []byte) {
	b.writeUint32(uint32(len(data)))
	if b.err != nil {
		return
	}
	_, b.err = b.buf.Write(data)
}

// writeLenPrefixedNullable writes a signed length prefix, -1 for a nil
// slice, so the V3 frame can represent a tombstone value.
func (b *writeBuffer) writeLenPrefixedNullable(data []byte) {
	if data == nil {
		b.writeInt32(-1)
		return
	}
	b.writeInt32(int32(len(data)))
	if b.err != nil {
		return
	}
	_, b.err = b.buf.Write(data)
}

func (b *writeBuffer) Bytes() []byte { return b.buf.Bytes() }

func bytesReaderOf(data []byte) *bytes.Reader { return bytes.NewReader(data) }
