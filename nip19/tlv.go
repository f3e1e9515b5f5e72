package nip19

import (
	"bytes"
	"iter"
)

const (
	TLVDefault uint8 = 0
	TLVRelay   uint8 = 1
	TLVAuthor  uint8 = 2
	TLVKind    uint8 = 3
)

// tlvEntries yields type/value pairs until the data runs out or an entry is truncated.
func tlvEntries(data []byte) iter.Seq2[uint8, []byte] {
	return func(yield func(uint8, []byte) bool) {
		for len(data) >= 2 {
			typ, length := data[0], int(data[1])
			if len(data) < 2+length {
				return
			}
			if !yield(typ, data[2:2+length]) {
				return
			}
			data = data[2+length:]
		}
	}
}

func writeTLVEntry(buf *bytes.Buffer, typ uint8, value []byte) {
	length := len(value)
	if length > 255 {
		value = value[:255]
		length = 255
	}
	buf.WriteByte(typ)
	buf.WriteByte(uint8(length))
	buf.Write(value)
}
