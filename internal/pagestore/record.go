package pagestore

import (
	"fmt"

	"github.com/klaf-go/klaf/internal/byteutil"
)

// Record header field offsets (§3.4).
const (
	offRecPageIndex  = 0
	offRecSlot       = 4
	offRecSalt       = 8
	offRecPayloadLen = 12
	offRecMaxLen     = 16
	offRecDeleted    = 20
	offRecAliasIndex = 21
	offRecAliasSlot  = 25
	offRecAliasSalt  = 29
	// bytes 33-39 are reserved
)

// encodeRecordHeader serializes h into a RecordHeaderSize-byte buffer.
func encodeRecordHeader(h *RecordHeader) []byte {
	buf := make([]byte, RecordHeaderSize)
	byteutil.PutUint32(buf[offRecPageIndex:], h.PageIndex)
	byteutil.PutUint32(buf[offRecSlot:], h.Slot)
	byteutil.PutUint32(buf[offRecSalt:], h.Salt)
	byteutil.PutUint32(buf[offRecPayloadLen:], h.PayloadLen)
	byteutil.PutUint32(buf[offRecMaxLen:], h.MaxLen)
	if h.Deleted {
		buf[offRecDeleted] = 1
	}
	byteutil.PutUint32(buf[offRecAliasIndex:], h.AliasIndex)
	byteutil.PutUint32(buf[offRecAliasSlot:], h.AliasSlot)
	byteutil.PutUint32(buf[offRecAliasSalt:], h.AliasSalt)
	return buf
}

// decodeRecordHeader parses a RecordHeaderSize-byte buffer.
func decodeRecordHeader(buf []byte) (*RecordHeader, error) {
	if len(buf) < RecordHeaderSize {
		return nil, fmt.Errorf("pagestore: record header too short (%d bytes)", len(buf))
	}
	return &RecordHeader{
		PageIndex:  byteutil.Uint32(buf[offRecPageIndex:]),
		Slot:       byteutil.Uint32(buf[offRecSlot:]),
		Salt:       byteutil.Uint32(buf[offRecSalt:]),
		PayloadLen: byteutil.Uint32(buf[offRecPayloadLen:]),
		MaxLen:     byteutil.Uint32(buf[offRecMaxLen:]),
		Deleted:    buf[offRecDeleted] != 0,
		AliasIndex: byteutil.Uint32(buf[offRecAliasIndex:]),
		AliasSlot:  byteutil.Uint32(buf[offRecAliasSlot:]),
		AliasSalt:  byteutil.Uint32(buf[offRecAliasSalt:]),
	}, nil
}
