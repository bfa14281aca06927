package pagestore

import (
	"fmt"

	"github.com/klaf-go/klaf/internal/byteutil"
)

// Page header field offsets (§3.3). All fields are 32-bit
// big-endian unsigned integers; bytes past offFree up to PageHeaderSize
// are reserved and always zero.
const (
	offType  = 0
	offIndex = 4
	offNext  = 8
	offCount = 12
	offFree  = 16
)

// encodePageHeader serializes h into a PageHeaderSize-byte buffer.
func encodePageHeader(h *PageHeader) []byte {
	buf := make([]byte, PageHeaderSize)
	byteutil.PutUint32(buf[offType:], uint32(h.Type))
	byteutil.PutUint32(buf[offIndex:], h.Index)
	byteutil.PutUint32(buf[offNext:], h.Next)
	byteutil.PutUint32(buf[offCount:], h.Count)
	byteutil.PutUint32(buf[offFree:], h.Free)
	return buf
}

// decodePageHeader parses a PageHeaderSize-byte buffer.
func decodePageHeader(buf []byte) (*PageHeader, error) {
	if len(buf) < PageHeaderSize {
		return nil, fmt.Errorf("pagestore: page header too short (%d bytes)", len(buf))
	}
	return &PageHeader{
		Type:  PageType(byteutil.Uint32(buf[offType:])),
		Index: byteutil.Uint32(buf[offIndex:]),
		Next:  byteutil.Uint32(buf[offNext:]),
		Count: byteutil.Uint32(buf[offCount:]),
		Free:  byteutil.Uint32(buf[offFree:]),
	}, nil
}

// pageOffset returns the absolute file offset of page index (1-based).
func pageOffset(index uint32, payloadSize uint32) int64 {
	chunkSize := int64(PageHeaderSize) + int64(payloadSize)
	return int64(RootChunkSize) + (int64(index)-1)*chunkSize
}

// cellOffset returns the payload-relative byte offset of the slot-th cell
// (1-based), which is a CellSize-byte big-endian record offset.
func cellOffset(slot uint32, payloadSize uint32) uint32 {
	return payloadSize - CellSize*slot
}
