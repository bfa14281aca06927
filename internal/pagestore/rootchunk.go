package pagestore

import (
	"fmt"

	"github.com/klaf-go/klaf/internal/byteutil"
)

// Root chunk field offsets (§3.2).
const (
	offMagic         = 0
	offMajor         = 10
	offMinor         = 11
	offPatch         = 12
	offLastIndex     = 13
	offPayloadSize   = 17
	offCreatedAt     = 21
	offSecret        = 29
	offAutoIncrement = 37
	offCount         = 45
	offReserved      = 49
)

// encodeRootChunk serializes r into a RootChunkSize-byte buffer.
func encodeRootChunk(r *RootChunk) []byte {
	buf := make([]byte, RootChunkSize)
	copy(buf[offMagic:], []byte(Magic))
	buf[offMajor] = r.Major
	buf[offMinor] = r.Minor
	buf[offPatch] = r.Patch
	byteutil.PutUint32(buf[offLastIndex:], r.LastIndex)
	byteutil.PutUint32(buf[offPayloadSize:], r.PayloadSize)
	byteutil.PutUint64(buf[offCreatedAt:], r.CreatedAt)
	byteutil.PutUint64(buf[offSecret:], r.Secret)
	byteutil.PutUint64(buf[offAutoIncrement:], r.AutoIncrement)
	byteutil.PutUint32(buf[offCount:], r.Count)
	return buf
}

// decodeRootChunk parses a RootChunkSize-byte buffer, validating the magic.
func decodeRootChunk(buf []byte) (*RootChunk, error) {
	if len(buf) < RootChunkSize {
		return nil, fmt.Errorf("pagestore: root chunk too short (%d bytes)", len(buf))
	}
	if string(buf[offMagic:offMagic+len(Magic)]) != Magic {
		return nil, fmt.Errorf("pagestore: bad magic %q", buf[offMagic:offMagic+len(Magic)])
	}
	r := &RootChunk{
		Major:         buf[offMajor],
		Minor:         buf[offMinor],
		Patch:         buf[offPatch],
		LastIndex:     byteutil.Uint32(buf[offLastIndex:]),
		PayloadSize:   byteutil.Uint32(buf[offPayloadSize:]),
		CreatedAt:     byteutil.Uint64(buf[offCreatedAt:]),
		Secret:        byteutil.Uint64(buf[offSecret:]),
		AutoIncrement: byteutil.Uint64(buf[offAutoIncrement:]),
		Count:         byteutil.Uint32(buf[offCount:]),
	}
	return r, nil
}
