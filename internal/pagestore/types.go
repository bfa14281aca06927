// Package pagestore implements the paged record engine of §3-§4.D:
// the root chunk, the slotted page layout, record placement and overflow
// chaining, and the update-with-alias and delete semantics built on top of
// an engine.Engine byte-addressed backend.
package pagestore

const (
	// RootChunkSize is the fixed size, in bytes, of the file's root chunk
	// (§3.2).
	RootChunkSize = 200

	// PageHeaderSize is the fixed size, in bytes, of a page header
	// (§3.3).
	PageHeaderSize = 100

	// DefaultPayloadSize is the default page payload size in bytes.
	DefaultPayloadSize = 4096

	// RecordHeaderSize is the fixed size, in bytes, of a record header
	// (§3.4).
	RecordHeaderSize = 40

	// CellSize is the size, in bytes, of one cell-directory entry.
	CellSize = 4

	// Magic is the 10-byte ASCII signature stored at root-chunk offset 0.
	Magic = "KLAF_DB_01"

	// DocumentMagic is the value stored in the document layer's root
	// record "verify" field (§4.F.1).
	DocumentMagic = "klaf-document-store"
)

const (
	MajorVersion = 1
	MinorVersion = 0
	PatchVersion = 0
)

// PageType enumerates the page header's type field (§3.3).
type PageType uint32

const (
	PageUnknown  PageType = 0
	PageInternal PageType = 1
	PageOverflow PageType = 2
	PageReserved PageType = 3
)

// RootChunk mirrors the 200-byte root chunk of §3.2.
type RootChunk struct {
	Major         uint8
	Minor         uint8
	Patch         uint8
	LastIndex     uint32
	PayloadSize   uint32
	CreatedAt     uint64
	Secret        uint64
	AutoIncrement uint64
	Count         uint32
}

// PageHeader mirrors the fixed fields of a page header (§3.3). The
// remaining bytes up to PageHeaderSize are reserved and always zero.
type PageHeader struct {
	Type  PageType
	Index uint32
	Next  uint32
	Count uint32
	Free  uint32
}

// RecordHeader mirrors the 40-byte record header (§3.4).
type RecordHeader struct {
	PageIndex  uint32
	Slot       uint32
	Salt       uint32
	PayloadLen uint32
	MaxLen     uint32
	Deleted    bool
	AliasIndex uint32
	AliasSlot  uint32
	AliasSalt  uint32
}

// Record is a fully resolved record: its header plus the payload bytes
// read back from the store.
type Record struct {
	ID      string
	Header  RecordHeader
	Payload []byte
}
