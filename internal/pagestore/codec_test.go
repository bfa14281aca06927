package pagestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		h    PageHeader
	}{
		{"internal page", PageHeader{Type: PageInternal, Index: 1, Next: 0, Count: 3, Free: 4096}},
		{"overflow page with next", PageHeader{Type: PageOverflow, Index: 7, Next: 8, Count: 1, Free: 0}},
		{"zero value", PageHeader{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := encodePageHeader(&tc.h)
			require.Len(t, buf, PageHeaderSize)

			got, err := decodePageHeader(buf)
			require.NoError(t, err)
			require.Equal(t, tc.h, *got)
		})
	}
}

func TestDecodePageHeaderRejectsShortBuffer(t *testing.T) {
	_, err := decodePageHeader(make([]byte, PageHeaderSize-1))
	require.Error(t, err)
}

func TestRecordHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		h    RecordHeader
	}{
		{"plain record", RecordHeader{PageIndex: 2, Slot: 1, Salt: 99, PayloadLen: 10, MaxLen: 20}},
		{"deleted record", RecordHeader{PageIndex: 2, Slot: 1, Salt: 99, Deleted: true}},
		{"alias record", RecordHeader{
			PageIndex: 2, Slot: 1, Salt: 99,
			AliasIndex: 5, AliasSlot: 2, AliasSalt: 42,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := encodeRecordHeader(&tc.h)
			require.Len(t, buf, RecordHeaderSize)

			got, err := decodeRecordHeader(buf)
			require.NoError(t, err)
			require.Equal(t, tc.h, *got)
		})
	}
}

func TestDecodeRecordHeaderRejectsShortBuffer(t *testing.T) {
	_, err := decodeRecordHeader(make([]byte, RecordHeaderSize-1))
	require.Error(t, err)
}

func TestRootChunkRoundTrip(t *testing.T) {
	r := RootChunk{
		Major: 1, Minor: 0, Patch: 0,
		LastIndex: 3, PayloadSize: DefaultPayloadSize,
		CreatedAt: 1700000000, Secret: 0xdeadbeef, AutoIncrement: 42, Count: 7,
	}
	buf := encodeRootChunk(&r)
	require.Len(t, buf, RootChunkSize)

	got, err := decodeRootChunk(buf)
	require.NoError(t, err)
	require.Equal(t, r, *got)
}

func TestDecodeRootChunkRejectsShortBuffer(t *testing.T) {
	_, err := decodeRootChunk(make([]byte, RootChunkSize-1))
	require.Error(t, err)
}

func TestDecodeRootChunkRejectsBadMagic(t *testing.T) {
	r := RootChunk{PayloadSize: DefaultPayloadSize}
	buf := encodeRootChunk(&r)
	buf[0] = 'X'

	_, err := decodeRootChunk(buf)
	require.Error(t, err)
}

func TestPageOffsetAdvancesByChunkSize(t *testing.T) {
	chunkSize := int64(PageHeaderSize) + int64(DefaultPayloadSize)
	first := pageOffset(1, DefaultPayloadSize)
	second := pageOffset(2, DefaultPayloadSize)
	require.Equal(t, int64(RootChunkSize), first)
	require.Equal(t, chunkSize, second-first)
}

func TestCellOffsetGrowsBackFromPayloadEnd(t *testing.T) {
	first := cellOffset(1, DefaultPayloadSize)
	second := cellOffset(2, DefaultPayloadSize)
	require.Equal(t, uint32(DefaultPayloadSize-CellSize), first)
	require.Equal(t, uint32(CellSize), first-second)
}
