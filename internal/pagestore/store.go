package pagestore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/klaf-go/klaf/internal/byteutil"
	"github.com/klaf-go/klaf/internal/engine"
	"github.com/klaf-go/klaf/internal/idcodec"
	"github.com/klaf-go/klaf/internal/kerr"
	"github.com/klaf-go/klaf/internal/logging"
)

// pageBufPool reuses the zeroed page-sized buffers appendPage writes on
// every new page, rather than allocating one per append.
var pageBufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

func getPageBuf(size int) []byte {
	buf := pageBufPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	return buf[:size]
}

func releasePageBuf(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	pageBufPool.Put(buf[:0])
}

// Store is the paged record engine of §4.D, built on an
// engine.Engine byte-addressed backend. It is single-threaded and
// cooperative (§5); callers that need concurrency safety wrap it
// (see the top-level klaf package).
type Store struct {
	engine engine.Engine
	root   *RootChunk
	codec  *idcodec.Codec
	logger *slog.Logger
}

// Create initializes a fresh store on an empty engine: it writes the root
// chunk (§3.2) and appends one empty internal page (index 1),
// per §4.D.1.
func Create(eng engine.Engine, payloadSize uint32) (*Store, error) {
	if payloadSize < 4 {
		return nil, fmt.Errorf("pagestore: payload size must be at least 4 bytes")
	}
	size, err := eng.Size()
	if err != nil {
		return nil, err
	}
	if size != 0 {
		return nil, fmt.Errorf("pagestore: engine must be empty for Create")
	}
	secret, err := byteutil.RandomUint64()
	if err != nil {
		return nil, err
	}
	root := &RootChunk{
		Major:         MajorVersion,
		Minor:         MinorVersion,
		Patch:         PatchVersion,
		LastIndex:     0,
		PayloadSize:   payloadSize,
		CreatedAt:     uint64(time.Now().UnixMilli()),
		Secret:        secret,
		AutoIncrement: 0,
		Count:         0,
	}
	if _, err := eng.Append(encodeRootChunk(root)); err != nil {
		return nil, err
	}
	s := &Store{engine: eng, root: root, codec: idcodec.New(secret), logger: logging.Discard()}
	if _, _, err := s.appendPage(PageInternal); err != nil {
		return nil, err
	}
	return s, nil
}

// Open validates and parses the root chunk of an existing store, per
// §4.D.1.
func Open(eng engine.Engine) (*Store, error) {
	buf, err := eng.ReadAt(0, RootChunkSize)
	if err != nil {
		return nil, err
	}
	root, err := decodeRootChunk(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerr.ErrInvalid, err)
	}
	return &Store{engine: eng, root: root, codec: idcodec.New(root.Secret), logger: logging.Discard()}, nil
}

// SetLogger installs a structured logger for diagnostics.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// PayloadSize returns the page payload size this store was created with.
func (s *Store) PayloadSize() uint32 { return s.root.PayloadSize }

// LogicalCount returns the root chunk's live-record counter.
func (s *Store) LogicalCount() uint32 { return s.root.Count }

// AutoIncrement returns the root chunk's per-put counter.
func (s *Store) AutoIncrement() uint64 { return s.root.AutoIncrement }

// Close flushes and releases the underlying engine.
func (s *Store) Close() error {
	if err := s.engine.Commit(); err != nil {
		return err
	}
	return s.engine.Close()
}

// Commit flushes pending writes without closing the engine, used by the
// transaction wrapper at the end of each write transaction (§5).
func (s *Store) Commit() error {
	return s.engine.Commit()
}

func (s *Store) writeRoot() error {
	return s.engine.WriteAt(0, encodeRootChunk(s.root))
}

// --- page-level I/O -------------------------------------------------------

func (s *Store) readPageHeader(idx uint32) (*PageHeader, error) {
	off := pageOffset(idx, s.root.PayloadSize)
	buf, err := s.engine.ReadAt(off, PageHeaderSize)
	if err != nil {
		return nil, err
	}
	return decodePageHeader(buf)
}

func (s *Store) writePageHeader(h *PageHeader) error {
	off := pageOffset(h.Index, s.root.PayloadSize)
	return s.engine.WriteAt(off, encodePageHeader(h))
}

func (s *Store) readPagePayload(idx uint32, offset, length uint32) ([]byte, error) {
	base := pageOffset(idx, s.root.PayloadSize) + int64(PageHeaderSize) + int64(offset)
	return s.engine.ReadAt(base, int(length))
}

func (s *Store) writePagePayload(idx uint32, offset uint32, data []byte) error {
	base := pageOffset(idx, s.root.PayloadSize) + int64(PageHeaderSize) + int64(offset)
	return s.engine.WriteAt(base, data)
}

func (s *Store) readCell(idx, slot uint32) (uint32, error) {
	buf, err := s.readPagePayload(idx, cellOffset(slot, s.root.PayloadSize), CellSize)
	if err != nil {
		return 0, err
	}
	return byteutil.Uint32(buf), nil
}

func (s *Store) writeCell(idx, slot, payloadOffset uint32) error {
	buf := make([]byte, CellSize)
	byteutil.PutUint32(buf, payloadOffset)
	return s.writePagePayload(idx, cellOffset(slot, s.root.PayloadSize), buf)
}

// appendPage extends the file with one new empty page of the given type
// and advances the root's last-page-index counter.
func (s *Store) appendPage(pageType PageType) (uint32, *PageHeader, error) {
	newIndex := s.root.LastIndex + 1
	h := &PageHeader{Type: pageType, Index: newIndex, Next: 0, Count: 0, Free: s.root.PayloadSize}
	buf := getPageBuf(PageHeaderSize + int(s.root.PayloadSize))
	clear(buf)
	copy(buf, encodePageHeader(h))
	_, err := s.engine.Append(buf)
	releasePageBuf(buf)
	if err != nil {
		return 0, nil, err
	}
	s.root.LastIndex = newIndex
	if err := s.writeRoot(); err != nil {
		return 0, nil, err
	}
	return newIndex, h, nil
}

// dataEnd returns the payload-relative offset where the next record would
// be written, per the invariant free = payloadSize - Σ(RH+len+CELL) of
// §3.6.
func dataEnd(h *PageHeader, payloadSize uint32) uint32 {
	return payloadSize - h.Free - CellSize*h.Count
}

// resolveHeadPage walks backward from the last page index past any
// overflow pages to find (or create) the current internal head page,
// per §4.D.2 step 1.
func (s *Store) resolveHeadPage() (uint32, *PageHeader, error) {
	idx := s.root.LastIndex
	for idx >= 1 {
		h, err := s.readPageHeader(idx)
		if err != nil {
			return 0, nil, err
		}
		if h.Type == PageOverflow {
			idx--
			continue
		}
		if h.Type == PageInternal {
			return idx, h, nil
		}
		break
	}
	return s.appendPage(PageInternal)
}

// --- record-level I/O ------------------------------------------------------

// readRecordRaw reads a record's header (and its owning page header)
// without following any alias.
func (s *Store) readRecordRaw(idx, slot uint32) (*RecordHeader, *PageHeader, error) {
	pageHdr, err := s.readPageHeader(idx)
	if err != nil {
		return nil, nil, err
	}
	cellVal, err := s.readCell(idx, slot)
	if err != nil {
		return nil, nil, err
	}
	hdrBytes, err := s.readPagePayload(idx, cellVal, RecordHeaderSize)
	if err != nil {
		return nil, nil, err
	}
	recHdr, err := decodeRecordHeader(hdrBytes)
	if err != nil {
		return nil, nil, err
	}
	return recHdr, pageHdr, nil
}

func (s *Store) writeRecordHeaderAt(idx, slot uint32, h *RecordHeader) error {
	cellVal, err := s.readCell(idx, slot)
	if err != nil {
		return err
	}
	return s.writePagePayload(idx, cellVal, encodeRecordHeader(h))
}

func (s *Store) readInPagePayload(idx, slot uint32, length uint32) ([]byte, error) {
	cellVal, err := s.readCell(idx, slot)
	if err != nil {
		return nil, err
	}
	return s.readPagePayload(idx, cellVal+RecordHeaderSize, length)
}

// readChainPayload reads the full RH+payload byte range of a record whose
// head page starts an overflow chain, following `next` pointers until
// enough bytes have been gathered (§4.D.3 step 6).
func (s *Store) readChainPayload(headIdx uint32, totalPayloadLen uint32) ([]byte, error) {
	total := RecordHeaderSize + int(totalPayloadLen)
	chunkSize := int(s.root.PayloadSize) - CellSize
	out := make([]byte, 0, total)
	curIdx := headIdx
	for len(out) < total {
		need := total - len(out)
		readLen := need
		if readLen > chunkSize {
			readLen = chunkSize
		}
		chunk, err := s.readPagePayload(curIdx, 0, uint32(readLen))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if len(out) >= total {
			break
		}
		hdr, err := s.readPageHeader(curIdx)
		if err != nil {
			return nil, err
		}
		if hdr.Next == 0 {
			return nil, fmt.Errorf("pagestore: truncated overflow chain at page %d", curIdx)
		}
		curIdx = hdr.Next
	}
	return out[RecordHeaderSize:], nil
}

// --- Put ---------------------------------------------------------------

// Put stores data as a new record and returns its identifier, per
// §4.D.2.
func (s *Store) Put(data []byte) (string, error) {
	return s.putInternal(data, true)
}

func (s *Store) putInternal(data []byte, increment bool) (string, error) {
	headIdx, headHdr, err := s.resolveHeadPage()
	if err != nil {
		return "", err
	}
	recordSize, err := byteutil.SafeAdd(RecordHeaderSize, len(data))
	if err != nil {
		return "", err
	}
	cellAndRecord, err := byteutil.SafeAdd(CellSize, recordSize)
	if err != nil {
		return "", err
	}

	if increment {
		s.root.AutoIncrement++
		s.root.Count++
		if err := s.writeRoot(); err != nil {
			return "", err
		}
	}

	if headHdr.Free >= uint32(cellAndRecord) {
		return s.putFastPath(headIdx, headHdr, data)
	}

	if headHdr.Count > 0 {
		newIdx, newHdr, err := s.appendPage(PageInternal)
		if err != nil {
			return "", err
		}
		headIdx, headHdr = newIdx, newHdr
	}

	capacity := int(s.root.PayloadSize) - CellSize
	chunks := byteutil.CeilDiv(recordSize, capacity)
	if chunks <= 1 {
		return s.putFastPath(headIdx, headHdr, data)
	}
	return s.putOverflowPath(headIdx, data)
}

func (s *Store) putFastPath(headIdx uint32, headHdr *PageHeader, data []byte) (string, error) {
	slot := headHdr.Count + 1
	salt, err := byteutil.RandomUint32()
	if err != nil {
		return "", err
	}
	recHdr := &RecordHeader{
		PageIndex:  headIdx,
		Slot:       slot,
		Salt:       salt,
		PayloadLen: uint32(len(data)),
		MaxLen:     uint32(len(data)),
	}
	full := append(encodeRecordHeader(recHdr), data...)
	offset := dataEnd(headHdr, s.root.PayloadSize)
	if err := s.writePagePayload(headIdx, offset, full); err != nil {
		return "", err
	}
	if err := s.writeCell(headIdx, slot, offset); err != nil {
		return "", err
	}
	headHdr.Count++
	headHdr.Free -= uint32(CellSize + len(full))
	if err := s.writePageHeader(headHdr); err != nil {
		return "", err
	}
	return s.codec.Encode(headIdx, slot, salt), nil
}

// putOverflowPath writes a record that spans multiple pages, per
// §4.D.2 step 5.
func (s *Store) putOverflowPath(headIdx uint32, data []byte) (string, error) {
	salt, err := byteutil.RandomUint32()
	if err != nil {
		return "", err
	}
	recHdr := &RecordHeader{
		PageIndex:  headIdx,
		Slot:       1,
		Salt:       salt,
		PayloadLen: uint32(len(data)),
		MaxLen:     uint32(len(data)),
	}
	id := s.codec.Encode(headIdx, 1, salt)
	full := append(encodeRecordHeader(recHdr), data...)
	chunkSize := int(s.root.PayloadSize) - CellSize

	curIdx := headIdx
	offset := 0
	for offset < len(full) {
		end := offset + chunkSize
		if end > len(full) {
			end = len(full)
		}
		chunk := full[offset:end]
		last := end == len(full)
		var nextIdx uint32
		if !last {
			ni, _, err := s.appendPage(PageOverflow)
			if err != nil {
				return "", err
			}
			nextIdx = ni
		}
		if err := s.writePagePayload(curIdx, 0, chunk); err != nil {
			return "", err
		}
		h := &PageHeader{Type: PageOverflow, Index: curIdx, Next: nextIdx, Count: 1, Free: 0}
		if err := s.writePageHeader(h); err != nil {
			return "", err
		}
		offset = end
		if !last {
			curIdx = nextIdx
		}
	}

	headHdr, err := s.readPageHeader(headIdx)
	if err != nil {
		return "", err
	}
	headHdr.Type = PageInternal
	if err := s.writePageHeader(headHdr); err != nil {
		return "", err
	}
	s.logger.Debug("pagestore: overflow record spilled", "head", headIdx, "bytes", len(data))
	return id, nil
}

// --- Pick ----------------------------------------------------------------

// Pick resolves id to its current payload, following at most one alias
// hop, per §4.D.3.
func (s *Store) Pick(id string) (*Record, error) {
	return s.pick(id)
}

func (s *Store) pick(id string) (*Record, error) {
	idx, slot, salt, err := s.codec.Decode(id)
	if err != nil {
		return nil, kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	recHdr, pageHdr, err := s.readRecordRaw(idx, slot)
	if err != nil {
		return nil, kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	if recHdr.AliasIndex != 0 {
		aliasID := s.codec.Encode(recHdr.AliasIndex, recHdr.AliasSlot, recHdr.AliasSalt)
		return s.pick(aliasID)
	}
	if recHdr.Salt != salt {
		return nil, kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	if recHdr.Deleted {
		return nil, kerr.NewRecordError(id, kerr.ErrAlreadyDeleted)
	}
	var payload []byte
	if pageHdr.Next == 0 {
		payload, err = s.readInPagePayload(idx, slot, recHdr.PayloadLen)
	} else {
		payload, err = s.readChainPayload(idx, recHdr.PayloadLen)
	}
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Header: *recHdr, Payload: payload}, nil
}

// --- Update ----------------------------------------------------------------

// Update replaces id's payload with data, returning the same id, per
// §4.D.4.
func (s *Store) Update(id string, data []byte) (string, error) {
	idx, slot, _, err := s.codec.Decode(id)
	if err != nil {
		return "", kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	headHdr, _, err := s.readRecordRaw(idx, slot)
	if err != nil {
		return "", kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}

	tailIdx, tailSlot := idx, slot
	tailHdr := headHdr
	var tailPage *PageHeader
	if headHdr.AliasIndex != 0 {
		tailIdx, tailSlot = headHdr.AliasIndex, headHdr.AliasSlot
		tailHdr, tailPage, err = s.readRecordRaw(tailIdx, tailSlot)
		if err != nil {
			return "", err
		}
	} else {
		_, tailPage, err = s.readRecordRaw(tailIdx, tailSlot)
		if err != nil {
			return "", err
		}
	}
	if tailHdr.Deleted {
		return "", kerr.NewRecordError(id, kerr.ErrAlreadyDeleted)
	}

	newLen := uint32(len(data))
	grows := newLen > tailHdr.MaxLen
	overflowTail := tailPage.Next != 0

	switch {
	case grows && !overflowTail:
		newID, err := s.putInternal(data, false)
		if err != nil {
			return "", err
		}
		if headHdr.AliasIndex != 0 {
			if err := s.markDeletedRaw(tailIdx, tailSlot); err != nil {
				return "", err
			}
		}
		nIdx, nSlot, nSalt, err := s.codec.Decode(newID)
		if err != nil {
			return "", err
		}
		if err := s.setAlias(idx, slot, nIdx, nSlot, nSalt); err != nil {
			return "", err
		}
		return id, nil
	case grows && overflowTail:
		if err := s.extendOverflowChain(tailIdx, tailHdr, data); err != nil {
			return "", err
		}
		return id, nil
	default:
		if err := s.rewriteInPlace(tailIdx, tailSlot, tailHdr, data); err != nil {
			return "", err
		}
		return id, nil
	}
}

func (s *Store) markDeletedRaw(idx, slot uint32) error {
	recHdr, _, err := s.readRecordRaw(idx, slot)
	if err != nil {
		return err
	}
	recHdr.Deleted = true
	return s.writeRecordHeaderAt(idx, slot, recHdr)
}

func (s *Store) setAlias(idx, slot, aliasIdx, aliasSlot, aliasSalt uint32) error {
	recHdr, _, err := s.readRecordRaw(idx, slot)
	if err != nil {
		return err
	}
	recHdr.AliasIndex = aliasIdx
	recHdr.AliasSlot = aliasSlot
	recHdr.AliasSalt = aliasSalt
	return s.writeRecordHeaderAt(idx, slot, recHdr)
}

// rewriteInPlace overwrites a record's bytes without changing its
// maxLength or its page allocation, per §4.D.4 step 5.
func (s *Store) rewriteInPlace(idx, slot uint32, oldHdr *RecordHeader, data []byte) error {
	newHdr := *oldHdr
	newHdr.PayloadLen = uint32(len(data))
	full := append(encodeRecordHeader(&newHdr), data...)

	pageHdr, err := s.readPageHeader(idx)
	if err != nil {
		return err
	}
	if pageHdr.Next == 0 {
		cellVal, err := s.readCell(idx, slot)
		if err != nil {
			return err
		}
		return s.writePagePayload(idx, cellVal, full)
	}

	chunkSize := int(s.root.PayloadSize) - CellSize
	curIdx := idx
	offset := 0
	for offset < len(full) {
		end := offset + chunkSize
		if end > len(full) {
			end = len(full)
		}
		if err := s.writePagePayload(curIdx, 0, full[offset:end]); err != nil {
			return err
		}
		offset = end
		if offset < len(full) {
			h, err := s.readPageHeader(curIdx)
			if err != nil {
				return err
			}
			curIdx = h.Next
		}
	}
	return nil
}

// extendOverflowChain rewrites an overflow-tail record that has grown
// beyond its maxLength, appending new overflow pages as needed and
// raising maxLength, per §4.D.4 step 4.
func (s *Store) extendOverflowChain(idx uint32, oldHdr *RecordHeader, data []byte) error {
	newHdr := *oldHdr
	newHdr.PayloadLen = uint32(len(data))
	if uint32(len(data)) > newHdr.MaxLen {
		newHdr.MaxLen = uint32(len(data))
	}
	full := append(encodeRecordHeader(&newHdr), data...)
	chunkSize := int(s.root.PayloadSize) - CellSize

	var chain []uint32
	for cur := idx; ; {
		chain = append(chain, cur)
		h, err := s.readPageHeader(cur)
		if err != nil {
			return err
		}
		if h.Next == 0 {
			break
		}
		cur = h.Next
	}

	offset := 0
	for i := 0; offset < len(full); i++ {
		var curIdx uint32
		if i < len(chain) {
			curIdx = chain[i]
		} else {
			newIdx, _, err := s.appendPage(PageOverflow)
			if err != nil {
				return err
			}
			chain = append(chain, newIdx)
			curIdx = newIdx
		}
		end := offset + chunkSize
		if end > len(full) {
			end = len(full)
		}
		last := end == len(full)
		var nextIdx uint32
		if !last {
			if i+1 < len(chain) {
				nextIdx = chain[i+1]
			} else {
				ni, _, err := s.appendPage(PageOverflow)
				if err != nil {
					return err
				}
				chain = append(chain, ni)
				nextIdx = ni
			}
		}
		if err := s.writePagePayload(curIdx, 0, full[offset:end]); err != nil {
			return err
		}
		pageType := PageOverflow
		if i == 0 {
			pageType = PageInternal
		}
		h := &PageHeader{Type: pageType, Index: curIdx, Next: nextIdx, Count: 1, Free: 0}
		if err := s.writePageHeader(h); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

// --- Delete / Exists / GetRecords -----------------------------------------

// Delete marks id's head record as deleted, per §4.D.5.
func (s *Store) Delete(id string) error {
	idx, slot, salt, err := s.codec.Decode(id)
	if err != nil {
		return kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	recHdr, _, err := s.readRecordRaw(idx, slot)
	if err != nil {
		return kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	if recHdr.Salt != salt {
		return kerr.NewRecordError(id, kerr.ErrInvalidRecord)
	}
	if recHdr.Deleted {
		return kerr.NewRecordError(id, kerr.ErrAlreadyDeleted)
	}
	recHdr.Deleted = true
	if err := s.writeRecordHeaderAt(idx, slot, recHdr); err != nil {
		return err
	}
	s.root.Count--
	return s.writeRoot()
}

// Exists reports whether id resolves to a live record, without following
// any alias, per §4.D.6.
func (s *Store) Exists(id string) (bool, error) {
	idx, slot, salt, err := s.codec.Decode(id)
	if err != nil {
		return false, nil
	}
	recHdr, _, err := s.readRecordRaw(idx, slot)
	if err != nil {
		return false, nil
	}
	if recHdr.Salt != salt || recHdr.Deleted {
		return false, nil
	}
	return true, nil
}

// GetRecords returns every record (live or deleted) stored in the head
// page of the overflow chain that contains pageIndex, per §4.D.7.
func (s *Store) GetRecords(pageIndex uint32) ([]Record, error) {
	headIdx := pageIndex
	for headIdx > 1 {
		h, err := s.readPageHeader(headIdx)
		if err != nil {
			return nil, err
		}
		if h.Type != PageOverflow {
			break
		}
		headIdx--
	}
	h, err := s.readPageHeader(headIdx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, h.Count)
	for slot := uint32(1); slot <= h.Count; slot++ {
		recHdr, _, err := s.readRecordRaw(headIdx, slot)
		if err != nil {
			return nil, err
		}
		id := s.codec.Encode(recHdr.PageIndex, recHdr.Slot, recHdr.Salt)
		var payload []byte
		if h.Next == 0 {
			payload, err = s.readInPagePayload(headIdx, slot, recHdr.PayloadLen)
		} else {
			payload, err = s.readChainPayload(headIdx, recHdr.PayloadLen)
		}
		if err != nil {
			return nil, err
		}
		records = append(records, Record{ID: id, Header: *recHdr, Payload: payload})
	}
	return records, nil
}
