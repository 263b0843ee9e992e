package dex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"
)

// stateSegmentID names the segment carrying everything that is not a book:
// counters, vaults and account records.
const stateSegmentID = "_state"

// LedgerSnapshot is one (account, mint) balance pair inside a snapshot.
type LedgerSnapshot struct {
	Mint      MintID `json:"mint"`
	Available uint64 `json:"available_balance"`
	Locked    uint64 `json:"locked_balance"`
}

// AccountSnapshot contains the full persisted state of one account.
type AccountSnapshot struct {
	ID             AccountID         `json:"id"`
	Ledgers        []LedgerSnapshot  `json:"ledgers"`
	Orders         []orderRef        `json:"orders"`
	Events         []SettlementEvent `json:"events"`
	EventTokenBuy  MintID            `json:"event_token_buy,omitempty"`
	EventTokenSell MintID            `json:"event_token_sell,omitempty"`
}

// VaultSnapshot is one custody vault total.
type VaultSnapshot struct {
	Mint  MintID `json:"mint"`
	Total uint64 `json:"total_balance"`
}

// StateSnapshot is the non-book engine state.
type StateSnapshot struct {
	LastOrderID uint64            `json:"last_order_id"`
	LogSeqID    uint64            `json:"log_seq_id"`
	TradeID     uint64            `json:"trade_id"`
	Vaults      []VaultSnapshot   `json:"vaults"`
	Accounts    []AccountSnapshot `json:"accounts"`
}

// BookSnapshot contains the full state of a single pair's book.
type BookSnapshot struct {
	Base  MintID  `json:"base"`
	Quote MintID  `json:"quote"`
	Bids  []Order `json:"bids"` // best price first
	Asks  []Order `json:"asks"` // best price first
}

// SnapshotMetadata holds the global metadata for a snapshot (stored in metadata.json).
type SnapshotMetadata struct {
	SchemaVersion    int    `json:"schema_version"`
	Timestamp        int64  `json:"timestamp"` // Unix Nano
	EngineVersion    string `json:"engine_version"`
	SnapshotChecksum uint32 `json:"snapshot_checksum"` // CRC32 of the entire snapshot.bin file
}

// SnapshotFileFooter is the footer structure stored at the end of snapshot.bin.
// Layout: [SegmentData...][FooterJSON][FooterLength(4 bytes)]
type SnapshotFileFooter struct {
	Segments []SnapshotSegment `json:"segments"`
}

// SnapshotSegment indexes one JSON blob inside snapshot.bin.
type SnapshotSegment struct {
	ID       string `json:"id"` // stateSegmentID or "BASE/QUOTE"
	Offset   int64  `json:"offset"`
	Length   int64  `json:"length"`
	Checksum uint32 `json:"checksum"` // CRC32 of this segment
}

// TakeSnapshot captures a consistent snapshot of the whole engine and writes
// it to the specified directory as `snapshot.bin` plus `metadata.json`. The
// directory is replaced atomically via a temp-dir rename.
func (e *DexEngine) TakeSnapshot(outputDir string) (*SnapshotMetadata, error) {
	e.mu.Lock()
	segments := e.collectSegments()
	e.mu.Unlock()

	tmpDir := outputDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, err
	}

	binPath := filepath.Join(tmpDir, "snapshot.bin")
	binFile, err := os.Create(binPath)
	if err != nil {
		return nil, err
	}

	index := make([]SnapshotSegment, 0, len(segments))
	currentOffset := int64(0)

	for _, seg := range segments {
		data, err := json.Marshal(seg.payload)
		if err != nil {
			binFile.Close()
			return nil, err
		}
		n, err := binFile.Write(data)
		if err != nil {
			binFile.Close()
			return nil, err
		}
		index = append(index, SnapshotSegment{
			ID:       seg.id,
			Offset:   currentOffset,
			Length:   int64(n),
			Checksum: crc32.ChecksumIEEE(data),
		})
		currentOffset += int64(n)
	}

	footerData, err := json.Marshal(SnapshotFileFooter{Segments: index})
	if err != nil {
		binFile.Close()
		return nil, err
	}
	if _, err := binFile.Write(footerData); err != nil {
		binFile.Close()
		return nil, err
	}
	if len(footerData) > 4294967295 {
		binFile.Close()
		return nil, errors.New("footer too large")
	}
	if err := binary.Write(binFile, binary.BigEndian, uint32(len(footerData))); err != nil {
		binFile.Close()
		return nil, err
	}
	if err := binFile.Sync(); err != nil {
		binFile.Close()
		return nil, err
	}
	if err := binFile.Close(); err != nil {
		return nil, err
	}

	snapshotChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}

	meta := &SnapshotMetadata{
		SchemaVersion:    SnapshotSchemaVersion,
		Timestamp:        time.Now().UnixNano(),
		EngineVersion:    EngineVersion,
		SnapshotChecksum: snapshotChecksum,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "metadata.json"), metaBytes, 0600); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(outputDir); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, outputDir); err != nil {
		return nil, err
	}
	return meta, nil
}

type snapshotPayload struct {
	id      string
	payload any
}

// collectSegments serializes engine state into ordered segments: the state
// segment first, then one per registered pair. Caller holds the engine lock.
func (e *DexEngine) collectSegments() []snapshotPayload {
	state := StateSnapshot{
		LastOrderID: e.seq.Last(),
		LogSeqID:    e.logSeq,
		TradeID:     e.tradeSeq,
	}
	for _, v := range e.vaults {
		state.Vaults = append(state.Vaults, VaultSnapshot{Mint: v.Mint, Total: v.Total})
	}
	for _, acct := range e.accounts {
		as := AccountSnapshot{
			ID:     acct.id,
			Orders: acct.orders.list(),
			Events: acct.events.list(),
		}
		for _, mint := range acct.mints.list() {
			l := acct.ledgers[mint]
			as.Ledgers = append(as.Ledgers, LedgerSnapshot{
				Mint:      mint,
				Available: l.Available,
				Locked:    l.Locked,
			})
		}
		if acct.events.inUse {
			as.EventTokenBuy = acct.events.tokenBuy
			as.EventTokenSell = acct.events.tokenSell
		}
		state.Accounts = append(state.Accounts, as)
	}

	segments := []snapshotPayload{{id: stateSegmentID, payload: state}}
	for _, book := range e.books {
		segments = append(segments, snapshotPayload{
			id: string(book.Base) + "/" + string(book.Quote),
			payload: BookSnapshot{
				Base:  book.Base,
				Quote: book.Quote,
				Bids:  book.bids.toSnapshot(),
				Asks:  book.asks.toSnapshot(),
			},
		})
	}
	return segments
}

// RestoreFromSnapshot rebuilds the entire engine state from a snapshot
// directory, verifying the file and per-segment checksums first. Returns the
// snapshot metadata.
func (e *DexEngine) RestoreFromSnapshot(inputDir string) (*SnapshotMetadata, error) {
	metaBytes, err := os.ReadFile(filepath.Join(inputDir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta SnapshotMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, err
	}
	if meta.SchemaVersion != SnapshotSchemaVersion {
		return nil, errors.New("unsupported snapshot schema version")
	}

	binPath := filepath.Join(inputDir, "snapshot.bin")
	binFile, err := os.Open(binPath)
	if err != nil {
		return nil, err
	}
	defer binFile.Close()

	fileChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}
	if fileChecksum != meta.SnapshotChecksum {
		return nil, errors.New("snapshot.bin checksum mismatch")
	}

	stat, err := binFile.Stat()
	if err != nil {
		return nil, err
	}
	fileSize := stat.Size()

	footerLenBytes := make([]byte, 4)
	if _, err := binFile.ReadAt(footerLenBytes, fileSize-4); err != nil {
		return nil, err
	}
	footerLen := binary.BigEndian.Uint32(footerLenBytes)

	footerBytes := make([]byte, footerLen)
	if _, err := binFile.ReadAt(footerBytes, fileSize-4-int64(footerLen)); err != nil {
		return nil, err
	}
	var footer SnapshotFileFooter
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.accounts = make(map[AccountID]*account)
	e.vaults = make(map[MintID]*VaultLedger)
	e.books = make(map[PairKey]*OrderBook)

	for _, segment := range footer.Segments {
		segmentData := make([]byte, segment.Length)
		if _, err := binFile.ReadAt(segmentData, segment.Offset); err != nil {
			return nil, err
		}
		if crc32.ChecksumIEEE(segmentData) != segment.Checksum {
			return nil, errors.New("checksum mismatch for segment " + segment.ID)
		}

		if segment.ID == stateSegmentID {
			var state StateSnapshot
			if err := json.Unmarshal(segmentData, &state); err != nil {
				return nil, err
			}
			if err := e.restoreState(&state); err != nil {
				return nil, err
			}
			continue
		}

		var snap BookSnapshot
		if err := json.Unmarshal(segmentData, &snap); err != nil {
			return nil, err
		}
		book := newOrderBook(snap.Base, snap.Quote)
		for _, o := range snap.Bids {
			if err := book.bids.insert(o); err != nil {
				return nil, err
			}
		}
		for _, o := range snap.Asks {
			if err := book.asks.insert(o); err != nil {
				return nil, err
			}
		}
		e.books[NewPairKey(snap.Base, snap.Quote)] = book
	}

	return &meta, nil
}

func (e *DexEngine) restoreState(state *StateSnapshot) error {
	e.seq.restore(state.LastOrderID)
	e.logSeq = state.LogSeqID
	e.tradeSeq = state.TradeID

	for _, v := range state.Vaults {
		e.vaults[v.Mint] = &VaultLedger{Mint: v.Mint, Total: v.Total}
	}
	for _, as := range state.Accounts {
		acct := &account{
			id:      as.ID,
			ledgers: make(map[MintID]*TokenLedger),
		}
		for _, ls := range as.Ledgers {
			if err := acct.mints.add(ls.Mint); err != nil {
				return err
			}
			acct.ledgers[ls.Mint] = &TokenLedger{
				Owner:     as.ID,
				Mint:      ls.Mint,
				Available: ls.Available,
				Locked:    ls.Locked,
			}
		}
		for _, ref := range as.Orders {
			if err := acct.orders.add(ref); err != nil {
				return err
			}
		}
		if len(as.Events) > 0 {
			if err := acct.events.open(as.EventTokenBuy, as.EventTokenSell); err != nil {
				return err
			}
			for _, ev := range as.Events {
				if err := acct.events.append(ev); err != nil {
					return err
				}
			}
		}
		e.accounts[as.ID] = acct
	}
	return nil
}

func calculateFileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
