// Package metadata implements the durable, versioned binary encoding of a
// partition map snapshot: the cluster controller's unit of publication.
// It ports eventql's metadata_file.cc to Go, fixing the one known bug in
// the original (decodeServerList's three sequential calls were all
// checked against the first call's status) and adding version-3
// FINITE-flags framing.
package metadata

import (
	"bytes"
	"crypto/sha1"
	"io"

	"github.com/getlantern/golog"

	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/encoding"
	"github.com/getlantern/zenodb/errkind"
)

var log = golog.LoggerFor("metadata")

// CurrentFormatVersion is the format version this package writes. Readers
// accept any version up to and including this one.
const CurrentFormatVersion = 3

// Flag bits, stored as a varuint when FormatVersion >= 3.
const (
	// FlagFinite marks a file whose partition map entries all carry an
	// explicit End, so point-miss detection (GetPartitionMapAt) works.
	FlagFinite uint64 = 1 << 0
)

// File is an immutable, versioned snapshot of a table's partition map.
// It is identified by (TransactionID, TransactionSeq); a server replaces
// its loaded File only with one whose sequence is strictly greater.
type File struct {
	Flags          uint64
	TransactionID  common.SHA1Hash
	TransactionSeq uint64
	KeyspaceType   common.KeyspaceType
	PartitionMap   []common.PartitionMapEntry
}

// HasFinitePartitions reports whether this file's entries carry explicit
// End bounds.
func (f *File) HasFinitePartitions() bool {
	return f.Flags&FlagFinite != 0
}

func (f *File) compareKeys(a, b string) int {
	return common.CompareKeys(f.KeyspaceType, a, b)
}

// Lookup binary-searches the partition map for the largest entry whose
// Begin <= key, returning its index. ok is false only when the map is
// empty.
func (f *File) Lookup(key string) (idx int, ok bool) {
	if len(f.PartitionMap) == 0 {
		return 0, false
	}

	low, high := 0, len(f.PartitionMap)-1
	for low != high {
		mid := (low + high + 1) / 2
		cmp := f.compareKeys(f.PartitionMap[mid].Begin, key)
		switch {
		case cmp < 0:
			low = mid
		case cmp > 0:
			if mid == 0 {
				return 0, true
			}
			high = mid - 1
		default:
			return mid, true
		}
	}

	return low, true
}

// GetPartitionMapAt returns the entry whose range contains key. ok is
// false when the map is empty or key is empty (whether or not the file is
// FINITE), and, when the file is FINITE, when key falls outside every
// entry's [Begin, End) range.
func (f *File) GetPartitionMapAt(key string) (idx int, ok bool) {
	if key == "" || len(f.PartitionMap) == 0 {
		return 0, false
	}

	idx, ok = f.Lookup(key)
	if !ok {
		return 0, false
	}

	if !f.HasFinitePartitions() {
		return idx, true
	}

	e := &f.PartitionMap[idx]
	if f.compareKeys(e.Begin, key) <= 0 && f.compareKeys(e.End, key) > 0 {
		return idx, true
	}
	return 0, false
}

// GetPartitionMapRangeBegin returns the index of the first entry that may
// intersect [begin, +inf). An empty begin (or an empty map) means "start
// from the beginning" regardless of the FINITE flag.
func (f *File) GetPartitionMapRangeBegin(begin string) int {
	if begin == "" || len(f.PartitionMap) == 0 {
		return 0
	}

	idx, ok := f.Lookup(begin)
	if !ok {
		return 0
	}
	if !f.HasFinitePartitions() {
		return idx
	}

	e := &f.PartitionMap[idx]
	if f.compareKeys(e.End, begin) > 0 {
		return idx
	}
	return idx + 1
}

// GetPartitionMapRangeEnd returns the index one past the last entry that
// may intersect (-inf, end). An empty end (or an empty map) means "go to
// the end of the map".
func (f *File) GetPartitionMapRangeEnd(end string) int {
	if end == "" || len(f.PartitionMap) == 0 {
		return len(f.PartitionMap)
	}

	idx, ok := f.Lookup(end)
	if !ok {
		return len(f.PartitionMap)
	}

	e := &f.PartitionMap[idx]
	if f.compareKeys(e.Begin, end) >= 0 {
		return idx
	}
	return idx + 1
}

// ComputeChecksum returns the SHA-1 digest of the canonical encoding,
// used to confirm every replica agrees on byte-for-byte content.
func (f *File) ComputeChecksum() (common.SHA1Hash, error) {
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		return common.SHA1Hash{}, err
	}
	return sha1.Sum(buf.Bytes()), nil
}

func decodeServerList(r *encoding.Reader, version uint32) ([]common.PartitionPlacement, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	servers := make([]common.PartitionPlacement, 0, n)
	for i := uint64(0); i < n; i++ {
		serverID, err := r.ReadLenencString()
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		placementID := raw
		if version < 2 {
			// version 1 carried the field but it was meaningless.
			placementID = 0
		}
		servers = append(servers, common.PartitionPlacement{ServerID: serverID, PlacementID: placementID})
	}
	return servers, nil
}

func encodeServerList(w *encoding.Writer, servers []common.PartitionPlacement) error {
	if err := w.WriteVarUint(uint64(len(servers))); err != nil {
		return err
	}
	for _, s := range servers {
		if err := w.WriteLenencString(s.ServerID); err != nil {
			return err
		}
		if err := w.WriteUint64(s.PlacementID); err != nil {
			return err
		}
	}
	return nil
}

func readHash(r *encoding.Reader) (common.SHA1Hash, error) {
	var h common.SHA1Hash
	b, err := r.ReadBytes(common.HashSize)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// Decode parses a File from r, failing with an errkind.IO error on
// unknown version, truncation, or invalid lengths.
func (f *File) Decode(in io.Reader) error {
	r := encoding.NewReader(in)

	version, err := r.ReadUint32()
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}
	if version > CurrentFormatVersion {
		return errkind.IOErrorf("invalid file format version: %d", version)
	}

	flags := uint64(0)
	if version >= 3 {
		flags, err = r.ReadVarUint()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}
	}

	transactionID, err := readHash(r)
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}

	transactionSeq, err := r.ReadUint64()
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}

	keyspaceByte, err := r.ReadUint8()
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}

	pmapSize, err := r.ReadVarUint()
	if err != nil {
		return errkind.Wrap(errkind.IO, err)
	}

	pmap := make([]common.PartitionMapEntry, 0, pmapSize)
	for i := uint64(0); i < pmapSize; i++ {
		var e common.PartitionMapEntry

		e.Begin, err = r.ReadLenencString()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		if flags&FlagFinite != 0 {
			e.End, err = r.ReadLenencString()
			if err != nil {
				return errkind.Wrap(errkind.IO, err)
			}
		}

		e.PartitionID, err = readHash(r)
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		if e.Servers, err = decodeServerList(r, version); err != nil {
			return errkind.Wrap(errkind.IO, err)
		}
		if e.ServersJoining, err = decodeServerList(r, version); err != nil {
			return errkind.Wrap(errkind.IO, err)
		}
		if e.ServersLeaving, err = decodeServerList(r, version); err != nil {
			return errkind.Wrap(errkind.IO, err)
		}

		splittingByte, err := r.ReadUint8()
		if err != nil {
			return errkind.Wrap(errkind.IO, err)
		}
		e.Splitting = splittingByte > 0

		if e.Splitting {
			if version == 1 {
				// Legacy v1 split payload: one lenenc string plus two
				// server lists, none of it in the new shape. Consume it
				// and drop the split state entirely.
				e.Splitting = false
				if _, err := r.ReadLenencString(); err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
				if _, err := decodeServerList(r, version); err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
				if _, err := decodeServerList(r, version); err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
			} else {
				e.SplitPoint, err = r.ReadLenencString()
				if err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
				e.SplitPartitionIDLow, err = readHash(r)
				if err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
				e.SplitPartitionIDHigh, err = readHash(r)
				if err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
				if e.SplitServersLow, err = decodeServerList(r, version); err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
				if e.SplitServersHigh, err = decodeServerList(r, version); err != nil {
					return errkind.Wrap(errkind.IO, err)
				}
			}
		}

		pmap = append(pmap, e)
	}

	f.Flags = flags
	f.TransactionID = transactionID
	f.TransactionSeq = transactionSeq
	f.KeyspaceType = common.KeyspaceType(keyspaceByte)
	f.PartitionMap = pmap
	log.Debugf("Decoded metadata file txn=%x seq=%d version=%d entries=%d", transactionID, transactionSeq, version, len(pmap))
	return nil
}

// Encode serializes f to out at CurrentFormatVersion.
func (f *File) Encode(out io.Writer) error {
	w := encoding.NewWriter(out)

	if err := w.WriteUint32(CurrentFormatVersion); err != nil {
		return err
	}
	if err := w.WriteVarUint(f.Flags); err != nil {
		return err
	}
	if err := w.WriteBytes(f.TransactionID[:]); err != nil {
		return err
	}
	if err := w.WriteUint64(f.TransactionSeq); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(f.KeyspaceType)); err != nil {
		return err
	}
	if err := w.WriteVarUint(uint64(len(f.PartitionMap))); err != nil {
		return err
	}

	finite := f.Flags&FlagFinite != 0
	for _, e := range f.PartitionMap {
		if err := w.WriteLenencString(e.Begin); err != nil {
			return err
		}
		if finite {
			if err := w.WriteLenencString(e.End); err != nil {
				return err
			}
		}
		if err := w.WriteBytes(e.PartitionID[:]); err != nil {
			return err
		}
		if err := encodeServerList(w, e.Servers); err != nil {
			return err
		}
		if err := encodeServerList(w, e.ServersJoining); err != nil {
			return err
		}
		if err := encodeServerList(w, e.ServersLeaving); err != nil {
			return err
		}

		splitting := uint8(0)
		if e.Splitting {
			splitting = 1
		}
		if err := w.WriteUint8(splitting); err != nil {
			return err
		}
		if e.Splitting {
			if err := w.WriteLenencString(e.SplitPoint); err != nil {
				return err
			}
			if err := w.WriteBytes(e.SplitPartitionIDLow[:]); err != nil {
				return err
			}
			if err := w.WriteBytes(e.SplitPartitionIDHigh[:]); err != nil {
				return err
			}
			if err := encodeServerList(w, e.SplitServersLow); err != nil {
				return err
			}
			if err := encodeServerList(w, e.SplitServersHigh); err != nil {
				return err
			}
		}
	}

	return nil
}
