// Package common holds the wire-level vocabulary shared by the metadata
// file, the in-memory partition map, and the replication protocol:
// keyspace types, partition identifiers and placements, and the pure key
// encode/compare/decode functions that both the metadata decoder and any
// future partition splitter need independent of a loaded file.
package common

import (
	"encoding/binary"
	"strconv"
)

// KeyspaceType is the ordering discipline a table declares for its
// partition keys.
type KeyspaceType uint8

const (
	// KeyspaceString orders keys by byte-lexicographic comparison.
	KeyspaceString KeyspaceType = 0
	// KeyspaceUint64 treats keys as 8 raw little-endian bytes compared as
	// unsigned integers. Empty or malformed keys sort as zero.
	KeyspaceUint64 KeyspaceType = 1
)

func (t KeyspaceType) String() string {
	switch t {
	case KeyspaceString:
		return "STRING"
	case KeyspaceUint64:
		return "UINT64"
	default:
		return "UNKNOWN"
	}
}

// CompareKeys orders a and b under the keyspace's comparator. It returns
// a negative number if a < b, zero if equal, and a positive number if
// a > b.
func CompareKeys(t KeyspaceType, a, b string) int {
	switch t {
	case KeyspaceUint64:
		au := decodeUint64Key(a)
		bu := decodeUint64Key(b)
		switch {
		case au < bu:
			return -1
		case au > bu:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
}

func decodeUint64Key(key string) uint64 {
	if len(key) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64([]byte(key))
}

// EncodePartitionKey converts a human-supplied key into its on-disk
// representation for the given keyspace type. For KeyspaceUint64, key is
// parsed as a base-10 integer and re-emitted as 8 little-endian bytes; an
// empty key encodes as eight zero bytes.
func EncodePartitionKey(t KeyspaceType, key string) (string, error) {
	switch t {
	case KeyspaceUint64:
		var v uint64
		if key != "" {
			parsed, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				return "", err
			}
			v = parsed
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		return string(b[:]), nil
	default:
		return key, nil
	}
}

// DecodePartitionKey converts an on-disk key back into its human form.
// For KeyspaceUint64, a key of any length other than 8 decodes to "".
func DecodePartitionKey(t KeyspaceType, key string) string {
	switch t {
	case KeyspaceUint64:
		if len(key) != 8 {
			return ""
		}
		return strconv.FormatUint(binary.LittleEndian.Uint64([]byte(key)), 10)
	default:
		return key
	}
}

// HashSize is the width, in bytes, of a SHA-1-sized opaque token: both
// partition ids and record ids are this shape.
const HashSize = 20

// SHA1Hash is a 20-byte content-addressed token, the shape of both
// partition ids and record ids on the wire.
type SHA1Hash [HashSize]byte

// String renders the hash as lowercase hex, matching the 40-hex form
// used on the replication wire (partition_sha1, record_id).
func (p SHA1Hash) String() string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, HashSize*2)
	for _, b := range p {
		out = append(out, hexdigits[b>>4], hexdigits[b&0xf])
	}
	return string(out)
}

// PartitionID is a 20-byte content-addressed partition identifier.
type PartitionID = SHA1Hash

// PartitionPlacement assigns a partition to a server. PlacementID
// distinguishes successive placements of the same partition on the same
// server; the legacy (format version 1) on-disk shape carried no
// meaningful placement id and always round-trips as zero.
type PartitionPlacement struct {
	ServerID    string
	PlacementID uint64
}
