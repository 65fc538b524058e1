// Package recordcodec defines the narrow interfaces this component needs
// from the columnar (CSTable) file reader and its record materializer —
// both treated as external collaborators assumed to provide
// random-access record iteration with per-column cursors. It also
// carries the one piece of that reader worth porting directly: the
// raw-accessor-plus-string/buffer-convenience-method split from eventql's
// sstable Cursor (cursor.cc), expressed here as RawCursor plus helper
// functions rather than methods, since Go interfaces can't carry default
// implementations.
package recordcodec

import "github.com/getlantern/bytemap"

// ColumnReader reads successive values from one column of a CSTable,
// advancing one record at a time. rlvl/dlvl are the repetition/definition
// levels Dremel-style columnar formats use to reconstruct record
// structure; callers of the hidden __lsm_* columns only need the value.
type ColumnReader interface {
	ReadUnsignedInt() (rlvl, dlvl uint64, value uint64, err error)
	ReadString() (rlvl, dlvl uint64, value string, err error)
}

// RawCursor is the minimal accessor a CSTable's positional cursor must
// provide — raw key/value bytes at the current position. Ported from
// eventql's sstable::Cursor::getKey/getData.
type RawCursor interface {
	Key() ([]byte, error)
	Data() ([]byte, error)
}

// KeyString returns c's current key decoded as a string, the Go
// equivalent of eventql's Cursor::getKeyString convenience wrapper.
func KeyString(c RawCursor) (string, error) {
	b, err := c.Key()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DataString returns c's current value decoded as a string, the Go
// equivalent of eventql's Cursor::getDataString convenience wrapper.
func DataString(c RawCursor) (string, error) {
	b, err := c.Data()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Row is a materialized record: its decoded columns (keyed by column
// name) plus whatever hidden columns the reader surfaced alongside it.
// It reuses bytemap.ByteMap, the same compact column-name-keyed encoding
// zenodb uses for materialized dimension rows, rather than inventing a
// new container.
type Row struct {
	Columns bytemap.ByteMap
}

// Schema re-encodes a materialized Row back into the wire payload format
// a table's schema defines, the Go analogue of eventql's
// MessageEncoder::encode(record, schema, &buf).
type Schema interface {
	Encode(row Row) ([]byte, error)
}

// Materializer reconstructs rows from a CSTable reader bound to a given
// schema, exposing only what the replication streamer needs: skip past a
// record without decoding it, or fully materialize the next one.
type Materializer interface {
	SkipRecord() error
	NextRecord() (Row, error)
}

// CSTableReader is the narrow slice of a columnar file reader this
// component depends on: record count plus named column cursors for the
// three hidden sequence/id/version columns every LSM-backed table
// carries.
type CSTableReader interface {
	NumRecords() int
	ColumnReader(name string) (ColumnReader, error)
	Materializer(schema Schema) Materializer
}

// Hidden column names every LSM-backed partition's CSTable carries
// alongside the materialized row.
const (
	ColumnLSMID       = "__lsm_id"
	ColumnLSMVersion  = "__lsm_version"
	ColumnLSMSequence = "__lsm_sequence"
)
