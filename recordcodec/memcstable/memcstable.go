// Package memcstable provides an in-memory recordcodec.CSTableReader test
// double. Production CSTable reading is an external collaborator; this
// exists so replication tests don't need a real columnar file reader to
// exercise the streaming contract.
package memcstable

import (
	"fmt"

	"github.com/getlantern/bytemap"
	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/recordcodec"
)

// StoredRow is one row as it would physically sit in a flushed CSTable:
// the hidden LSM columns plus the payload the materializer would
// otherwise reconstruct from the table's regular columns.
type StoredRow struct {
	ID       common.SHA1Hash
	Version  uint64
	Sequence uint64
	Payload  []byte
}

// Table is a fixed, ordered set of StoredRows — append order is storage
// order, matching a real CSTable's emission order.
type Table struct {
	rows []StoredRow
}

// New builds a Table from rows in storage (append) order.
func New(rows ...StoredRow) *Table {
	return &Table{rows: rows}
}

// NumRecords implements recordcodec.CSTableReader.
func (t *Table) NumRecords() int { return len(t.rows) }

// ColumnReader implements recordcodec.CSTableReader for the three hidden
// LSM columns only; any other name is an error, since nothing here needs
// to read a table's regular data columns directly.
func (t *Table) ColumnReader(name string) (recordcodec.ColumnReader, error) {
	switch name {
	case recordcodec.ColumnLSMID:
		return &idColumn{t: t}, nil
	case recordcodec.ColumnLSMVersion:
		return &uintColumn{t: t, pick: func(r StoredRow) uint64 { return r.Version }}, nil
	case recordcodec.ColumnLSMSequence:
		return &uintColumn{t: t, pick: func(r StoredRow) uint64 { return r.Sequence }}, nil
	default:
		return nil, fmt.Errorf("memcstable: no such column %q", name)
	}
}

// Materializer implements recordcodec.CSTableReader. The schema is
// ignored: payloads are already fully encoded in the stored rows, so
// materializing just replays them and re-encoding is a no-op passthrough
// (see PassthroughSchema below, used by replication tests).
func (t *Table) Materializer(schema recordcodec.Schema) recordcodec.Materializer {
	return &materializer{t: t, schema: schema}
}

type idColumn struct {
	t   *Table
	pos int
}

func (c *idColumn) ReadUnsignedInt() (rlvl, dlvl uint64, value uint64, err error) {
	return 0, 0, 0, fmt.Errorf("memcstable: __lsm_id is a string column")
}

func (c *idColumn) ReadString() (rlvl, dlvl uint64, value string, err error) {
	if c.pos >= len(c.t.rows) {
		return 0, 0, "", fmt.Errorf("memcstable: read past end of column")
	}
	id := c.t.rows[c.pos].ID
	c.pos++
	return 0, 0, string(id[:]), nil
}

type uintColumn struct {
	t    *Table
	pos  int
	pick func(StoredRow) uint64
}

func (c *uintColumn) ReadUnsignedInt() (rlvl, dlvl uint64, value uint64, err error) {
	if c.pos >= len(c.t.rows) {
		return 0, 0, 0, fmt.Errorf("memcstable: read past end of column")
	}
	v := c.pick(c.t.rows[c.pos])
	c.pos++
	return 0, 0, v, nil
}

func (c *uintColumn) ReadString() (rlvl, dlvl uint64, value string, err error) {
	return 0, 0, "", fmt.Errorf("memcstable: column is not a string column")
}

type materializer struct {
	t      *Table
	schema recordcodec.Schema
	pos    int
}

func (m *materializer) SkipRecord() error {
	if m.pos >= len(m.t.rows) {
		return fmt.Errorf("memcstable: skip past end")
	}
	m.pos++
	return nil
}

func (m *materializer) NextRecord() (recordcodec.Row, error) {
	if m.pos >= len(m.t.rows) {
		return recordcodec.Row{}, fmt.Errorf("memcstable: read past end")
	}
	row := m.t.rows[m.pos]
	m.pos++
	return recordcodec.Row{Columns: bytemap.ByteMap(row.Payload)}, nil
}

// PassthroughSchema is a recordcodec.Schema that just returns the row's
// raw bytes unchanged, for tests that don't care about real column
// encoding.
type PassthroughSchema struct{}

// Encode implements recordcodec.Schema.
func (PassthroughSchema) Encode(row recordcodec.Row) ([]byte, error) {
	return []byte(row.Columns), nil
}
