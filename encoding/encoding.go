// Package encoding provides the primitive binary encode/decode operations
// used by the metadata file format: fixed-width big-endian integers,
// unsigned base-128 varints, and length-prefixed ("lenenc") byte strings.
// It plays the role that InputStream/OutputStream play in the original
// eventql C++ sources (metadata_file.cc): callers read and write fields
// in a fixed order and get an IO-ish error the moment something doesn't
// fit.
package encoding

import (
	"encoding/binary"
	"io"
)

// Width64bits is the encoded width, in bytes, of a raw (non-varint) u64
// field, as read by ReadUint64 and written by WriteUint64.
const Width64bits = 8

// Reader sequentially decodes fields from an underlying io.Reader. All
// multi-byte fixed-width fields are big-endian; Read* methods return an
// error the instant the underlying reader runs short, so callers can
// translate any error from a Reader into an IO_ERROR without inspecting
// the cause.
type Reader struct {
	r io.Reader
}

// NewReader wraps r for sequential field decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) fill(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.fill(Width64bits)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadVarUint reads an unsigned base-128 varint (LSB-first groups, MSB of
// each byte signaling continuation — the same convention as
// encoding/binary.Uvarint).
func (r *Reader) ReadVarUint() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; ; i++ {
		b, err := r.fill(1)
		if err != nil {
			return 0, err
		}
		if b[0] < 0x80 {
			if i > 9 || (i == 9 && b[0] > 1) {
				return 0, io.ErrUnexpectedEOF
			}
			return x | uint64(b[0])<<s, nil
		}
		x |= uint64(b[0]&0x7f) << s
		s += 7
	}
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.fill(n)
}

// ReadLenencString reads a varuint length followed by that many raw
// bytes.
func (r *Reader) ReadLenencString() (string, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return "", err
	}
	b, err := r.fill(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer sequentially encodes fields to an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for sequential field encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) error {
	_, err := w.w.Write([]byte{v})
	return err
}

// WriteUint32 writes a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.w.Write(b[:])
	return err
}

// WriteUint64 writes a big-endian uint64.
func (w *Writer) WriteUint64(v uint64) error {
	var b [Width64bits]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.w.Write(b[:])
	return err
}

// WriteVarUint writes v as an unsigned base-128 varint.
func (w *Writer) WriteVarUint(v uint64) error {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	_, err := w.w.Write(b[:n])
	return err
}

// WriteBytes writes raw bytes verbatim.
func (w *Writer) WriteBytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

// WriteLenencString writes a varuint length prefix followed by s's bytes.
func (w *Writer) WriteLenencString(s string) error {
	if err := w.WriteVarUint(uint64(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}
