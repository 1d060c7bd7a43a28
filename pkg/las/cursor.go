package las

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Cursor is a seekable little-endian field reader over an io.ReaderAt.
// Seeking past the end is allowed; the next read fails with ErrTruncatedStream.
// A Cursor is not safe for concurrent use, Clone it instead.
type Cursor struct {
	src  io.ReaderAt
	size int64
	pos  int64
	buf  [8]byte
}

// NewCursor returns a cursor at offset 0. size is the total length of src,
// or -1 when unknown.
func NewCursor(src io.ReaderAt, size int64) *Cursor {
	return &Cursor{src: src, size: size}
}

// sourceSize finds the length of src without reading it, or -1.
func sourceSize(src io.ReaderAt) (int64, error) {
	switch s := src.(type) {
	case interface{ Size() int64 }:
		return s.Size(), nil
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := s.Stat()
		if err != nil {
			return 0, errors.Wrap(err, "stat las source")
		}
		return fi.Size(), nil
	case io.Seeker:
		cur, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, errors.Wrap(err, "seek las source")
		}
		end, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, errors.Wrap(err, "seek las source")
		}
		if _, err := s.Seek(cur, io.SeekStart); err != nil {
			return 0, errors.Wrap(err, "seek las source")
		}
		return end, nil
	}
	return -1, nil
}

func (c *Cursor) Seek(offset int64) {
	c.pos = offset
}

func (c *Cursor) Pos() int64 {
	return c.pos
}

// Remaining returns the number of bytes after the current position, 0 when
// positioned past the end, or -1 when the source size is unknown.
func (c *Cursor) Remaining() int64 {
	if c.size < 0 {
		return -1
	}
	if c.pos >= c.size {
		return 0
	}
	return c.size - c.pos
}

// Clone returns an independent cursor over the same source and position.
func (c *Cursor) Clone() *Cursor {
	return &Cursor{src: c.src, size: c.size, pos: c.pos}
}

func (c *Cursor) Skip(n int64) {
	c.pos += n
}

// ReadFull fills p from the current position and advances past it.
func (c *Cursor) ReadFull(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if c.pos < 0 {
		return errors.Errorf("las cursor at negative offset %d", c.pos)
	}
	if c.size >= 0 && c.pos > c.size-int64(len(p)) {
		return errors.Wrapf(ErrTruncatedStream, "need %d bytes at offset %d, have %d", len(p), c.pos, c.Remaining())
	}
	n, err := c.src.ReadAt(p, c.pos)
	if n < len(p) {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.Wrapf(ErrTruncatedStream, "need %d bytes at offset %d, got %d", len(p), c.pos, n)
		}
		return errors.Wrapf(err, "read %d bytes at offset %d", len(p), c.pos)
	}
	c.pos += int64(len(p))
	return nil
}

// chunkSize bounds the allocation ahead of data actually read when the source
// size is unknown.
const chunkSize = 1 << 20

// ReadBytes reads n bytes. On a source of unknown size a large n is read in
// chunks, so a bogus length fails with ErrTruncatedStream before it is
// allocated in full.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrTruncatedStream, "negative length %d at offset %d", n, c.pos)
	}
	if c.size < 0 && n > chunkSize {
		return c.readChunked(n)
	}
	b := make([]byte, n)
	if err := c.ReadFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Cursor) readChunked(n int) ([]byte, error) {
	b := make([]byte, 0, chunkSize)
	for len(b) < n {
		k := min(chunkSize, n-len(b))
		b = append(b, make([]byte, k)...)
		if err := c.ReadFull(b[len(b)-k:]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ReadString reads a fixed width field and drops everything from the first NUL.
func (c *Cursor) ReadString(n int) (string, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return cString(b), nil
}

func cString(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " ")
}

func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.ReadFull(c.buf[:1]); err != nil {
		return 0, err
	}
	return c.buf[0], nil
}

func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.ReadFull(c.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(c.buf[:2]), nil
}

func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.ReadFull(c.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.buf[:4]), nil
}

func (c *Cursor) ReadU64() (uint64, error) {
	if err := c.ReadFull(c.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(c.buf[:8]), nil
}

func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

func (c *Cursor) ReadF64() (float64, error) {
	v, err := c.ReadU64()
	return math.Float64frombits(v), err
}
