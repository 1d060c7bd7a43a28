package las

import (
	"io"
	"iter"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type readerState int

const (
	stateReady readerState = iota
	stateClosed
)

// Reader reads points from a LAS byte source. A failed Open never returns a
// Reader, so every Reader starts Ready. ReadPointAt moves a shared cursor;
// use one Reader per goroutine.
type Reader struct {
	header *Header
	vlrs   []VLR
	layout recordLayout
	cursor *Cursor
	state  readerState
	closer io.Closer
	logger *zap.Logger
}

type Option func(*Reader)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Open parses the header and variable length records of src. The source is
// borrowed: Close does not close it.
func Open(src io.ReaderAt, opts ...Option) (*Reader, error) {
	size, err := sourceSize(src)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		cursor: NewCursor(src, size),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}

	h, err := ParseHeader(r.cursor)
	if err != nil {
		return nil, err
	}
	vlrs, err := ParseVLRs(r.cursor, h)
	if err != nil {
		return nil, err
	}
	r.header = h
	r.vlrs = vlrs
	r.layout = layouts[h.PointFormat]

	r.logger.Debug("opened las source",
		zap.Stringer("version", h.Version),
		zap.Uint8("point_format", uint8(h.PointFormat)),
		zap.Uint16("record_length", h.PointRecordLength),
		zap.Uint64("points", h.NumPoints),
		zap.Int("vlrs", len(vlrs)),
		zap.Int64("size", size),
	)
	if size >= 0 {
		end, err := h.PointOffset(h.NumPoints)
		if err != nil || end > size {
			r.logger.Warn("las source shorter than declared point data",
				zap.Int64("size", size), zap.Uint64("points", h.NumPoints))
		}
	}
	return r, nil
}

// OpenFile opens the named file and owns it: Close closes the file.
func OpenFile(name string, opts ...Option) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	r, err := Open(f, opts...)
	if err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "open %s", name), f.Close())
	}
	r.closer = f
	return r, nil
}

func (r *Reader) check() error {
	if r.state == stateClosed {
		return ErrReaderClosed
	}
	return nil
}

func (r *Reader) NumPoints() (uint64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.header.NumPoints, nil
}

// Header returns the parsed header. It must not be modified.
func (r *Reader) Header() (*Header, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.header, nil
}

func (r *Reader) VLRs() ([]VLR, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.vlrs, nil
}

// FindVLR returns the first record with the given ids. A closed reader has
// no records.
func (r *Reader) FindVLR(userID string, recordID uint16) (*VLR, bool) {
	for i := range r.vlrs {
		if r.vlrs[i].Is(userID, recordID) {
			return &r.vlrs[i], true
		}
	}
	return nil, false
}

// ExtendedVLRs reads the extended records after the point data.
func (r *Reader) ExtendedVLRs() ([]VLR, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return ParseEVLRs(r.cursor.Clone(), r.header)
}

// GeoKeys returns the GeoTIFF key directory, or nil when the file has none.
func (r *Reader) GeoKeys() (*GeoKeys, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	v, ok := r.FindVLR(UserIDProjection, RecordIDGeoKeyDirectory)
	if !ok {
		return nil, nil
	}
	return ParseGeoKeys(v.Payload)
}

// WKT returns the OGC WKT coordinate system, or "" when the file has none.
func (r *Reader) WKT() (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	v, ok := r.FindVLR(UserIDProjection, RecordIDOGCWKT)
	if !ok {
		return "", nil
	}
	return cString(v.Payload), nil
}

func (r *Reader) ExtraBytes() ([]ExtraBytesDescriptor, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	v, ok := r.FindVLR(UserIDSpec, RecordIDExtraBytes)
	if !ok {
		return nil, nil
	}
	return ParseExtraBytes(v.Payload)
}

// ReadPointAt decodes point i. Points may be read in any order.
func (r *Reader) ReadPointAt(i uint64) (Point, error) {
	if err := r.check(); err != nil {
		return Point{}, err
	}
	if i >= r.header.NumPoints {
		return Point{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, %d points", i, r.header.NumPoints)
	}
	off, err := r.header.PointOffset(i)
	if err != nil {
		return Point{}, err
	}
	r.cursor.Seek(off)
	p, err := DecodePoint(r.cursor, r.header.PointFormat, int(r.header.PointRecordLength))
	if err != nil {
		return Point{}, errors.Wrapf(err, "point %d", i)
	}
	return p, nil
}

// Points yields every point in file order. A decode failure is yielded
// once with a zero Point and ends the sequence. Each call starts again at
// point 0 on its own cursor and leaves ReadPointAt's position alone.
func (r *Reader) Points() iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		if err := r.check(); err != nil {
			yield(Point{}, err)
			return
		}
		h := r.header
		c := r.cursor.Clone()
		c.Seek(int64(h.PointDataOffset))
		buf := make([]byte, h.PointRecordLength)
		for i := uint64(0); i < h.NumPoints; i++ {
			if err := c.ReadFull(buf); err != nil {
				yield(Point{}, errors.Wrapf(err, "point %d", i))
				return
			}
			if !yield(decodeRecord(buf, h.PointFormat, r.layout), nil) {
				return
			}
		}
	}
}

// Close releases the reader and, for OpenFile, the file. Every later call
// that returns an error fails with ErrReaderClosed; FindVLR finds nothing.
func (r *Reader) Close() error {
	if r.state == stateClosed {
		return nil
	}
	r.state = stateClosed
	r.vlrs = nil
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
