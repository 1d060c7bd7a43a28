package las

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const Signature = "LASF"

// Minimum header sizes by minor version.
const (
	HeaderSize10 = 227
	HeaderSize13 = 235
	HeaderSize14 = 375
)

const (
	legacyReturns   = 5
	extendedReturns = 15
)

// GlobalEncoding bits.
const (
	GPSTimeStandard       = 1 << 0
	WaveformInternal      = 1 << 1
	WaveformExternal      = 1 << 2
	SyntheticReturnNumber = 1 << 3
	WKTCoordinateSystem   = 1 << 4
)

type Version struct {
	Major, Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v Version) Supported() bool {
	return v.Major == 1 && v.Minor <= 4
}

func (v Version) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

func (v Version) minHeaderSize() int {
	switch {
	case v.AtLeast(1, 4):
		return HeaderSize14
	case v.AtLeast(1, 3):
		return HeaderSize13
	}
	return HeaderSize10
}

type Bounds struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Header is the public header block of a LAS file.
type Header struct {
	FileSourceID   uint16
	GlobalEncoding uint16
	ProjectID      [16]byte
	Version        Version

	SystemID           string
	GeneratingSoftware string
	CreationDay        uint16
	CreationYear       uint16

	HeaderSize        uint16
	PointDataOffset   uint32
	NumVLRs           uint32
	PointFormat       Format
	PointRecordLength uint16

	// NumPoints is the 64-bit count for 1.4 files when set, the legacy count otherwise.
	NumPoints         uint64
	LegacyNumPoints   uint32
	NumPointsByReturn []uint64

	Scale  r3.Vector
	Offset r3.Vector
	Bounds Bounds

	WaveformDataStart uint64
	FirstEVLR         uint64
	NumEVLRs          uint32
}

// Scaled converts the raw integer coordinates of p into real-world units.
func (h *Header) Scaled(p Point) r3.Vector {
	return r3.Vector{
		X: float64(p.X)*h.Scale.X + h.Offset.X,
		Y: float64(p.Y)*h.Scale.Y + h.Offset.Y,
		Z: float64(p.Z)*h.Scale.Z + h.Offset.Z,
	}
}

// PointOffset is the byte offset of point record i. An offset past what an
// int64 can address fails with ErrTruncatedStream.
func (h *Header) PointOffset(i uint64) (int64, error) {
	hi, lo := bits.Mul64(i, uint64(h.PointRecordLength))
	if hi != 0 || lo > math.MaxInt64-uint64(h.PointDataOffset) {
		return 0, errors.Wrapf(ErrTruncatedStream, "point %d lies beyond any addressable offset", i)
	}
	return int64(h.PointDataOffset) + int64(lo), nil
}

// fieldReader reads consecutive fields and keeps the first error.
type fieldReader struct {
	c   *Cursor
	err error
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.c.ReadU8()
	return v
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	v, r.err = r.c.ReadU16()
	return v
}

func (r *fieldReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = r.c.ReadU32()
	return v
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = r.c.ReadU64()
	return v
}

func (r *fieldReader) f64() float64 {
	if r.err != nil {
		return 0
	}
	var v float64
	v, r.err = r.c.ReadF64()
	return v
}

func (r *fieldReader) str(n int) string {
	if r.err != nil {
		return ""
	}
	var v string
	v, r.err = r.c.ReadString(n)
	return v
}

func (r *fieldReader) bytes(p []byte) {
	if r.err != nil {
		return
	}
	r.err = r.c.ReadFull(p)
}

func (r *fieldReader) vec3() r3.Vector {
	return r3.Vector{X: r.f64(), Y: r.f64(), Z: r.f64()}
}

// ParseHeader reads the header from the start of c. The bounding box is not
// validated.
func ParseHeader(c *Cursor) (*Header, error) {
	c.Seek(0)
	sig, err := c.ReadBytes(len(Signature))
	if err != nil {
		return nil, err
	}
	if string(sig) != Signature {
		return nil, errors.Wrapf(ErrBadSignature, "got %q", sig)
	}

	h := &Header{}
	r := &fieldReader{c: c}
	h.FileSourceID = r.u16()
	h.GlobalEncoding = r.u16()
	r.bytes(h.ProjectID[:])
	h.Version.Major = r.u8()
	h.Version.Minor = r.u8()
	if r.err != nil {
		return nil, r.err
	}
	if !h.Version.Supported() {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%d.%d", h.Version.Major, h.Version.Minor)
	}

	h.SystemID = r.str(32)
	h.GeneratingSoftware = r.str(32)
	h.CreationDay = r.u16()
	h.CreationYear = r.u16()
	h.HeaderSize = r.u16()
	h.PointDataOffset = r.u32()
	h.NumVLRs = r.u32()
	h.PointFormat = Format(r.u8())
	h.PointRecordLength = r.u16()
	h.LegacyNumPoints = r.u32()
	h.NumPointsByReturn = make([]uint64, legacyReturns)
	for i := range h.NumPointsByReturn {
		h.NumPointsByReturn[i] = uint64(r.u32())
	}
	h.Scale = r.vec3()
	h.Offset = r.vec3()
	h.Bounds.MaxX = r.f64()
	h.Bounds.MinX = r.f64()
	h.Bounds.MaxY = r.f64()
	h.Bounds.MinY = r.f64()
	h.Bounds.MaxZ = r.f64()
	h.Bounds.MinZ = r.f64()
	if h.Version.AtLeast(1, 3) {
		h.WaveformDataStart = r.u64()
	}
	h.NumPoints = uint64(h.LegacyNumPoints)
	if h.Version.AtLeast(1, 4) {
		h.FirstEVLR = r.u64()
		h.NumEVLRs = r.u32()
		if n := r.u64(); n != 0 {
			h.NumPoints = n
		}
		byReturn := make([]uint64, extendedReturns)
		for i := range byReturn {
			byReturn[i] = r.u64()
		}
		if h.LegacyNumPoints == 0 {
			h.NumPointsByReturn = byReturn
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	if int(h.HeaderSize) < h.Version.minHeaderSize() {
		return nil, errors.Wrapf(ErrHeaderSize, "version %d.%d declares %d bytes", h.Version.Major, h.Version.Minor, h.HeaderSize)
	}
	if h.PointDataOffset < uint32(h.HeaderSize) {
		return nil, errors.Wrapf(ErrHeaderSize, "point data offset %d inside %d byte header", h.PointDataOffset, h.HeaderSize)
	}
	layout, err := h.PointFormat.layout()
	if err != nil {
		return nil, err
	}
	if int(h.PointRecordLength) < layout.width {
		return nil, errors.Wrapf(ErrRecordLength, "format %d needs %d bytes, header declares %d", h.PointFormat, layout.width, h.PointRecordLength)
	}
	return h, nil
}
