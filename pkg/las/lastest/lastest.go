// Package lastest builds synthetic LAS files for tests.
package lastest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"

	"lascloud/pkg/las"
)

// File describes a LAS file to encode. Zero values get sensible defaults:
// version 1.2, the format's own record length, a 0.01 scale and
// NumPoints = len(Points).
type File struct {
	Version            las.Version
	Format             las.Format
	RecordLength       int
	NumPoints          uint64
	Scale              r3.Vector
	Offset             r3.Vector
	Bounds             las.Bounds
	SystemID           string
	GeneratingSoftware string
	FileSourceID       uint16
	GlobalEncoding     uint16

	VLRs  []las.VLR
	EVLRs []las.VLR
	// Gap is the number of zero bytes between the last VLR and the points.
	Gap    int
	Points []las.Point
}

func (f *File) version() las.Version {
	if f.Version == (las.Version{}) {
		return las.Version{Major: 1, Minor: 2}
	}
	return f.Version
}

func (f *File) recordLength() int {
	if f.RecordLength == 0 {
		return f.Format.Width()
	}
	return f.RecordLength
}

func (f *File) scale() r3.Vector {
	if f.Scale == (r3.Vector{}) {
		return r3.Vector{X: 0.01, Y: 0.01, Z: 0.01}
	}
	return f.Scale
}

func (f *File) numPoints() uint64 {
	if f.NumPoints == 0 {
		return uint64(len(f.Points))
	}
	return f.NumPoints
}

// HeaderSize is the size of the header block for the file's version.
func (f *File) HeaderSize() int {
	v := f.version()
	switch {
	case v.AtLeast(1, 4):
		return las.HeaderSize14
	case v.AtLeast(1, 3):
		return las.HeaderSize13
	}
	return las.HeaderSize10
}

// PointDataOffset is where the first point record starts.
func (f *File) PointDataOffset() int {
	off := f.HeaderSize() + f.Gap
	for _, v := range f.VLRs {
		off += 54 + len(v.Payload)
	}
	return off
}

type writer struct {
	bytes.Buffer
}

func (w *writer) put(v interface{}) {
	// bytes.Buffer writes never fail
	_ = binary.Write(&w.Buffer, binary.LittleEndian, v)
}

func (w *writer) str(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.Write(b)
}

// Bytes encodes the whole file.
func (f *File) Bytes() []byte {
	v := f.version()
	scale := f.scale()
	n := f.numPoints()
	rl := f.recordLength()
	pointEnd := uint64(f.PointDataOffset()) + uint64(len(f.Points)*rl)

	w := &writer{}
	w.str(las.Signature, 4)
	w.put(f.FileSourceID)
	w.put(f.GlobalEncoding)
	w.Write(make([]byte, 16))
	w.put(v.Major)
	w.put(v.Minor)
	w.str(f.SystemID, 32)
	w.str(f.GeneratingSoftware, 32)
	w.put(uint16(1))
	w.put(uint16(2024))
	w.put(uint16(f.HeaderSize()))
	w.put(uint32(f.PointDataOffset()))
	w.put(uint32(len(f.VLRs)))
	w.put(uint8(f.Format))
	w.put(uint16(rl))
	legacy := uint32(n)
	if v.AtLeast(1, 4) && f.Format.Extended() {
		legacy = 0
	}
	w.put(legacy)
	byReturn := make([]uint32, 5)
	if legacy != 0 {
		byReturn[0] = legacy
	}
	w.put(byReturn)
	w.put([]float64{scale.X, scale.Y, scale.Z})
	w.put([]float64{f.Offset.X, f.Offset.Y, f.Offset.Z})
	b := f.Bounds
	w.put([]float64{b.MaxX, b.MinX, b.MaxY, b.MinY, b.MaxZ, b.MinZ})
	if v.AtLeast(1, 3) {
		w.put(uint64(0))
	}
	if v.AtLeast(1, 4) {
		if len(f.EVLRs) > 0 {
			w.put(pointEnd)
		} else {
			w.put(uint64(0))
		}
		w.put(uint32(len(f.EVLRs)))
		w.put(n)
		ext := make([]uint64, 15)
		ext[0] = n
		w.put(ext)
	}

	for _, vlr := range f.VLRs {
		w.put(uint16(0))
		w.str(vlr.UserID, 16)
		w.put(vlr.RecordID)
		w.put(uint16(len(vlr.Payload)))
		w.str(vlr.Description, 32)
		w.Write(vlr.Payload)
	}
	w.Write(make([]byte, f.Gap))
	for _, p := range f.Points {
		w.Write(EncodePoint(p, f.Format, rl))
	}
	for _, vlr := range f.EVLRs {
		w.put(uint16(0))
		w.str(vlr.UserID, 16)
		w.put(vlr.RecordID)
		w.put(uint64(len(vlr.Payload)))
		w.str(vlr.Description, 32)
		w.Write(vlr.Payload)
	}
	return w.Bytes()
}

// EncodePoint is the inverse of decoding: it lays p out as a record of
// recordLength bytes in format f. ExtraBytes fill the tail.
func EncodePoint(p las.Point, f las.Format, recordLength int) []byte {
	b := make([]byte, recordLength)
	le := binary.LittleEndian
	le.PutUint32(b[0:], uint32(p.X))
	le.PutUint32(b[4:], uint32(p.Y))
	le.PutUint32(b[8:], uint32(p.Z))
	le.PutUint16(b[12:], p.Intensity)
	off := 20
	if f.Extended() {
		b[14] = p.ReturnNumber&0x0f | p.NumberOfReturns<<4
		b[15] = bit(p.Synthetic, 0) | bit(p.KeyPoint, 1) | bit(p.Withheld, 2) | bit(p.Overlap, 3) |
			(p.ScannerChannel&0x03)<<4 | bit(p.ScanDirection, 6) | bit(p.EdgeOfFlightLine, 7)
		b[16] = p.Classification
		b[17] = p.UserData
		le.PutUint16(b[18:], uint16(p.ScanAngle))
		le.PutUint16(b[20:], p.PointSourceID)
		le.PutUint64(b[22:], math.Float64bits(p.GPSTime))
		off = 30
	} else {
		b[14] = p.ReturnNumber&0x07 | (p.NumberOfReturns&0x07)<<3 | bit(p.ScanDirection, 6) | bit(p.EdgeOfFlightLine, 7)
		b[15] = p.Classification&0x1f | bit(p.Synthetic, 5) | bit(p.KeyPoint, 6) | bit(p.Withheld, 7)
		b[16] = byte(int8(p.ScanAngle))
		b[17] = p.UserData
		le.PutUint16(b[18:], p.PointSourceID)
		if f.HasGPSTime() {
			le.PutUint64(b[off:], math.Float64bits(p.GPSTime))
			off += 8
		}
	}
	if f.HasColor() {
		le.PutUint16(b[off:], p.Color.Red)
		le.PutUint16(b[off+2:], p.Color.Green)
		le.PutUint16(b[off+4:], p.Color.Blue)
		off += 6
	}
	if f.HasNIR() {
		le.PutUint16(b[off:], p.NIR)
		off += 2
	}
	if f.HasWavePacket() {
		wp := p.WavePacket
		b[off] = wp.DescriptorIndex
		le.PutUint64(b[off+1:], wp.Offset)
		le.PutUint32(b[off+9:], wp.Size)
		le.PutUint32(b[off+13:], math.Float32bits(wp.ReturnPointLocation))
		le.PutUint32(b[off+17:], math.Float32bits(wp.Xt))
		le.PutUint32(b[off+21:], math.Float32bits(wp.Yt))
		le.PutUint32(b[off+25:], math.Float32bits(wp.Zt))
		off += 29
	}
	copy(b[off:], p.ExtraBytes)
	return b
}

func bit(v bool, n uint) byte {
	if v {
		return 1 << n
	}
	return 0
}

// Raw converts a real-world coordinate back to its stored integer.
func Raw(v, scale, offset float64) int32 {
	return int32(math.Round((v - offset) / scale))
}

// GeoKeyPayload encodes a GeoTIFF key directory.
func GeoKeyPayload(gk las.GeoKeys) []byte {
	w := &writer{}
	w.put([]uint16{gk.KeyDirectoryVersion, gk.KeyRevision, gk.MinorRevision, uint16(len(gk.Keys))})
	for _, k := range gk.Keys {
		w.put([]uint16{k.KeyID, k.TIFFTagLocation, k.Count, k.ValueOffset})
	}
	return w.Bytes()
}

// ExtraBytesPayload encodes extra bytes descriptors.
func ExtraBytesPayload(ds ...las.ExtraBytesDescriptor) []byte {
	out := make([]byte, 0, 192*len(ds))
	for _, d := range ds {
		b := make([]byte, 192)
		b[2] = d.DataType
		b[3] = d.Options
		copy(b[4:36], d.Name)
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint64(b[112+j*8:], math.Float64bits(d.Scale[j]))
			binary.LittleEndian.PutUint64(b[136+j*8:], math.Float64bits(d.Offset[j]))
		}
		copy(b[160:192], d.Description)
		out = append(out, b...)
	}
	return out
}
