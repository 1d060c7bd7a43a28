package las

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Format is a point data record format id, 0 through 10.
type Format uint8

const MaxFormat Format = 10

// recordLayout lists where the optional fields of a format live in a record.
// Offsets are -1 when the format does not carry the field.
type recordLayout struct {
	extended bool
	width    int
	gpsTime  int
	rgb      int
	nir      int
	wave     int
}

var layouts = [MaxFormat + 1]recordLayout{
	0:  {width: 20, gpsTime: -1, rgb: -1, nir: -1, wave: -1},
	1:  {width: 28, gpsTime: 20, rgb: -1, nir: -1, wave: -1},
	2:  {width: 26, gpsTime: -1, rgb: 20, nir: -1, wave: -1},
	3:  {width: 34, gpsTime: 20, rgb: 28, nir: -1, wave: -1},
	4:  {width: 57, gpsTime: 20, rgb: -1, nir: -1, wave: 28},
	5:  {width: 63, gpsTime: 20, rgb: 28, nir: -1, wave: 34},
	6:  {extended: true, width: 30, gpsTime: 22, rgb: -1, nir: -1, wave: -1},
	7:  {extended: true, width: 36, gpsTime: 22, rgb: 30, nir: -1, wave: -1},
	8:  {extended: true, width: 38, gpsTime: 22, rgb: 30, nir: 36, wave: -1},
	9:  {extended: true, width: 59, gpsTime: 22, rgb: -1, nir: -1, wave: 30},
	10: {extended: true, width: 67, gpsTime: 22, rgb: 30, nir: 36, wave: 38},
}

func (f Format) layout() (recordLayout, error) {
	if f > MaxFormat {
		return recordLayout{}, errors.Wrapf(ErrUnsupportedFormat, "format %d", f)
	}
	return layouts[f], nil
}

func (f Format) Valid() bool { return f <= MaxFormat }

// Width is the number of bytes the format defines, not counting extra bytes.
func (f Format) Width() int {
	if !f.Valid() {
		return 0
	}
	return layouts[f].width
}

func (f Format) Extended() bool {
	return f.Valid() && layouts[f].extended
}

func (f Format) HasGPSTime() bool {
	return f.Valid() && layouts[f].gpsTime >= 0
}

func (f Format) HasColor() bool {
	return f.Valid() && layouts[f].rgb >= 0
}

func (f Format) HasNIR() bool {
	return f.Valid() && layouts[f].nir >= 0
}

func (f Format) HasWavePacket() bool {
	return f.Valid() && layouts[f].wave >= 0
}

type RGB struct {
	Red, Green, Blue uint16
}

type WavePacket struct {
	DescriptorIndex     uint8
	Offset              uint64
	Size                uint32
	ReturnPointLocation float32
	Xt, Yt, Zt          float32
}

// Point is one decoded point data record. X, Y and Z are the raw scaled
// integers; see Header.Scaled.
type Point struct {
	Format Format

	X, Y, Z   int32
	Intensity uint16

	ReturnNumber     uint8
	NumberOfReturns  uint8
	ScanDirection    bool
	EdgeOfFlightLine bool

	Classification uint8
	Synthetic      bool
	KeyPoint       bool
	Withheld       bool
	Overlap        bool
	ScannerChannel uint8

	// ScanAngle is the signed rank in degrees for formats 0-5 and the
	// 0.006 degree increments for formats 6-10.
	ScanAngle     int16
	UserData      uint8
	PointSourceID uint16

	GPSTime    float64
	Color      RGB
	NIR        uint16
	WavePacket WavePacket

	// ExtraBytes holds whatever follows the format's fields in the record.
	ExtraBytes []byte
}

// DecodePoint reads one record of recordLength bytes at the cursor position.
func DecodePoint(c *Cursor, f Format, recordLength int) (Point, error) {
	l, err := f.layout()
	if err != nil {
		return Point{}, err
	}
	if recordLength < l.width {
		return Point{}, errors.Wrapf(ErrRecordLength, "format %d needs %d bytes, got %d", f, l.width, recordLength)
	}
	buf := make([]byte, recordLength)
	if err := c.ReadFull(buf); err != nil {
		return Point{}, err
	}
	return decodeRecord(buf, f, l), nil
}

func decodeRecord(b []byte, f Format, l recordLayout) Point {
	le := binary.LittleEndian
	p := Point{
		Format:    f,
		X:         int32(le.Uint32(b[0:])),
		Y:         int32(le.Uint32(b[4:])),
		Z:         int32(le.Uint32(b[8:])),
		Intensity: le.Uint16(b[12:]),
	}
	if l.extended {
		p.ReturnNumber = b[14] & 0x0f
		p.NumberOfReturns = b[14] >> 4
		flags := b[15]
		p.Synthetic = flags&0x01 != 0
		p.KeyPoint = flags&0x02 != 0
		p.Withheld = flags&0x04 != 0
		p.Overlap = flags&0x08 != 0
		p.ScannerChannel = (flags >> 4) & 0x03
		p.ScanDirection = flags&0x40 != 0
		p.EdgeOfFlightLine = flags&0x80 != 0
		p.Classification = b[16]
		p.UserData = b[17]
		p.ScanAngle = int16(le.Uint16(b[18:]))
		p.PointSourceID = le.Uint16(b[20:])
	} else {
		p.ReturnNumber = b[14] & 0x07
		p.NumberOfReturns = (b[14] >> 3) & 0x07
		p.ScanDirection = b[14]&0x40 != 0
		p.EdgeOfFlightLine = b[14]&0x80 != 0
		p.Classification = b[15] & 0x1f
		p.Synthetic = b[15]&0x20 != 0
		p.KeyPoint = b[15]&0x40 != 0
		p.Withheld = b[15]&0x80 != 0
		p.ScanAngle = int16(int8(b[16]))
		p.UserData = b[17]
		p.PointSourceID = le.Uint16(b[18:])
	}
	if l.gpsTime >= 0 {
		p.GPSTime = math.Float64frombits(le.Uint64(b[l.gpsTime:]))
	}
	if l.rgb >= 0 {
		p.Color = RGB{
			Red:   le.Uint16(b[l.rgb:]),
			Green: le.Uint16(b[l.rgb+2:]),
			Blue:  le.Uint16(b[l.rgb+4:]),
		}
	}
	if l.nir >= 0 {
		p.NIR = le.Uint16(b[l.nir:])
	}
	if l.wave >= 0 {
		w := b[l.wave:]
		p.WavePacket = WavePacket{
			DescriptorIndex:     w[0],
			Offset:              le.Uint64(w[1:]),
			Size:                le.Uint32(w[9:]),
			ReturnPointLocation: math.Float32frombits(le.Uint32(w[13:])),
			Xt:                  math.Float32frombits(le.Uint32(w[17:])),
			Yt:                  math.Float32frombits(le.Uint32(w[21:])),
			Zt:                  math.Float32frombits(le.Uint32(w[25:])),
		}
	}
	if len(b) > l.width {
		p.ExtraBytes = append([]byte(nil), b[l.width:]...)
	}
	return p
}
