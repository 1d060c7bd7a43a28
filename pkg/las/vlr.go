package las

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	vlrHeaderSize  = 54
	evlrHeaderSize = 60

	extraBytesDescriptorSize = 192
)

// Well known user ids and record ids.
const (
	UserIDProjection = "LASF_Projection"
	UserIDSpec       = "LASF_Spec"

	RecordIDGeoKeyDirectory = 34735
	RecordIDGeoDoubleParams = 34736
	RecordIDGeoASCIIParams  = 34737
	RecordIDOGCWKT          = 2112
	RecordIDExtraBytes      = 4
)

// VLR is a variable length record, or an extended one when read from the end
// of a 1.4 file.
type VLR struct {
	UserID      string
	RecordID    uint16
	Description string
	// RecordLength is the payload length declared in the record header.
	RecordLength uint64
	Payload      []byte
}

func (v *VLR) Is(userID string, recordID uint16) bool {
	return v.UserID == userID && v.RecordID == recordID
}

// ParseVLRs reads the h.NumVLRs records that follow the header. It fails with
// ErrVLROverrun when a record would cross h.PointDataOffset.
func ParseVLRs(c *Cursor, h *Header) ([]VLR, error) {
	c.Seek(int64(h.HeaderSize))
	limit := int64(h.PointDataOffset)
	vlrs := make([]VLR, 0, h.NumVLRs)
	for i := uint32(0); i < h.NumVLRs; i++ {
		if c.Pos()+vlrHeaderSize > limit {
			return nil, errors.Wrapf(ErrVLROverrun, "record %d header at offset %d", i, c.Pos())
		}
		r := &fieldReader{c: c}
		r.u16()
		v := VLR{UserID: r.str(16), RecordID: r.u16()}
		v.RecordLength = uint64(r.u16())
		v.Description = r.str(32)
		if r.err != nil {
			return nil, r.err
		}
		if c.Pos()+int64(v.RecordLength) > limit {
			return nil, errors.Wrapf(ErrVLROverrun, "record %d ends at %d, point data starts at %d", i, c.Pos()+int64(v.RecordLength), limit)
		}
		payload, err := c.ReadBytes(int(v.RecordLength))
		if err != nil {
			return nil, err
		}
		v.Payload = payload
		vlrs = append(vlrs, v)
	}
	return vlrs, nil
}

// ParseEVLRs reads the extended records of a 1.4 file. They sit after the
// point data so a file truncated there still opens.
func ParseEVLRs(c *Cursor, h *Header) ([]VLR, error) {
	if h.NumEVLRs == 0 {
		return nil, nil
	}
	c.Seek(int64(h.FirstEVLR))
	evlrs := make([]VLR, 0, h.NumEVLRs)
	for i := uint32(0); i < h.NumEVLRs; i++ {
		r := &fieldReader{c: c}
		r.u16()
		v := VLR{UserID: r.str(16), RecordID: r.u16()}
		v.RecordLength = r.u64()
		v.Description = r.str(32)
		if r.err != nil {
			return nil, r.err
		}
		if v.RecordLength > math.MaxInt {
			return nil, errors.Wrapf(ErrTruncatedStream, "evlr %d declares %d bytes", i, v.RecordLength)
		}
		if rem := c.Remaining(); rem >= 0 && v.RecordLength > uint64(rem) {
			return nil, errors.Wrapf(ErrTruncatedStream, "evlr %d declares %d bytes, %d remain", i, v.RecordLength, rem)
		}
		payload, err := c.ReadBytes(int(v.RecordLength))
		if err != nil {
			return nil, err
		}
		v.Payload = payload
		evlrs = append(evlrs, v)
	}
	return evlrs, nil
}

// GeoKey is one entry of a GeoTIFF key directory.
type GeoKey struct {
	KeyID           uint16
	TIFFTagLocation uint16
	Count           uint16
	ValueOffset     uint16
}

type GeoKeys struct {
	KeyDirectoryVersion uint16
	KeyRevision         uint16
	MinorRevision       uint16
	Keys                []GeoKey
}

// ParseGeoKeys decodes a LASF_Projection/34735 payload.
func ParseGeoKeys(payload []byte) (*GeoKeys, error) {
	if len(payload) < 8 {
		return nil, errors.Wrapf(ErrTruncatedStream, "geokey directory needs 8 bytes, got %d", len(payload))
	}
	le := binary.LittleEndian
	gk := &GeoKeys{
		KeyDirectoryVersion: le.Uint16(payload[0:]),
		KeyRevision:         le.Uint16(payload[2:]),
		MinorRevision:       le.Uint16(payload[4:]),
	}
	n := int(le.Uint16(payload[6:]))
	if len(payload) < 8+n*8 {
		return nil, errors.Wrapf(ErrTruncatedStream, "geokey directory declares %d keys in %d bytes", n, len(payload))
	}
	gk.Keys = make([]GeoKey, n)
	for i := range gk.Keys {
		b := payload[8+i*8:]
		gk.Keys[i] = GeoKey{
			KeyID:           le.Uint16(b[0:]),
			TIFFTagLocation: le.Uint16(b[2:]),
			Count:           le.Uint16(b[4:]),
			ValueOffset:     le.Uint16(b[6:]),
		}
	}
	return gk, nil
}

// ExtraBytesDescriptor describes one field stored in the extra bytes of each
// point record.
type ExtraBytesDescriptor struct {
	DataType    uint8
	Options     uint8
	Name        string
	Description string
	Scale       [3]float64
	Offset      [3]float64
}

// extraBytesWidths maps data types 1-10 to their byte width.
var extraBytesWidths = [...]int{0, 1, 1, 2, 2, 4, 4, 8, 8, 4, 8}

// Width is the number of bytes the field occupies in a record. Data type 0
// stores its width in Options.
func (d *ExtraBytesDescriptor) Width() int {
	if d.DataType == 0 {
		return int(d.Options)
	}
	if int(d.DataType) < len(extraBytesWidths) {
		return extraBytesWidths[d.DataType]
	}
	return 0
}

// ParseExtraBytes decodes a LASF_Spec/4 payload.
func ParseExtraBytes(payload []byte) ([]ExtraBytesDescriptor, error) {
	if len(payload)%extraBytesDescriptorSize != 0 {
		return nil, errors.Wrapf(ErrInvalidFormat, "extra bytes payload of %d bytes is not a multiple of %d", len(payload), extraBytesDescriptorSize)
	}
	le := binary.LittleEndian
	ds := make([]ExtraBytesDescriptor, len(payload)/extraBytesDescriptorSize)
	for i := range ds {
		b := payload[i*extraBytesDescriptorSize:]
		d := ExtraBytesDescriptor{
			DataType:    b[2],
			Options:     b[3],
			Name:        cString(b[4:36]),
			Description: cString(b[160:192]),
		}
		for j := 0; j < 3; j++ {
			d.Scale[j] = math.Float64frombits(le.Uint64(b[112+j*8:]))
			d.Offset[j] = math.Float64frombits(le.Uint64(b[136+j*8:]))
		}
		ds[i] = d
	}
	return ds, nil
}
