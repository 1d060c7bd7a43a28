package pcd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/zhuyie/golzf"
	"go.uber.org/zap"

	"lascloud/pkg/las"
)

var (
	ErrUnsupportPcdDataType  = errors.New("unsupport pcd data type")
	ErrUnsupportPcdFieldType = errors.New("unsupport pcd field type")
	ErrInvalidPcdFormat      = errors.New("invalid pcd format")
)

type DataType int

const (
	DataBinary DataType = iota
	DataBinaryCompressed
	DataASCII
)

func (d DataType) String() string {
	switch d {
	case DataBinary:
		return "binary"
	case DataBinaryCompressed:
		return "binary_compressed"
	case DataASCII:
		return "ascii"
	}
	return "unknown"
}

// Fields written for every LAS point: real-world position, intensity and
// classification as label.
var lasHeader = pc.PointCloudHeader{
	Version:   0.7,
	Fields:    []string{"x", "y", "z", "intensity", "label"},
	Size:      []int{4, 4, 4, 4, 4},
	Type:      []string{"F", "F", "F", "U", "U"},
	Count:     []int{1, 1, 1, 1, 1},
	Viewpoint: []float32{0, 0, 0, 1, 0, 0, 0},
}

type Options struct {
	// Recenter subtracts the LAS header offset so coordinates stay small
	// enough for float32.
	Recenter bool
	Logger   *zap.Logger
}

// FromLAS reads every point of r into a pcgol point cloud.
func FromLAS(r *las.Reader, opts Options) (*pc.PointCloud, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h, err := r.Header()
	if err != nil {
		return nil, err
	}
	if h.NumPoints > math.MaxInt32 {
		return nil, errors.Errorf("%d points do not fit a pcd file", h.NumPoints)
	}
	n := int(h.NumPoints)
	pp := &pc.PointCloud{
		PointCloudHeader: lasHeader.Clone(),
		Points:           n,
	}
	pp.Width = n
	pp.Height = 1
	pp.Data = make([]byte, n*pp.Stride())
	if n == 0 {
		return pp, nil
	}

	vit, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	iit, err := pp.Uint32Iterator("intensity")
	if err != nil {
		return nil, err
	}
	lit, err := pp.Uint32Iterator("label")
	if err != nil {
		return nil, err
	}

	var lossy bool
	for p, err := range r.Points() {
		if err != nil {
			return nil, err
		}
		v := h.Scaled(p)
		if opts.Recenter {
			v = v.Sub(h.Offset)
		}
		f := mat.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
		if !lossy && !preciseEnough(v, f, h.Scale) {
			lossy = true
			logger.Warn("float32 pcd coordinates lose las precision",
				zap.Float64("x", v.X), zap.Float64("y", v.Y), zap.Float64("z", v.Z),
				zap.Bool("recenter", opts.Recenter))
		}
		vit.SetVec3(f)
		iit.SetUint32(uint32(p.Intensity))
		lit.SetUint32(uint32(p.Classification))
		vit.Incr()
		iit.Incr()
		lit.Incr()
	}
	return pp, nil
}

// preciseEnough reports whether f keeps v within half a LAS scale step.
func preciseEnough(v r3.Vector, f mat.Vec3, scale r3.Vector) bool {
	return math.Abs(float64(f[0])-v.X) <= scale.X/2 &&
		math.Abs(float64(f[1])-v.Y) <= scale.Y/2 &&
		math.Abs(float64(f[2])-v.Z) <= scale.Z/2
}

// Encode writes pp as a PCD v0.7 file.
func Encode(pp *pc.PointCloud, w io.Writer, dt DataType) error {
	switch dt {
	case DataBinary:
		return pc.Marshal(pp, w)
	case DataBinaryCompressed, DataASCII:
	default:
		return ErrUnsupportPcdDataType
	}
	if len(pp.Data) != pp.Points*pp.Stride() {
		return ErrInvalidPcdFormat
	}

	byf := bytes.NewBuffer(make([]byte, 0, 256))
	byf.WriteString("# .PCD v0.7 - Point Cloud Data file format\n")
	byf.WriteString("VERSION 0.7\n")
	byf.WriteString("FIELDS " + strings.Join(pp.Fields, " ") + "\n")
	byf.WriteString("SIZE " + joinInts(pp.Size) + "\n")
	byf.WriteString("TYPE " + strings.Join(pp.Type, " ") + "\n")
	byf.WriteString("COUNT " + joinInts(pp.Count) + "\n")
	byf.WriteString(fmt.Sprintf("WIDTH %d\n", pp.Width))
	byf.WriteString(fmt.Sprintf("HEIGHT %d\n", pp.Height))
	byf.WriteString("VIEWPOINT " + viewpoint(pp.Viewpoint) + "\n")
	byf.WriteString(fmt.Sprintf("POINTS %d\n", pp.Points))
	byf.WriteString("DATA " + dt.String() + "\n")
	if _, err := w.Write(byf.Bytes()); err != nil {
		return err
	}
	if dt == DataASCII {
		return encodeASCII(pp, w)
	}
	return encodeCompressed(pp, w)
}

// encodeCompressed writes the binary_compressed body: the points are
// reordered field by field, then LZF compressed behind two u32 sizes.
func encodeCompressed(pp *pc.PointCloud, w io.Writer) error {
	stride := pp.Stride()
	raw := make([]byte, len(pp.Data))
	var head, off int
	for i := range pp.Fields {
		size := pp.Size[i] * pp.Count[i]
		for p := 0; p < pp.Points; p++ {
			from := p*stride + off
			copy(raw[head+p*size:], pp.Data[from:from+size])
		}
		head += size * pp.Points
		off += size
	}

	var compressed []byte
	if len(raw) > 0 {
		compressed = make([]byte, len(raw)+len(raw)/16+64)
		n, err := lzf.Compress(raw, compressed)
		if err != nil {
			return err
		}
		compressed = compressed[:n]
	}

	sizes := make([]byte, 8)
	binary.LittleEndian.PutUint32(sizes[:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(len(raw)))
	if _, err := w.Write(sizes); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

func encodeASCII(pp *pc.PointCloud, w io.Writer) error {
	stride := pp.Stride()
	line := make([]byte, 0, 128)
	for p := 0; p < pp.Points; p++ {
		line = line[:0]
		off := p * stride
		for i := range pp.Fields {
			for c := 0; c < pp.Count[i]; c++ {
				if len(line) > 0 {
					line = append(line, ' ')
				}
				var err error
				line, err = appendValue(line, pp.Data[off:off+pp.Size[i]], pp.Type[i])
				if err != nil {
					return err
				}
				off += pp.Size[i]
			}
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func appendValue(dst, b []byte, typ string) ([]byte, error) {
	le := binary.LittleEndian
	switch {
	case typ == "F" && len(b) == 4:
		return strconv.AppendFloat(dst, float64(math.Float32frombits(le.Uint32(b))), 'f', -1, 32), nil
	case typ == "F" && len(b) == 8:
		return strconv.AppendFloat(dst, math.Float64frombits(le.Uint64(b)), 'f', -1, 64), nil
	case typ == "U" && len(b) == 1:
		return strconv.AppendUint(dst, uint64(b[0]), 10), nil
	case typ == "U" && len(b) == 2:
		return strconv.AppendUint(dst, uint64(le.Uint16(b)), 10), nil
	case typ == "U" && len(b) == 4:
		return strconv.AppendUint(dst, uint64(le.Uint32(b)), 10), nil
	case typ == "I" && len(b) == 1:
		return strconv.AppendInt(dst, int64(int8(b[0])), 10), nil
	case typ == "I" && len(b) == 2:
		return strconv.AppendInt(dst, int64(int16(le.Uint16(b))), 10), nil
	case typ == "I" && len(b) == 4:
		return strconv.AppendInt(dst, int64(int32(le.Uint32(b))), 10), nil
	}
	return nil, ErrUnsupportPcdFieldType
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i := range v {
		s[i] = strconv.Itoa(v[i])
	}
	return strings.Join(s, " ")
}

func viewpoint(v []float32) string {
	if len(v) != 7 {
		return "0 0 0 1 0 0 0"
	}
	s := make([]string, len(v))
	for i := range v {
		s[i] = strconv.FormatFloat(float64(v[i]), 'f', -1, 32)
	}
	return strings.Join(s, " ")
}
