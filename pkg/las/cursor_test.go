package las_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"lascloud/pkg/las"
)

// readerAtOnly hides Size so the cursor cannot learn the length up front.
type readerAtOnly struct {
	r *bytes.Reader
}

func (r readerAtOnly) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

func fieldBytes() []byte {
	b := make([]byte, 0, 27)
	b = append(b, 0x7f)
	b = binary.LittleEndian.AppendUint16(b, 0xbeef)
	b = binary.LittleEndian.AppendUint32(b, 0xdeadbeef)
	b = binary.LittleEndian.AppendUint64(b, 0x0102030405060708)
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(1.5))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(-2.25))
	return b
}

func TestCursorFields(t *testing.T) {
	b := fieldBytes()
	c := las.NewCursor(bytes.NewReader(b), int64(len(b)))

	u8, err := c.ReadU8()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u8, test.ShouldEqual, uint8(0x7f))

	u16, err := c.ReadU16()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u16, test.ShouldEqual, uint16(0xbeef))

	u32, err := c.ReadU32()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u32, test.ShouldEqual, uint32(0xdeadbeef))

	u64, err := c.ReadU64()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u64, test.ShouldEqual, uint64(0x0102030405060708))

	f32, err := c.ReadF32()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f32, test.ShouldEqual, float32(1.5))

	f64, err := c.ReadF64()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f64, test.ShouldEqual, -2.25)

	test.That(t, c.Remaining(), test.ShouldEqual, int64(0))
	_, err = c.ReadU8()
	test.That(t, errors.Is(err, las.ErrTruncatedStream), test.ShouldBeTrue)
}

func TestCursorSeek(t *testing.T) {
	b := fieldBytes()
	c := las.NewCursor(bytes.NewReader(b), int64(len(b)))

	c.Seek(3)
	v, err := c.ReadI32()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, uint32(v), test.ShouldEqual, uint32(0xdeadbeef))
	test.That(t, c.Pos(), test.ShouldEqual, int64(7))
	test.That(t, c.Remaining(), test.ShouldEqual, int64(len(b)-7))

	t.Run("past end is lazy", func(t *testing.T) {
		c.Seek(1000)
		test.That(t, c.Remaining(), test.ShouldEqual, int64(0))
		_, err := c.ReadU16()
		test.That(t, errors.Is(err, las.ErrTruncatedStream), test.ShouldBeTrue)
		test.That(t, c.Pos(), test.ShouldEqual, int64(1000))
	})

	t.Run("short read does not advance", func(t *testing.T) {
		c.Seek(int64(len(b) - 2))
		_, err := c.ReadU32()
		test.That(t, errors.Is(err, las.ErrTruncatedStream), test.ShouldBeTrue)
		test.That(t, c.Pos(), test.ShouldEqual, int64(len(b)-2))
	})
}

func TestCursorUnknownSize(t *testing.T) {
	b := fieldBytes()
	c := las.NewCursor(readerAtOnly{bytes.NewReader(b)}, -1)
	test.That(t, c.Remaining(), test.ShouldEqual, int64(-1))

	c.Seek(int64(len(b) - 8))
	f64, err := c.ReadF64()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f64, test.ShouldEqual, -2.25)

	_, err = c.ReadU8()
	test.That(t, errors.Is(err, las.ErrTruncatedStream), test.ShouldBeTrue)
}

func TestCursorClone(t *testing.T) {
	b := fieldBytes()
	c := las.NewCursor(bytes.NewReader(b), int64(len(b)))
	c.Seek(1)
	d := c.Clone()

	_, err := d.ReadU64()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Pos(), test.ShouldEqual, int64(1))
	test.That(t, d.Pos(), test.ShouldEqual, int64(9))

	u16, err := c.ReadU16()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u16, test.ShouldEqual, uint16(0xbeef))
}

func TestCursorString(t *testing.T) {
	b := append([]byte("LASF_Spec"), make([]byte, 7)...)
	c := las.NewCursor(bytes.NewReader(b), int64(len(b)))
	s, err := c.ReadString(16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, "LASF_Spec")
	test.That(t, c.Pos(), test.ShouldEqual, int64(16))
}
