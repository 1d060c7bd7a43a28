package pcd

import (
	"math"

	"github.com/seqsense/pcgol/pc"
)

// XYArea estimates the covered ground area by counting occupied grid cells.
// precision is cells per metre: a larger value gives a finer grid, 1 gives
// one square metre per cell.
func XYArea(pp *pc.PointCloud, precision float32) (float32, error) {
	if pp.Points == 0 {
		return 0, nil
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return 0, err
	}
	areas := make(map[int]map[int]bool)
	for ; it.IsValid(); it.Incr() {
		p := it.Vec3()
		x := int(math.Floor(float64(p[0] * precision)))
		y := int(math.Floor(float64(p[1] * precision)))
		l, ok := areas[x]
		if !ok {
			l = make(map[int]bool)
			areas[x] = l
		}
		l[y] = true
	}
	var sum int
	for _, l := range areas {
		sum += len(l)
	}
	return float32(sum) / precision / precision, nil
}

// Box is an upright box rotated by Yaw radians around its centre.
type Box struct {
	CX, CY, CZ           float32
	Length, Width, Depth float32
	Yaw                  float32
}

// BoxPointCount counts the points inside b. Length runs along Yaw, Width
// across it and Depth along z.
func BoxPointCount(pp *pc.PointCloud, b Box) (int, error) {
	if pp.Points == 0 {
		return 0, nil
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return 0, err
	}
	sin, cos := math.Sincos(float64(b.Yaw))
	cx, cy := float64(b.CX), float64(b.CY)
	var count int
	for ; it.IsValid(); it.Incr() {
		p := it.Vec3()
		if p[2] > b.CZ+b.Depth/2 || p[2] < b.CZ-b.Depth/2 {
			continue
		}
		dx, dy := float64(p[0])-cx, float64(p[1])-cy
		// distances along and across the box axis
		along := math.Abs(dx*cos + dy*sin)
		across := math.Abs(-dx*sin + dy*cos)
		if along > float64(b.Length)/2 || across > float64(b.Width)/2 {
			continue
		}
		count++
	}
	return count, nil
}
