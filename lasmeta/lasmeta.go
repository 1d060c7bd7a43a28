package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lascloud/pkg/las"
	"lascloud/pkg/pcd"
)

// Request names a LAS file and the labelled boxes to count points in. Each
// box is cx, cy, cz, length, width, depth, yaw. With Recenter the boxes are
// relative to the LAS header offset.
type Request struct {
	LASFile  string
	Boxes    [][]float32
	CellSize float32
	Recenter bool
}

type Result struct {
	Error      string
	NumPoints  uint64
	Area       float32
	BoxCount   []int
	ClassCount map[uint8]int
}

// area grid cell edge in metres
const defaultCellSize = 0.08

// serve answers one Result per JSON Request read from in until in is
// exhausted. A failed request is reported in Result.Error and does not
// stop the loop.
func serve(in io.Reader, out io.Writer, logger *zap.Logger) error {
	decoder := json.NewDecoder(in)
	encoder := json.NewEncoder(out)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// the stream cannot be resynchronised after a syntax error
			return encoder.Encode(Result{Error: err.Error()})
		}
		res, err := measure(req, logger)
		if err != nil {
			logger.Warn("request failed", zap.String("file", req.LASFile), zap.Error(err))
			res = Result{Error: err.Error()}
		}
		if err := encoder.Encode(res); err != nil {
			return err
		}
	}
}

func measure(req Request, logger *zap.Logger) (Result, error) {
	var res Result
	boxes := make([]pcd.Box, len(req.Boxes))
	for i, b := range req.Boxes {
		if len(b) != 7 {
			return res, errors.Errorf("invalid box %d: %d values", i, len(b))
		}
		boxes[i] = pcd.Box{CX: b[0], CY: b[1], CZ: b[2], Length: b[3], Width: b[4], Depth: b[5], Yaw: b[6]}
	}
	cell := req.CellSize
	if cell <= 0 {
		cell = defaultCellSize
	}

	r, err := pcd.OpenSource(req.LASFile, las.WithLogger(logger))
	if err != nil {
		return res, err
	}
	defer r.Close()

	pp, err := pcd.FromLAS(r, pcd.Options{Recenter: req.Recenter, Logger: logger})
	if err != nil {
		return res, err
	}
	res.NumPoints = uint64(pp.Points)
	res.ClassCount = map[uint8]int{}
	if pp.Points > 0 {
		lit, err := pp.Uint32Iterator("label")
		if err != nil {
			return res, err
		}
		for i := 0; i < pp.Points; i++ {
			res.ClassCount[uint8(lit.Uint32())]++
			lit.Incr()
		}
	}
	if res.Area, err = pcd.XYArea(pp, 1/cell); err != nil {
		return res, err
	}
	res.BoxCount = make([]int, len(boxes))
	for i, b := range boxes {
		if res.BoxCount[i], err = pcd.BoxPointCount(pp, b); err != nil {
			return res, err
		}
	}
	return res, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	if err := serve(os.Stdin, os.Stdout, logger); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
