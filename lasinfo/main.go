package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lascloud/pkg/las"
	"lascloud/pkg/pcd"
)

var cfg struct {
	format  string
	points  int
	evlrs   bool
	verbose bool
}

var cmd = &cobra.Command{
	Use:   "lasinfo FILE",
	Short: "Print the header, records and first points of a LAS file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		lc := zap.NewDevelopmentConfig()
		if !cfg.verbose {
			lc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		}
		logger, err := lc.Build()
		if err != nil {
			return err
		}
		defer logger.Sync()

		r, err := pcd.OpenSource(args[0], las.WithLogger(logger))
		if err != nil {
			return err
		}
		defer r.Close()
		info, err := describe(r, cfg.points, cfg.evlrs)
		if err != nil {
			return err
		}
		return write(cmd.OutOrStdout(), info, cfg.format)
	},
}

func init() {
	cmd.Flags().StringVarP(&cfg.format, "format", "f", "yaml", "output format: yaml or json")
	cmd.Flags().IntVarP(&cfg.points, "points", "n", 5, "number of points to print")
	cmd.Flags().BoolVar(&cfg.evlrs, "evlrs", false, "read the extended records after the point data")
	cmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type Info struct {
	Version            string     `yaml:"version" json:"version"`
	SystemID           string     `yaml:"system_id" json:"system_id"`
	GeneratingSoftware string     `yaml:"generating_software" json:"generating_software"`
	Created            string     `yaml:"created,omitempty" json:"created,omitempty"`
	FileSourceID       uint16     `yaml:"file_source_id" json:"file_source_id"`
	PointFormat        uint8      `yaml:"point_format" json:"point_format"`
	PointRecordLength  uint16     `yaml:"point_record_length" json:"point_record_length"`
	NumPoints          uint64     `yaml:"num_points" json:"num_points"`
	NumPointsByReturn  []uint64   `yaml:"num_points_by_return" json:"num_points_by_return"`
	Scale              [3]float64 `yaml:"scale,flow" json:"scale"`
	Offset             [3]float64 `yaml:"offset,flow" json:"offset"`
	Min                [3]float64 `yaml:"min,flow" json:"min"`
	Max                [3]float64 `yaml:"max,flow" json:"max"`

	VLRs       []RecordInfo     `yaml:"vlrs,omitempty" json:"vlrs,omitempty"`
	EVLRs      []RecordInfo     `yaml:"evlrs,omitempty" json:"evlrs,omitempty"`
	GeoKeys    []las.GeoKey     `yaml:"geokeys,omitempty" json:"geokeys,omitempty"`
	WKT        string           `yaml:"wkt,omitempty" json:"wkt,omitempty"`
	ExtraBytes []ExtraBytesInfo `yaml:"extra_bytes,omitempty" json:"extra_bytes,omitempty"`
	Points     []PointInfo      `yaml:"points,omitempty" json:"points,omitempty"`
}

type RecordInfo struct {
	UserID      string `yaml:"user_id" json:"user_id"`
	RecordID    uint16 `yaml:"record_id" json:"record_id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Length      uint64 `yaml:"length" json:"length"`
}

type ExtraBytesInfo struct {
	Name     string `yaml:"name" json:"name"`
	DataType uint8  `yaml:"data_type" json:"data_type"`
	Width    int    `yaml:"width" json:"width"`
}

type PointInfo struct {
	XYZ            [3]float64 `yaml:"xyz,flow" json:"xyz"`
	Intensity      uint16     `yaml:"intensity" json:"intensity"`
	Return         [2]uint8   `yaml:"return,flow" json:"return"`
	Classification uint8      `yaml:"classification" json:"classification"`
	GPSTime        float64    `yaml:"gps_time,omitempty" json:"gps_time,omitempty"`
	RGB            []uint16   `yaml:"rgb,flow,omitempty" json:"rgb,omitempty"`
}

func records(vlrs []las.VLR) []RecordInfo {
	out := make([]RecordInfo, len(vlrs))
	for i, v := range vlrs {
		out[i] = RecordInfo{UserID: v.UserID, RecordID: v.RecordID, Description: v.Description, Length: v.RecordLength}
	}
	return out
}

func describe(r *las.Reader, points int, evlrs bool) (*Info, error) {
	h, err := r.Header()
	if err != nil {
		return nil, err
	}
	info := &Info{
		Version:            h.Version.String(),
		SystemID:           h.SystemID,
		GeneratingSoftware: h.GeneratingSoftware,
		FileSourceID:       h.FileSourceID,
		PointFormat:        uint8(h.PointFormat),
		PointRecordLength:  h.PointRecordLength,
		NumPoints:          h.NumPoints,
		NumPointsByReturn:  h.NumPointsByReturn,
		Scale:              [3]float64{h.Scale.X, h.Scale.Y, h.Scale.Z},
		Offset:             [3]float64{h.Offset.X, h.Offset.Y, h.Offset.Z},
		Min:                [3]float64{h.Bounds.MinX, h.Bounds.MinY, h.Bounds.MinZ},
		Max:                [3]float64{h.Bounds.MaxX, h.Bounds.MaxY, h.Bounds.MaxZ},
	}
	if h.CreationYear != 0 {
		info.Created = time.Date(int(h.CreationYear), 1, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, int(h.CreationDay)-1).Format("2006-01-02")
	}

	vlrs, err := r.VLRs()
	if err != nil {
		return nil, err
	}
	info.VLRs = records(vlrs)
	if evlrs {
		ev, err := r.ExtendedVLRs()
		if err != nil {
			return nil, errors.Wrap(err, "evlrs")
		}
		info.EVLRs = records(ev)
	}

	gk, err := r.GeoKeys()
	if err != nil {
		return nil, errors.Wrap(err, "geokeys")
	}
	if gk != nil {
		info.GeoKeys = gk.Keys
	}
	if info.WKT, err = r.WKT(); err != nil {
		return nil, err
	}
	eb, err := r.ExtraBytes()
	if err != nil {
		return nil, errors.Wrap(err, "extra bytes")
	}
	for _, d := range eb {
		info.ExtraBytes = append(info.ExtraBytes, ExtraBytesInfo{Name: d.Name, DataType: d.DataType, Width: d.Width()})
	}

	for i := uint64(0); i < uint64(points) && i < h.NumPoints; i++ {
		p, err := r.ReadPointAt(i)
		if err != nil {
			return nil, err
		}
		v := h.Scaled(p)
		pi := PointInfo{
			XYZ:            [3]float64{v.X, v.Y, v.Z},
			Intensity:      p.Intensity,
			Return:         [2]uint8{p.ReturnNumber, p.NumberOfReturns},
			Classification: p.Classification,
			GPSTime:        p.GPSTime,
		}
		if p.Format.HasColor() {
			pi.RGB = []uint16{p.Color.Red, p.Color.Green, p.Color.Blue}
		}
		info.Points = append(info.Points, pi)
	}
	return info, nil
}

func write(w io.Writer, info *Info, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	return errors.Errorf("unknown format %q", format)
}
