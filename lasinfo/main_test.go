package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"lascloud/pkg/las"
	"lascloud/pkg/las/lastest"
)

func infoFile() *lastest.File {
	return &lastest.File{
		Version:            las.Version{Major: 1, Minor: 4},
		Format:             2,
		RecordLength:       28,
		SystemID:           "survey",
		GeneratingSoftware: "lastest",
		Scale:              r3.Vector{X: 0.5, Y: 0.5, Z: 0.5},
		VLRs: []las.VLR{
			{UserID: las.UserIDProjection, RecordID: las.RecordIDGeoKeyDirectory, Payload: lastest.GeoKeyPayload(las.GeoKeys{
				KeyDirectoryVersion: 1, KeyRevision: 1,
				Keys: []las.GeoKey{{KeyID: 3072, ValueOffset: 32633}},
			})},
			{UserID: las.UserIDProjection, RecordID: las.RecordIDOGCWKT, Payload: []byte("PROJCS[\"UTM 33N\"]\x00")},
			{UserID: las.UserIDSpec, RecordID: las.RecordIDExtraBytes, Payload: lastest.ExtraBytesPayload(
				las.ExtraBytesDescriptor{DataType: 3, Name: "range"},
			)},
		},
		EVLRs: []las.VLR{{UserID: "vendor", RecordID: 7, Payload: []byte{1, 2, 3}}},
		Points: []las.Point{
			{X: 2, Y: 4, Z: 6, Intensity: 9, ReturnNumber: 1, NumberOfReturns: 2, Classification: 2,
				Color: las.RGB{Red: 1, Green: 2, Blue: 3}, ExtraBytes: []byte{0, 1}},
			{X: 4, Y: 8, Z: 12, ExtraBytes: []byte{0, 2}},
		},
	}
}

func openInfo(t *testing.T) *las.Reader {
	t.Helper()
	r, err := las.Open(bytes.NewReader(infoFile().Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestDescribe(t *testing.T) {
	info, err := describe(openInfo(t), 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.4" || info.PointFormat != 2 || info.NumPoints != 2 {
		t.Errorf("Unexpected header %+v", info)
	}
	if len(info.VLRs) != 3 || len(info.EVLRs) != 1 || info.EVLRs[0].Length != 3 {
		t.Errorf("Unexpected records %+v %+v", info.VLRs, info.EVLRs)
	}
	if len(info.GeoKeys) != 1 || info.GeoKeys[0].ValueOffset != 32633 {
		t.Errorf("Unexpected geokeys %+v", info.GeoKeys)
	}
	if info.WKT != "PROJCS[\"UTM 33N\"]" {
		t.Errorf("Unexpected wkt %q", info.WKT)
	}
	if len(info.ExtraBytes) != 1 || info.ExtraBytes[0].Name != "range" || info.ExtraBytes[0].Width != 2 {
		t.Errorf("Unexpected extra bytes %+v", info.ExtraBytes)
	}
	if len(info.Points) != 1 {
		t.Fatalf("Expected 1 point, got %d", len(info.Points))
	}
	p := info.Points[0]
	if p.XYZ != [3]float64{1, 2, 3} || p.Return != [2]uint8{1, 2} || len(p.RGB) != 3 {
		t.Errorf("Unexpected point %+v", p)
	}

	info, err = describe(openInfo(t), 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Points) != 2 || info.EVLRs != nil {
		t.Errorf("Expected all points and no evlrs, got %d points %v", len(info.Points), info.EVLRs)
	}
}

func TestWrite(t *testing.T) {
	info, err := describe(openInfo(t), 2, false)
	if err != nil {
		t.Fatal(err)
	}

	testCases := map[string]func([]byte, interface{}) error{
		"yaml": yaml.Unmarshal,
		"json": json.Unmarshal,
	}
	for format, unmarshal := range testCases {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := write(&buf, info, format); err != nil {
				t.Fatal(err)
			}
			out := map[string]interface{}{}
			if err := unmarshal(buf.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if out["version"] != "1.4" || out["system_id"] != "survey" {
				t.Errorf("Unexpected output %v", out)
			}
			if pts, ok := out["points"].([]interface{}); !ok || len(pts) != 2 {
				t.Errorf("Expected 2 points, got %v", out["points"])
			}
		})
	}
	if err := write(&bytes.Buffer{}, info, "xml"); err == nil {
		t.Error("Expected error on unknown format")
	}
}

func TestCommand(t *testing.T) {
	name := filepath.Join(t.TempDir(), "tile.las")
	if err := os.WriteFile(name, infoFile().Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--format", "json", "-n", "0", name})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"generating_software": "lastest"`) {
		t.Errorf("Unexpected output %s", buf.String())
	}
}
