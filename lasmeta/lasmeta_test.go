package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.uber.org/zap/zaptest"

	"lascloud/pkg/las"
	"lascloud/pkg/las/lastest"
)

func writeLAS(t *testing.T) string {
	t.Helper()
	f := &lastest.File{
		Format: 0,
		Scale:  r3.Vector{X: 0.01, Y: 0.01, Z: 0.01},
		Points: []las.Point{
			{X: 10, Y: 10, Classification: 2},
			{X: 50, Y: 50, Classification: 2},
			{X: 205, Y: 5, Classification: 6},
		},
	}
	name := filepath.Join(t.TempDir(), "tile.las")
	if err := os.WriteFile(name, f.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestServe(t *testing.T) {
	name := writeLAS(t)
	var in bytes.Buffer
	enc := json.NewEncoder(&in)
	reqs := []Request{
		{LASFile: name, CellSize: 1, Boxes: [][]float32{{0.3, 0.3, 0, 1, 1, 1, 0}, {2, 0, 0, 1, 1, 1, 0}}},
		{LASFile: filepath.Join(filepath.Dir(name), "missing.las")},
		{LASFile: name, Boxes: [][]float32{{1, 2, 3}}},
	}
	for _, r := range reqs {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := serve(&in, &out, zaptest.NewLogger(t)); err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(&out)
	var res []Result
	for dec.More() {
		var r Result
		if err := dec.Decode(&r); err != nil {
			t.Fatal(err)
		}
		res = append(res, r)
	}
	if len(res) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(res))
	}

	ok := res[0]
	if ok.Error != "" {
		t.Fatal(ok.Error)
	}
	if ok.NumPoints != 3 || ok.Area != 2 {
		t.Errorf("Expected 3 points over 2m2, got %d over %f", ok.NumPoints, ok.Area)
	}
	if len(ok.BoxCount) != 2 || ok.BoxCount[0] != 2 || ok.BoxCount[1] != 1 {
		t.Errorf("Unexpected box counts %v", ok.BoxCount)
	}
	if ok.ClassCount[2] != 2 || ok.ClassCount[6] != 1 {
		t.Errorf("Unexpected class counts %v", ok.ClassCount)
	}

	if res[1].Error == "" {
		t.Error("Expected error for missing file")
	}
	if !strings.Contains(res[2].Error, "invalid box") {
		t.Errorf("Expected invalid box error, got %q", res[2].Error)
	}
}

func TestServeSyntaxError(t *testing.T) {
	var out bytes.Buffer
	if err := serve(strings.NewReader("{not json"), &out, zaptest.NewLogger(t)); err != nil {
		t.Fatal(err)
	}
	var r Result
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatal(err)
	}
	if r.Error == "" {
		t.Error("Expected error result")
	}
}

func TestMeasureEmpty(t *testing.T) {
	name := filepath.Join(t.TempDir(), "empty.las")
	if err := os.WriteFile(name, (&lastest.File{Format: 1}).Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	res, err := measure(Request{LASFile: name, Boxes: [][]float32{{0, 0, 0, 1, 1, 1, 0}}}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.NumPoints != 0 || res.Area != 0 || len(res.ClassCount) != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}
	if len(res.BoxCount) != 1 || res.BoxCount[0] != 0 {
		t.Errorf("Expected one empty box count, got %v", res.BoxCount)
	}
}
