package pcd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"go.uber.org/multierr"

	"lascloud/pkg/las"
)

var (
	ErrUnsupportPointCloudFileType = errors.New("unsupport pointCloud fileType")
)

// IsSource reports whether name looks like a LAS input by extension.
func IsSource(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".las") || strings.HasSuffix(n, ".las.xz")
}

// PcdName maps a LAS input name to its PCD output name.
func PcdName(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".las.xz"):
		return name[:len(name)-len(".las.xz")] + ".pcd"
	case strings.HasSuffix(n, ".las"):
		return name[:len(name)-len(".las")] + ".pcd"
	}
	return name + ".pcd"
}

// DecodeLAS loads a LAS stream that cannot be read at random offsets, such
// as a zip entry, into memory. xz compressed streams are inflated first.
func DecodeLAS(r io.Reader, compressed bool, opts ...las.Option) (*las.Reader, error) {
	if compressed {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "xz")
		}
		r = xr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return las.Open(bytes.NewReader(b), opts...)
}

// OpenSource opens a .las file in place or inflates a .las.xz file.
func OpenSource(name string, opts ...las.Option) (*las.Reader, error) {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".las"):
		return las.OpenFile(name, opts...)
	case strings.HasSuffix(n, ".las.xz"):
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, err := DecodeLAS(f, true, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", name)
		}
		return r, nil
	}
	return nil, errors.Wrap(ErrUnsupportPointCloudFileType, filepath.Ext(name))
}

// Convert writes every point of r to w as PCD.
func Convert(r *las.Reader, w io.Writer, dt DataType, opts Options) error {
	pp, err := FromLAS(r, opts)
	if err != nil {
		return err
	}
	return Encode(pp, w, dt)
}

// TransFileToPcd converts the LAS file sourceFile into outFile.
func TransFileToPcd(sourceFile, outFile string, dt DataType, opts Options) (err error) {
	var lo []las.Option
	if opts.Logger != nil {
		lo = append(lo, las.WithLogger(opts.Logger))
	}
	r, err := OpenSource(sourceFile, lo...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()
	return Convert(r, out, dt, opts)
}
