package main

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"lascloud/pkg/pcd"
)

var cfg struct {
	in         string
	out        string
	compressed bool
	ascii      bool
	recenter   bool
	verbose    bool
}

var cmd = &cobra.Command{
	Use:   "las-to-pcd",
	Short: "Convert LAS point clouds to PCD",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		logger, err := newLogger(cfg.verbose)
		if err != nil {
			return err
		}
		defer logger.Sync()

		dt := pcd.DataBinary
		switch {
		case cfg.compressed && cfg.ascii:
			return errors.New("--compressed and --ascii are exclusive")
		case cfg.compressed:
			dt = pcd.DataBinaryCompressed
		case cfg.ascii:
			dt = pcd.DataASCII
		}
		opts := pcd.Options{Recenter: cfg.recenter, Logger: logger}

		if strings.HasSuffix(cfg.in, ".zip") {
			out := cfg.out
			if out == "" {
				out = zipOutName(cfg.in)
			}
			return transZipFile(cfg.in, out, dt, opts)
		}
		st, err := os.Stat(cfg.in)
		if err != nil {
			return err
		}
		if !st.IsDir() {
			out := cfg.out
			if out == "" {
				out = pcd.PcdName(cfg.in)
			}
			if err := pcd.TransFileToPcd(cfg.in, out, dt, opts); err != nil {
				return err
			}
			logger.Info("converted", zap.String("src", cfg.in), zap.String("out", out))
			return nil
		}
		out := cfg.out
		if out == "" {
			out = cfg.in
		}
		return transDir(cfg.in, out, dt, opts)
	},
}

func init() {
	cmd.PersistentFlags().StringVarP(&cfg.in, "in", "i", "", "input las file, zipFile or dir")
	cmd.PersistentFlags().StringVarP(&cfg.out, "out", "o", "", "output pcd file, zipFile or dir")
	cmd.PersistentFlags().BoolVar(&cfg.compressed, "compressed", false, "write binary_compressed pcd")
	cmd.PersistentFlags().BoolVar(&cfg.ascii, "ascii", false, "write ascii pcd")
	cmd.PersistentFlags().BoolVar(&cfg.recenter, "recenter", false, "subtract the las offset from coordinates")
	cmd.PersistentFlags().BoolVarP(&cfg.verbose, "verbose", "v", false, "debug logging")

	cmd.MarkPersistentFlagRequired("in")
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	lc := zap.NewDevelopmentConfig()
	if !verbose {
		lc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return lc.Build()
}

func zipOutName(in string) string {
	base := filepath.Base(in)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-pcd" + ext
}

// transZipFile converts every LAS entry of the zip archive in and copies
// the other entries unchanged.
func transZipFile(in, out string, dt pcd.DataType, opts pcd.Options) (err error) {
	if filepath.Clean(out) == filepath.Clean(in) {
		return errors.New("input file can not be the same as output file")
	}
	inZip, err := zip.OpenReader(in)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, inZip.Close())
	}()
	outFile, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, outFile.Close())
	}()
	outZip := zip.NewWriter(outFile)
	defer func() {
		err = multierr.Combine(outZip.Close(), err)
	}()

	for _, f := range inZip.File {
		if !pcd.IsSource(f.Name) {
			if err := copyRaw(outZip, f); err != nil {
				return err
			}
			continue
		}
		if err := transZipEntry(outZip, f, dt, opts); err != nil {
			return errors.Wrap(err, f.Name)
		}
		opts.Logger.Debug("converted zip entry", zap.String("name", f.Name))
	}
	return nil
}

func transZipEntry(outZip *zip.Writer, f *zip.File, dt pcd.DataType, opts pcd.Options) (err error) {
	lr, err := f.Open()
	if err != nil {
		return err
	}
	defer lr.Close()
	r, err := pcd.DecodeLAS(lr, strings.HasSuffix(strings.ToLower(f.Name), ".xz"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()
	w, err := outZip.Create(pcd.PcdName(f.Name))
	if err != nil {
		return err
	}
	return pcd.Convert(r, w, dt, opts)
}

func copyRaw(outZip *zip.Writer, f *zip.File) error {
	w, err := outZip.CreateRaw(&f.FileHeader)
	if err != nil {
		return err
	}
	r, err := f.OpenRaw()
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

// transDir converts the LAS files directly inside sourceDir into outDir.
func transDir(sourceDir, outDir string, dt pcd.DataType, opts pcd.Options) error {
	ds, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}
	for _, d := range ds {
		fn := d.Name()
		if d.IsDir() || !pcd.IsSource(fn) {
			continue
		}
		src := filepath.Join(sourceDir, fn)
		out := filepath.Join(outDir, pcd.PcdName(fn))
		if err := pcd.TransFileToPcd(src, out, dt, opts); err != nil {
			return err
		}
		opts.Logger.Info("converted", zap.String("src", src), zap.String("out", out))
	}
	return nil
}
