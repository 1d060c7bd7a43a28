package las

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IsLAS reports whether name has a .las extension and starts with the LAS
// signature.
func IsLAS(name string) bool {
	if strings.ToLower(filepath.Ext(name)) != ".las" {
		return false
	}
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	return HasSignature(f)
}

// HasSignature reports whether r starts with the LAS signature.
func HasSignature(r io.Reader) bool {
	sig := make([]byte, len(Signature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return false
	}
	return string(sig) == Signature
}
