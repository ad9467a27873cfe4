package wav

import (
	"io"
	"os"

	"github.com/desk-utils-lab/internal/fileio"
)

// WriteFile streams samples into an atomically replaced file at path.
func WriteFile(path string, f Format, samples []int16) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return fileio.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return Encode(w, f, samples)
	})
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (Format, []int16, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Format{}, nil, err
	}
	defer fh.Close()
	return Decode(fh)
}
