package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileWriter writes artifacts through a temporary file in the destination
// directory followed by a rename, so a failed write never leaves a partial
// image behind and an existing file is replaced whole.
type FileWriter struct {
	Perm os.FileMode
}

// NewFileWriter returns a FileWriter producing 0644 files.
func NewFileWriter() *FileWriter {
	return &FileWriter{Perm: 0o644}
}

func (w *FileWriter) Write(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, w.Perm)
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("could not write image: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("could not close image file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("could not move image into place: %w", err)
	}
	return nil
}
