package util

import (
	"log/slog"
	"os"
)

// CloseFileFunc closes f in a defer, logging instead of dropping the error.
func CloseFileFunc(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Warn("close file", "path", f.Name(), "err", err)
	}
}
