package fits

import (
	"fmt"
	"os"
)

// Writer creates a new FITS file and appends data-unit blocks
// sequentially. The destination format has no random-access rewrites:
// chunks must arrive in increasing storage order.
type Writer struct {
	file    *os.File
	path    string
	written int64 // data-unit bytes appended so far
	want    int64 // data-unit bytes the header promises
}

// CreateExclusive creates path, failing if it already exists, and
// writes the encoded header immediately. The create-only policy is
// deliberate: an interrupted run leaves a partial file that must be
// removed by the operator, never silently overwritten.
func CreateExclusive(path string, hdr *Header) (*Writer, error) {
	want, err := hdr.DataSize()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(hdr.Encode()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header to %s: %w", path, err)
	}

	return &Writer{file: f, path: path, want: want}, nil
}

// Append writes the next sequential block of data-unit bytes.
func (w *Writer) Append(data []byte) error {
	if w.file == nil {
		return fmt.Errorf("writer is closed")
	}
	if w.written+int64(len(data)) > w.want {
		return fmt.Errorf("append overruns data unit: %d + %d > %d",
			w.written, len(data), w.want)
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("append to %s: %w", w.path, err)
	}
	w.written += int64(len(data))
	return nil
}

// Finalize pads the data unit to a whole number of blocks, flushes, and
// closes the file. It fails if fewer bytes were appended than the
// header promises.
func (w *Writer) Finalize() error {
	if w.file == nil {
		return fmt.Errorf("writer is closed")
	}
	if w.written != w.want {
		return fmt.Errorf("data unit incomplete: wrote %d of %d bytes", w.written, w.want)
	}

	if pad := padToBlock(w.written) - w.written; pad > 0 {
		if _, err := w.file.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("pad %s: %w", w.path, err)
		}
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", w.path, err)
	}
	return w.Close()
}

// Close closes the underlying file without padding. Safe to call more
// than once; used for cleanup after a failed run.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
