package fits

import (
	"fmt"
	"os"

	"golang.org/x/exp/mmap"
)

// File is a FITS file opened read-only through a memory mapping. The
// operating system's page cache, not the process heap, holds whatever
// part of the data unit a read touches.
type File struct {
	path    string
	r       *mmap.ReaderAt
	hdr     *Header
	dataOff int64
}

// SliceSpec selects elements along one storage-order axis: zero-based
// half-open [Start, Stop) with a positive Step.
type SliceSpec struct {
	Start int64
	Stop  int64
	Step  int64
}

// Count returns the number of selected elements.
func (s SliceSpec) Count() int64 {
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + s.Step - 1) / s.Step
}

// Open memory-maps a FITS file read-only and parses its primary
// header. The returned File stays valid until Close.
func Open(path string) (*File, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	hdr, dataOff, err := ParseHeader(r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	dataSize, err := hdr.DataSize()
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if int64(r.Len()) < dataOff+dataSize {
		_ = r.Close()
		return nil, fmt.Errorf("%s: truncated data unit: have %d bytes, need %d",
			path, r.Len(), dataOff+dataSize)
	}

	return &File{path: path, r: r, hdr: hdr, dataOff: dataOff}, nil
}

// Header returns the parsed primary header.
func (f *File) Header() *Header { return f.hdr }

// Shape returns the axis sizes in declared order (NAXIS1 first).
func (f *File) Shape() []int64 { return f.hdr.Shape() }

// ElemSize returns the size in bytes of one array element.
func (f *File) ElemSize() int64 { return f.hdr.ElemSize() }

// Close releases the memory mapping. Safe to call more than once.
func (f *File) Close() error {
	if f.r == nil {
		return nil
	}
	err := f.r.Close()
	f.r = nil
	return err
}

// ReadSlice materializes the selected, strided region of the data unit
// as raw big-endian bytes in row-major output order. Specs are given in
// storage order: slowest-varying axis first, which is the reverse of
// the declared axis order (NAXIS1 varies fastest on disk).
func (f *File) ReadSlice(specs []SliceSpec) ([]byte, error) {
	if f.r == nil {
		return nil, fmt.Errorf("file is closed")
	}

	dims := storageDims(f.hdr.Shape())
	if len(specs) != len(dims) {
		return nil, fmt.Errorf("slice has %d axes, data has %d", len(specs), len(dims))
	}

	outElems := int64(1)
	for i, s := range specs {
		if s.Step < 1 {
			return nil, fmt.Errorf("axis %d: step %d must be positive", i, s.Step)
		}
		if s.Start < 0 || s.Stop > dims[i] || s.Stop <= s.Start {
			return nil, fmt.Errorf("axis %d: slice [%d:%d) outside extent %d",
				i, s.Start, s.Stop, dims[i])
		}
		var err error
		outElems, err = safeMul(outElems, s.Count())
		if err != nil {
			return nil, err
		}
	}

	elemSize := f.hdr.ElemSize()
	outBytes, err := safeMul(outElems, elemSize)
	if err != nil {
		return nil, err
	}
	out := make([]byte, outBytes)

	// Row-major element strides of the source array, storage order.
	srcStride := make([]int64, len(dims))
	stride := int64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		srcStride[i] = stride
		stride *= dims[i]
	}

	var outOff int64
	if err := f.copySlice(specs, srcStride, elemSize, 0, 0, out, &outOff); err != nil {
		return nil, err
	}
	return out, nil
}

// copySlice recursively walks the selection, copying one contiguous run
// per innermost row when the last axis is unstrided, otherwise element
// by element.
func (f *File) copySlice(
	specs []SliceSpec,
	srcStride []int64,
	elemSize int64,
	dim int,
	srcBase int64,
	out []byte,
	outOff *int64,
) error {
	s := specs[dim]

	if dim == len(specs)-1 {
		if s.Step == 1 {
			// Contiguous run: one read for the whole row.
			n := (s.Stop - s.Start) * elemSize
			src := f.dataOff + (srcBase+s.Start)*elemSize
			if _, err := f.r.ReadAt(out[*outOff:*outOff+n], src); err != nil {
				return fmt.Errorf("data read at %d: %w", src, err)
			}
			*outOff += n
			return nil
		}
		for i := s.Start; i < s.Stop; i += s.Step {
			src := f.dataOff + (srcBase+i)*elemSize
			if _, err := f.r.ReadAt(out[*outOff:*outOff+elemSize], src); err != nil {
				return fmt.Errorf("data read at %d: %w", src, err)
			}
			*outOff += elemSize
		}
		return nil
	}

	for i := s.Start; i < s.Stop; i += s.Step {
		if err := f.copySlice(specs, srcStride, elemSize, dim+1,
			srcBase+i*srcStride[dim], out, outOff); err != nil {
			return err
		}
	}
	return nil
}

// storageDims reverses a declared-order shape into storage order.
func storageDims(shape []int64) []int64 {
	dims := make([]int64, len(shape))
	for i, n := range shape {
		dims[len(shape)-1-i] = n
	}
	return dims
}

// Validate reopens a file read-only and checks it is structurally
// well-formed: parseable header and a data unit padded to a whole
// number of blocks.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	hdr, dataOff, err := ParseHeader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	dataSize, err := hdr.DataSize()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	want := dataOff + padToBlock(dataSize)
	if fi.Size() != want {
		return fmt.Errorf("%s: file size %d, want %d (header %d + padded data %d)",
			path, fi.Size(), want, dataOff, padToBlock(dataSize))
	}
	return nil
}
