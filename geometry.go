package subfits

import (
	"fmt"

	"github.com/Staveley-Smith/subfits/internal/fits"
)

// Geometry is the fully resolved selection: clamped per-axis ranges,
// the derived output shape, the storage-order slice of the source
// array, and which axes come out degenerate (size 1). Identification
// of degenerate axes happens here; acting on them is the header
// transform's job, gated by the caller's drop flag.
type Geometry struct {
	Ranges   []AxisRange // finalized, declared axis order
	InShape  []int64     // source sizes, declared order
	OutShape []int64     // rdim per axis, declared order

	// Slices selects the region in storage order: declared axis 1 maps
	// to the last storage position because it varies fastest on disk.
	Slices []fits.SliceSpec

	// Degenerate lists declared-order axis positions (0-based) whose
	// output size is exactly 1.
	Degenerate []int
}

// PlanGeometry finalizes ranges against the true axis sizes and
// derives the output geometry. Bound sentinels (0) clamp to the full
// extent; a resolved bound outside [1, size] is ErrOutOfBounds and a
// range with max below min is ErrEmptySelection.
func PlanGeometry(shape []int64, ranges []AxisRange) (*Geometry, error) {
	if len(ranges) != len(shape) {
		return nil, fmt.Errorf("have %d ranges for %d axes", len(ranges), len(shape))
	}

	g := &Geometry{
		Ranges:   make([]AxisRange, len(shape)),
		InShape:  append([]int64(nil), shape...),
		OutShape: make([]int64, len(shape)),
		Slices:   make([]fits.SliceSpec, len(shape)),
	}

	for i, r := range ranges {
		size := shape[i]
		if r.Min == 0 {
			r.Min = 1
		}
		if r.Max == 0 {
			r.Max = size
		}
		if r.Stride == 0 {
			r.Stride = 1
		}

		if r.Min < 1 || r.Min > size || r.Max < 1 || r.Max > size {
			return nil, fmt.Errorf("%w: axis %d range [%d, %d] vs extent %d",
				ErrOutOfBounds, i+1, r.Min, r.Max, size)
		}
		if r.Max < r.Min {
			return nil, fmt.Errorf("%w: axis %d range [%d, %d]",
				ErrEmptySelection, i+1, r.Min, r.Max)
		}

		rdim := (r.Max-r.Min)/r.Stride + 1
		g.Ranges[i] = r
		g.OutShape[i] = rdim
		if rdim == 1 {
			g.Degenerate = append(g.Degenerate, i)
		}

		// Zero-based half-open slice, placed in storage order.
		g.Slices[len(shape)-1-i] = fits.SliceSpec{
			Start: r.Min - 1,
			Stop:  r.Max,
			Step:  r.Stride,
		}
	}

	return g, nil
}

// OutVoxels returns the total output voxel count.
func (g *Geometry) OutVoxels() int64 {
	total := int64(1)
	for _, n := range g.OutShape {
		total *= n
	}
	return total
}

// storageOutShape returns the output shape in storage order
// (slowest-varying axis first).
func (g *Geometry) storageOutShape() []int64 {
	out := make([]int64, len(g.OutShape))
	for i, n := range g.OutShape {
		out[len(g.OutShape)-1-i] = n
	}
	return out
}
