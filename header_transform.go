package subfits

import (
	"fmt"

	"github.com/Staveley-Smith/subfits/internal/fits"
)

// TransformHeader derives the output header from the source header and
// the resolved geometry. For every axis the reference pixel is shifted
// by the selection offset and rescaled for the stride, and the pixel
// scale is multiplied by the stride, so world coordinates of retained
// voxels are unchanged:
//
//	crpix' = (crpix − (min−1) − 1)/stride + 1
//	cdelt' = cdelt × stride
//
// With dropDegenerate set, every axis whose output size is 1 is spliced
// out of the ordered axis list, higher axes shifting down, until none
// remain among the retained axes. Removal invalidates any expressed
// axis correlation, so the PC matrix is discarded and rebuilt as an
// identity sized to the retained axis count rather than pruned.
func TransformHeader(in *fits.Header, g *Geometry, dropDegenerate bool) (*fits.Header, error) {
	out := in.Clone()

	for i := range out.Axes {
		r := g.Ranges[i]
		ax := &out.Axes[i]
		ax.Size = g.OutShape[i]

		crpix := ax.Crpix - float64(r.Min-1)
		ax.Crpix = (crpix-1)/float64(r.Stride) + 1
		ax.Cdelt *= float64(r.Stride)
	}

	if dropDegenerate {
		dropped := false
		for i := 0; i < len(out.Axes); {
			if out.Axes[i].Size == 1 {
				if len(out.Axes) == 1 {
					return nil, fmt.Errorf("%w: all axes are degenerate", ErrNoAxesRemaining)
				}
				out.Axes = append(out.Axes[:i], out.Axes[i+1:]...)
				dropped = true
				continue
			}
			i++
		}
		if dropped && in.PC != nil {
			out.PC = identity(len(out.Axes))
		}
	}

	return out, nil
}

func identity(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}
