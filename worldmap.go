package subfits

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Staveley-Smith/subfits/internal/wcs"
)

// fitsOrigin is the index convention passed at every transform call:
// FITS pixel indices are 1-based. Kept explicit so the convention at
// the wcs boundary is never implicit.
const fitsOrigin = 1

// mapWorldBounds converts per-axis world bound pairs into 1-based index
// bounds, writing them into ranges (which keeps its strides). The
// per-axis minima and maxima are each transformed as one sample point.
// A world sentinel of 0 keeps the full-extent sentinel on that side;
// the transform result for a sentinel slot is discarded, so a
// half-given pair never inherits the mapped image of a zero. When both
// bounds are given and the axis's world direction runs against its
// index direction the mapped pair comes out inverted; it is swapped,
// with a notice, so the index range is always non-decreasing.
func mapWorldBounds(t *wcs.Transform, spec RegionSpec, ranges []AxisRange, log *slog.Logger) error {
	naxis := len(ranges)
	pairs := spec.worldPairs(naxis)

	lo := make([]float64, naxis)
	hi := make([]float64, naxis)
	for i, p := range pairs {
		lo[i] = p[0]
		hi[i] = p[1]
	}

	mapped, err := t.WorldToPixel([][]float64{lo, hi}, fitsOrigin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCoordinateTransform, err)
	}

	for i := range ranges {
		minGiven := pairs[i][0] != 0
		maxGiven := pairs[i][1] != 0

		var idxMin, idxMax int64
		if minGiven {
			idxMin = int64(math.Round(mapped[0][i]))
		}
		if maxGiven {
			idxMax = int64(math.Round(mapped[1][i]))
		}

		if minGiven && maxGiven && idxMax < idxMin {
			log.Info("world range runs against axis direction, swapping",
				"axis", i+1, "min", idxMax, "max", idxMin)
			idxMin, idxMax = idxMax, idxMin
		}

		ranges[i].Min = idxMin
		ranges[i].Max = idxMax
	}
	return nil
}

// logCubeWorldBounds reports the world coordinates of the whole cube's
// corner pixels. Operator display only; no effect on the extraction.
func logCubeWorldBounds(t *wcs.Transform, shape []int64, log *slog.Logger) {
	first := make([]float64, len(shape))
	last := make([]float64, len(shape))
	for i, n := range shape {
		first[i] = 1
		last[i] = float64(n)
	}

	corners, err := t.PixelToWorld([][]float64{first, last}, fitsOrigin)
	if err != nil {
		log.Warn("could not compute cube world bounds", "error", err)
		return
	}
	for i := range shape {
		log.Info("cube world extent",
			"axis", i+1, "first", corners[0][i], "last", corners[1][i])
	}
}
