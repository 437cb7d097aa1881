// Package wcs implements the linear (affine) world coordinate model of
// a FITS header: world = CRVAL + diag(CDELT)·PC·(pixel − CRPIX). Only
// linear transforms are supported; curvilinear projections are not
// modelled, so a sky axis is treated by its local linear approximation
// around the reference pixel.
package wcs

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Staveley-Smith/subfits/internal/fits"
)

// ErrUnsupportedTransform reports coordinate metadata the linear model
// cannot represent, such as a singular PC×CDELT matrix.
var ErrUnsupportedTransform = errors.New("unsupported coordinate transform")

// Transform converts between pixel indices and world coordinates in
// both directions. Immutable after Build.
type Transform struct {
	n     int
	crpix []float64
	crval []float64
	fwd   *mat.Dense // world offset = fwd · pixel offset
	inv   *mat.Dense
}

// Build assembles the affine model from a header's axis records and
// optional PC matrix, inverting it up front so WorldToPixel is a plain
// multiply. A zero CDELT or a degenerate PC matrix fails with
// ErrUnsupportedTransform: there is no usable world mapping for such a
// header and pixel-space input is the operator's fallback.
func Build(hdr *fits.Header) (*Transform, error) {
	n := hdr.NAxis()
	if n < 1 {
		return nil, fmt.Errorf("%w: header has no axes", ErrUnsupportedTransform)
	}

	t := &Transform{
		n:     n,
		crpix: make([]float64, n),
		crval: make([]float64, n),
	}
	fwd := mat.NewDense(n, n, nil)
	for i, ax := range hdr.Axes {
		t.crpix[i] = ax.Crpix
		t.crval[i] = ax.Crval
		for j := 0; j < n; j++ {
			pc := 0.0
			switch {
			case hdr.PC != nil:
				pc = hdr.PC[i][j]
			case i == j:
				pc = 1
			}
			fwd.Set(i, j, ax.Cdelt*pc)
		}
	}

	inv := mat.NewDense(n, n, nil)
	if err := inv.Inverse(fwd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTransform, err)
	}

	t.fwd = fwd
	t.inv = inv
	return t, nil
}

// NAxis returns the dimensionality of the transform.
func (t *Transform) NAxis() int { return t.n }

// PixelToWorld maps pixel coordinate vectors to world coordinates.
// origin names the index convention of the input points: 1 for the
// FITS convention, 0 for zero-based arrays. It is an explicit argument
// so the convention at this boundary is always visible at call sites.
func (t *Transform) PixelToWorld(points [][]float64, origin int) ([][]float64, error) {
	out := make([][]float64, len(points))
	for k, p := range points {
		if len(p) != t.n {
			return nil, fmt.Errorf("point %d has %d coordinates, transform has %d axes",
				k, len(p), t.n)
		}
		d := make([]float64, t.n)
		for i := range d {
			// Shift to the 1-based FITS convention before applying CRPIX.
			d[i] = p[i] + float64(1-origin) - t.crpix[i]
		}
		w := make([]float64, t.n)
		for i := 0; i < t.n; i++ {
			sum := t.crval[i]
			for j := 0; j < t.n; j++ {
				sum += t.fwd.At(i, j) * d[j]
			}
			w[i] = sum
		}
		out[k] = w
	}
	return out, nil
}

// WorldToPixel maps world coordinate vectors to pixel coordinates in
// the requested origin convention.
func (t *Transform) WorldToPixel(points [][]float64, origin int) ([][]float64, error) {
	out := make([][]float64, len(points))
	for k, w := range points {
		if len(w) != t.n {
			return nil, fmt.Errorf("point %d has %d coordinates, transform has %d axes",
				k, len(w), t.n)
		}
		d := make([]float64, t.n)
		for i := range d {
			d[i] = w[i] - t.crval[i]
		}
		p := make([]float64, t.n)
		for i := 0; i < t.n; i++ {
			sum := t.crpix[i]
			for j := 0; j < t.n; j++ {
				sum += t.inv.At(i, j) * d[j]
			}
			p[i] = sum + float64(origin-1)
		}
		out[k] = p
	}
	return out, nil
}
