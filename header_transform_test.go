package subfits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Staveley-Smith/subfits/internal/fits"
)

func sourceHeader() *fits.Header {
	return &fits.Header{
		Bitpix: -32,
		Axes: []fits.Axis{
			{Size: 100, Ctype: "RA---SIN", Crpix: 50, Crval: 120, Cdelt: -0.01, Cunit: "deg"},
			{Size: 80, Ctype: "DEC--SIN", Crpix: 40, Crval: -30, Cdelt: 0.01, Cunit: "deg"},
			{Size: 64, Ctype: "FREQ", Crpix: 1, Crval: 1.4e9, Cdelt: 1e4, Cunit: "Hz"},
		},
	}
}

func mustPlan(t *testing.T, shape []int64, ranges []AxisRange) *Geometry {
	t.Helper()
	g, err := PlanGeometry(shape, ranges)
	require.NoError(t, err)
	return g
}

func TestTransformHeaderOffsetAndStride(t *testing.T) {
	hdr := sourceHeader()
	g := mustPlan(t, hdr.Shape(), []AxisRange{
		{Min: 11, Max: 60, Stride: 1},
		{Min: 1, Max: 80, Stride: 2},
		{Min: 5, Max: 64, Stride: 5},
	})

	out, err := TransformHeader(hdr, g, false)
	require.NoError(t, err)
	require.Equal(t, 3, out.NAxis())

	// Axis 1: offset only. crpix 50 - 10 = 40, stride 1 leaves it.
	assert.Equal(t, int64(50), out.Axes[0].Size)
	assert.InDelta(t, 40, out.Axes[0].Crpix, 1e-12)
	assert.InDelta(t, -0.01, out.Axes[0].Cdelt, 1e-12)

	// Axis 2: stride only. crpix 40 -> (40-1)/2 + 1 = 20.5, cdelt doubled.
	assert.Equal(t, int64(40), out.Axes[1].Size)
	assert.InDelta(t, 20.5, out.Axes[1].Crpix, 1e-12)
	assert.InDelta(t, 0.02, out.Axes[1].Cdelt, 1e-12)

	// Axis 3: offset then stride. crpix 1 - 4 = -3 -> (-3-1)/5 + 1 = 0.2.
	assert.Equal(t, int64(12), out.Axes[2].Size)
	assert.InDelta(t, 0.2, out.Axes[2].Crpix, 1e-12)
	assert.InDelta(t, 5e4, out.Axes[2].Cdelt, 1e-6)

	// Labels and units travel with the axes.
	assert.Equal(t, "FREQ", out.Axes[2].Ctype)
	assert.Equal(t, "Hz", out.Axes[2].Cunit)
}

func TestTransformHeaderPreservesWorldAnchors(t *testing.T) {
	// A retained voxel must keep its world coordinate: the reference
	// value never changes, only the reference pixel and scale.
	hdr := sourceHeader()
	g := mustPlan(t, hdr.Shape(), []AxisRange{
		{Min: 21, Max: 80, Stride: 3},
		{Min: 0, Max: 0, Stride: 1},
		{Min: 0, Max: 0, Stride: 1},
	})

	out, err := TransformHeader(hdr, g, false)
	require.NoError(t, err)

	// Retained source pixels are 21, 24, ..., so source pixel 51 is
	// output pixel 11. The world value at a retained pixel is
	// crval + cdelt*(p - crpix) and must agree between the two headers.
	srcWorld := 120 + (-0.01)*(51-50)
	outWorld := 120 + out.Axes[0].Cdelt*(11-out.Axes[0].Crpix)
	assert.InDelta(t, srcWorld, outWorld, 1e-9)
}

func TestTransformHeaderDropDegenerate(t *testing.T) {
	hdr := sourceHeader()

	t.Run("removes size-one axes and renumbers", func(t *testing.T) {
		g := mustPlan(t, hdr.Shape(), []AxisRange{
			{Min: 0, Max: 0, Stride: 1},
			{Min: 7, Max: 7, Stride: 1},
			{Min: 0, Max: 0, Stride: 1},
		})
		out, err := TransformHeader(hdr, g, true)
		require.NoError(t, err)

		require.Equal(t, 2, out.NAxis())
		assert.Equal(t, "RA---SIN", out.Axes[0].Ctype)
		assert.Equal(t, "FREQ", out.Axes[1].Ctype)
	})

	t.Run("idempotent when nothing is degenerate", func(t *testing.T) {
		g := mustPlan(t, hdr.Shape(), fullRanges(3))
		out, err := TransformHeader(hdr, g, true)
		require.NoError(t, err)

		assert.Equal(t, 3, out.NAxis())
		assert.Equal(t, []int64{100, 80, 64}, out.Shape())
	})

	t.Run("keeps degenerate axes without the flag", func(t *testing.T) {
		g := mustPlan(t, hdr.Shape(), []AxisRange{
			{Min: 7, Max: 7, Stride: 1},
			{Min: 0, Max: 0, Stride: 1},
			{Min: 0, Max: 0, Stride: 1},
		})
		out, err := TransformHeader(hdr, g, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 80, 64}, out.Shape())
	})

	t.Run("refuses to remove every axis", func(t *testing.T) {
		g := mustPlan(t, hdr.Shape(), []AxisRange{
			{Min: 1, Max: 1, Stride: 1},
			{Min: 2, Max: 2, Stride: 1},
			{Min: 3, Max: 3, Stride: 1},
		})
		_, err := TransformHeader(hdr, g, true)
		assert.ErrorIs(t, err, ErrNoAxesRemaining)
	})
}

func TestTransformHeaderResetsPCMatrix(t *testing.T) {
	hdr := sourceHeader()
	hdr.PC = [][]float64{
		{1, 0.3, 0},
		{-0.3, 1, 0},
		{0, 0, 1},
	}

	t.Run("identity after removal", func(t *testing.T) {
		g := mustPlan(t, hdr.Shape(), []AxisRange{
			{Min: 0, Max: 0, Stride: 1},
			{Min: 0, Max: 0, Stride: 1},
			{Min: 10, Max: 10, Stride: 1},
		})
		out, err := TransformHeader(hdr, g, true)
		require.NoError(t, err)

		require.Equal(t, 2, out.NAxis())
		assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, out.PC)
	})

	t.Run("kept intact without removal", func(t *testing.T) {
		g := mustPlan(t, hdr.Shape(), fullRanges(3))
		out, err := TransformHeader(hdr, g, true)
		require.NoError(t, err)
		assert.Equal(t, hdr.PC, out.PC)
	})
}
