// Package subfits extracts a rectangular, optionally strided subcube
// from a FITS image cube and writes it as a new, independently valid
// FITS file, streaming the data in bounded-memory chunks so cubes far
// larger than RAM stay workable. The requested region is given either
// as 1-based pixel index ranges or as world-coordinate ranges, one
// pair per axis, with an optional decimation stride per axis.
package subfits

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAxes is the hard limit on source dimensionality.
const MaxAxes = 9

// AxisRange is the canonical per-axis selection: 1-based inclusive
// bounds and a decimation stride. A bound of 0 is the full-extent
// sentinel, resolved against the true axis size by the geometry
// planner.
type AxisRange struct {
	Min    int64
	Max    int64
	Stride int64
}

// RegionSpec is the raw request: flat min/max pairs in declared axis
// order for exactly one of the two coordinate spaces, plus a stride
// list. Zero values are sentinels meaning "default".
type RegionSpec struct {
	Pixel  []int64   // flattened (min, max) pairs, 1-based inclusive
	World  []float64 // flattened (min, max) pairs, world units
	Stride []int64   // decimation factor per axis
}

// ParseRegion builds a RegionSpec from comma-separated list strings as
// supplied on a command line. Empty strings mean "not given".
func ParseRegion(pixel, world, stride string) (RegionSpec, error) {
	var (
		spec RegionSpec
		err  error
	)
	if spec.Pixel, err = ParseIntList(pixel); err != nil {
		return RegionSpec{}, fmt.Errorf("pixel range: %w", err)
	}
	if spec.World, err = ParseFloatList(world); err != nil {
		return RegionSpec{}, fmt.Errorf("world range: %w", err)
	}
	if spec.Stride, err = ParseIntList(stride); err != nil {
		return RegionSpec{}, fmt.Errorf("stride: %w", err)
	}
	return spec, nil
}

// ParseIntList parses a comma-separated integer list. An empty string
// yields a nil list.
func ParseIntList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidFormat, strings.TrimSpace(p))
		}
		out[i] = v
	}
	return out, nil
}

// ParseFloatList parses a comma-separated real-number list. An empty
// string yields a nil list.
func ParseFloatList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidFormat, strings.TrimSpace(p))
		}
		out[i] = v
	}
	return out, nil
}

// Validate checks the structural constraints that do not need the
// source axis sizes: pair lists must have even length, and pixel and
// world ranges must not both be supplied non-trivially. Called before
// any file I/O.
func (s RegionSpec) Validate() error {
	if len(s.Pixel)%2 != 0 {
		return fmt.Errorf("%w: pixel range list has odd length %d", ErrInvalidFormat, len(s.Pixel))
	}
	if len(s.World)%2 != 0 {
		return fmt.Errorf("%w: world range list has odd length %d", ErrInvalidFormat, len(s.World))
	}
	if anyNonZeroInt(s.Pixel) && anyNonZeroFloat(s.World) {
		return ErrConflictingSpec
	}
	return nil
}

// UseWorld reports whether the request selects by world coordinates.
func (s RegionSpec) UseWorld() bool { return anyNonZeroFloat(s.World) }

// ResolveRegion turns a RegionSpec into one canonical AxisRange per
// source axis. Lists shorter than the axis count are padded with
// zeros (full extent, stride 1); longer lists are truncated. Bound
// sentinels stay 0 here; clamping to the true axis sizes is the
// geometry planner's job. World-mode requests come back with all
// bounds 0: the coordinate mapper fills them in.
func ResolveRegion(spec RegionSpec, naxis int) ([]AxisRange, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ranges := make([]AxisRange, naxis)
	for i := range ranges {
		if !spec.UseWorld() {
			if 2*i < len(spec.Pixel) {
				ranges[i].Min = spec.Pixel[2*i]
			}
			if 2*i+1 < len(spec.Pixel) {
				ranges[i].Max = spec.Pixel[2*i+1]
			}
		}
		if i < len(spec.Stride) {
			ranges[i].Stride = spec.Stride[i]
		}
		if ranges[i].Stride == 0 {
			ranges[i].Stride = 1
		}
		if ranges[i].Stride < 0 {
			return nil, fmt.Errorf("%w: stride %d on axis %d must be positive",
				ErrInvalidFormat, ranges[i].Stride, i+1)
		}
	}
	return ranges, nil
}

// worldPairs splits the world list into per-axis (min, max) pairs,
// padded or truncated to the axis count.
func (s RegionSpec) worldPairs(naxis int) [][2]float64 {
	pairs := make([][2]float64, naxis)
	for i := range pairs {
		if 2*i < len(s.World) {
			pairs[i][0] = s.World[2*i]
		}
		if 2*i+1 < len(s.World) {
			pairs[i][1] = s.World[2*i+1]
		}
	}
	return pairs
}

func anyNonZeroInt(vs []int64) bool {
	for _, v := range vs {
		if v != 0 {
			return true
		}
	}
	return false
}

func anyNonZeroFloat(vs []float64) bool {
	for _, v := range vs {
		if v != 0 {
			return true
		}
	}
	return false
}
