package subfits

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/Staveley-Smith/subfits/internal/fits"
	"github.com/Staveley-Smith/subfits/internal/wcs"
)

// Options is the complete, immutable description of one extraction
// request. It is constructed once by the caller and passed by value;
// no component reads ambient configuration.
type Options struct {
	// Input is the source FITS file, opened read-only and never
	// mutated.
	Input string

	// Output is the destination path. An existing file is never
	// overwritten.
	Output string

	// Region selects the subcube, in pixel or world coordinates.
	Region RegionSpec

	// DropDegenerate removes axes whose output size is 1 from the
	// output header.
	DropDegenerate bool

	// MaxChunkVoxels overrides the per-chunk voxel budget; 0 means
	// DefaultMaxChunkVoxels.
	MaxChunkVoxels int64

	// Logger receives progress and informational notices. Nil discards
	// them.
	Logger *slog.Logger
}

// Result summarizes a completed extraction.
type Result struct {
	InShape     []int64 // source sizes, declared order
	OutShape    []int64 // output sizes before any axis removal
	DroppedAxes []int   // 0-based declared positions removed, if any
	Chunks      int64   // sequential blocks written
}

// Extract runs one extraction: resolve the requested region against
// the source geometry, derive the output header, and stream the
// selected strided region to a newly created destination in
// bounded-memory chunks. Control flow is strictly sequential with no
// cancellation mid-run; a failure after the destination is created
// leaves it partial and invalid, and the create-only policy makes the
// operator remove it before retrying.
func Extract(opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Request-shape errors surface before any file is touched.
	if err := opts.Region.Validate(); err != nil {
		return nil, err
	}

	src, err := fits.Open(opts.Input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	shape := src.Shape()
	if len(shape) > MaxAxes {
		return nil, fmt.Errorf("%w: source has %d axes, limit %d",
			ErrTooManyDimensions, len(shape), MaxAxes)
	}

	ranges, err := ResolveRegion(opts.Region, len(shape))
	if err != nil {
		return nil, err
	}

	if opts.Region.UseWorld() {
		t, err := wcs.Build(src.Header())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCoordinateTransform, err)
		}
		logCubeWorldBounds(t, shape, log)
		if err := mapWorldBounds(t, opts.Region, ranges, log); err != nil {
			return nil, err
		}
	}

	g, err := PlanGeometry(shape, ranges)
	if err != nil {
		return nil, err
	}

	outHdr, err := TransformHeader(src.Header(), g, opts.DropDegenerate)
	if err != nil {
		return nil, err
	}
	outHdr.AddHistory(provenance(opts))

	plan := PlanChunks(g.storageOutShape(), opts.MaxChunkVoxels)

	log.Info("extraction planned",
		"input", opts.Input, "output", opts.Output,
		"in_shape", shape, "out_shape", g.OutShape,
		"chunks", plan.FullChunks, "remainder_channels", plan.Remainder)

	dst, err := fits.CreateExclusive(opts.Output, outHdr)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrDestinationExists, opts.Output)
		}
		return nil, err
	}
	defer func() { _ = dst.Close() }()

	chunks, err := streamChunks(src, dst, g, plan, log)
	if err != nil {
		return nil, err
	}

	if err := dst.Finalize(); err != nil {
		return nil, err
	}
	if err := src.Close(); err != nil {
		return nil, err
	}

	if err := fits.Validate(opts.Output); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputVerification, err)
	}

	res := &Result{
		InShape:  shape,
		OutShape: g.OutShape,
		Chunks:   chunks,
	}
	if opts.DropDegenerate {
		res.DroppedAxes = append([]int(nil), g.Degenerate...)
	}
	return res, nil
}

// streamChunks reads successive chunk-axis extents of the selection
// and appends each, in increasing order, to the destination. Every
// other axis keeps its fixed planned slice across iterations; only the
// chunk-axis cursor advances.
func streamChunks(
	src *fits.File,
	dst *fits.Writer,
	g *Geometry,
	plan ChunkPlan,
	log *slog.Logger,
) (int64, error) {
	naxis := len(g.InShape)
	// The chunk axis in declared order; plan.Axis is a storage-order
	// position.
	declared := naxis - 1 - plan.Axis
	r := g.Ranges[declared]

	total := plan.FullChunks
	if plan.Remainder > 0 {
		total++
	}

	written := int64(0)
	for k := int64(0); k < total; k++ {
		channels := plan.ChannelsPerChunk
		if k == plan.FullChunks {
			channels = plan.Remainder
		}

		// Output channels [first, first+channels) along the chunk axis
		// map back to source indices through the selection offset and
		// stride.
		first := k * plan.ChannelsPerChunk
		start := (r.Min - 1) + first*r.Stride
		stop := start + (channels-1)*r.Stride + 1

		slices := make([]fits.SliceSpec, naxis)
		copy(slices, g.Slices)
		slices[plan.Axis] = fits.SliceSpec{Start: start, Stop: stop, Step: r.Stride}

		data, err := src.ReadSlice(slices)
		if err != nil {
			return written, fmt.Errorf("chunk %d read: %w", k+1, err)
		}
		if err := dst.Append(data); err != nil {
			return written, fmt.Errorf("chunk %d write: %w", k+1, err)
		}
		written++

		log.Info("chunk written", "chunk", k+1, "of", total,
			"channels", channels, "bytes", len(data))
	}
	return written, nil
}

// provenance renders the invoking request as one human-readable
// HISTORY line.
func provenance(opts Options) string {
	s := fmt.Sprintf("subfits: in=%s pixel=%v world=%v stride=%v drop=%t",
		opts.Input, opts.Region.Pixel, opts.Region.World, opts.Region.Stride,
		opts.DropDegenerate)
	return s
}
