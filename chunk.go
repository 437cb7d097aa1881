package subfits

// DefaultMaxChunkVoxels bounds the number of voxels materialized per
// write. At 4 bytes per voxel this is roughly a 1 GB buffer.
const DefaultMaxChunkVoxels = 250_000_000

// ChunkPlan partitions the output along its slowest-varying non-trivial
// axis into fullChunks equal chunks of ChannelsPerChunk planes plus one
// remainder chunk, so the write phase never materializes more than
// about the voxel budget at a time.
//
// Invariant: FullChunks*ChannelsPerChunk + Remainder equals the chunk
// axis extent exactly.
type ChunkPlan struct {
	// Axis is the chunk axis position in storage order (slowest first).
	Axis int

	// ChannelsPerChunk is the chunk-axis extent of each full chunk.
	ChannelsPerChunk int64

	// FullChunks is the number of equal chunks.
	FullChunks int64

	// Remainder is the chunk-axis extent left over after the full
	// chunks; 0 when the extent divides evenly.
	Remainder int64

	// VoxelsPerChunk is the voxel count of one full chunk.
	VoxelsPerChunk int64
}

// PlanChunks builds the chunk plan for an output shape given in storage
// order. The chunk axis is the first storage-order axis with size
// greater than 1, or the first axis when every size is 1. The partition
// is greedy and approximate: when the chunk axis is small relative to
// the over-budget ratio along the other axes, individual chunks can
// still exceed the budget. In practice the chunk axis is the cube's
// largest axis and the bound holds.
func PlanChunks(storageShape []int64, maxVoxels int64) ChunkPlan {
	if maxVoxels <= 0 {
		maxVoxels = DefaultMaxChunkVoxels
	}

	axis := 0
	for i, n := range storageShape {
		if n > 1 {
			axis = i
			break
		}
	}
	axisSize := storageShape[axis]

	total := int64(1)
	for _, n := range storageShape {
		total *= n
	}
	perChannel := total / axisSize

	if total <= maxVoxels {
		return ChunkPlan{
			Axis:             axis,
			ChannelsPerChunk: axisSize,
			FullChunks:       1,
			Remainder:        0,
			VoxelsPerChunk:   total,
		}
	}

	approxChunks := total / maxVoxels
	if approxChunks < 1 {
		approxChunks = 1
	}
	channels := axisSize / approxChunks
	if channels < 1 {
		channels = 1
	}
	fullChunks := axisSize / channels

	return ChunkPlan{
		Axis:             axis,
		ChannelsPerChunk: channels,
		FullChunks:       fullChunks,
		Remainder:        axisSize - fullChunks*channels,
		VoxelsPerChunk:   channels * perChannel,
	}
}
