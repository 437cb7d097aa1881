// Package main provides the subfits command line tool: extract a
// rectangular, optionally strided subcube from a FITS image cube into
// a new FITS file without holding the full cube in memory.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Staveley-Smith/subfits"
)

var (
	inputPath  string
	outputPath string
	pixelList  string
	worldList  string
	strideList string
	dropAxes   bool
	maxVoxels  int64
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "subfits",
		Short: "Extract a subcube from a FITS image cube",
		Long: `subfits extracts a rectangular subvolume from a FITS image cube and
writes it as a new FITS file, streaming the data in bounded-memory
chunks. The region is selected either by 1-based pixel index ranges or
by world-coordinate ranges (mutually exclusive), given as flat
comma-separated min,max pairs in axis order; 0 means "full extent".`,
		Args: cobra.NoArgs,
		RunE: run,

		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input FITS file (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output FITS file (required, never overwritten)")
	rootCmd.Flags().StringVar(&pixelList, "pixel", "", "Pixel ranges: min1,max1,min2,max2,... (1-based, 0 = full extent)")
	rootCmd.Flags().StringVar(&worldList, "world", "", "World-coordinate ranges: min1,max1,min2,max2,... (0 = full extent)")
	rootCmd.Flags().StringVar(&strideList, "stride", "", "Decimation stride per axis: k1,k2,... (0 or absent = 1)")
	rootCmd.Flags().BoolVar(&dropAxes, "drop-degenerate", false, "Remove axes whose output size is 1")
	rootCmd.Flags().Int64Var(&maxVoxels, "max-voxels", 0, "Per-chunk voxel budget (0 = default)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug-level logging")

	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	region, err := subfits.ParseRegion(pixelList, worldList, strideList)
	if err != nil {
		return err
	}

	res, err := subfits.Extract(subfits.Options{
		Input:          inputPath,
		Output:         outputPath,
		Region:         region,
		DropDegenerate: dropAxes,
		MaxChunkVoxels: maxVoxels,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s: shape %v -> %v in %d chunk(s)\n",
		outputPath, res.InShape, res.OutShape, res.Chunks)
	if len(res.DroppedAxes) > 0 {
		fmt.Printf("dropped %d degenerate axis(es)\n", len(res.DroppedAxes))
	}
	return nil
}
