package subfits

import "errors"

// Every failure the engine reports wraps one of these sentinels, so
// callers can map each class to presentation and exit status with
// errors.Is. All are terminal: each reflects a caller input error or a
// precondition that will not change without operator correction, and
// none is retried.
var (
	// ErrInvalidFormat reports a range or stride list that cannot be
	// parsed as the expected numeric type, or a pair list of odd length.
	ErrInvalidFormat = errors.New("invalid range specification")

	// ErrConflictingSpec reports pixel and world ranges supplied
	// non-trivially in the same request.
	ErrConflictingSpec = errors.New("pixel and world ranges are mutually exclusive")

	// ErrCoordinateTransform reports coordinate metadata the linear
	// world model cannot use. Pixel-space input is the fallback.
	ErrCoordinateTransform = errors.New("coordinate transform failed")

	// ErrOutOfBounds reports a resolved index range outside the source
	// extent.
	ErrOutOfBounds = errors.New("selection outside source extent")

	// ErrEmptySelection reports a resolved range with max below min.
	ErrEmptySelection = errors.New("selection is empty")

	// ErrNoAxesRemaining reports a degenerate-axis removal that would
	// leave no axes at all.
	ErrNoAxesRemaining = errors.New("axis removal would leave no axes")

	// ErrDestinationExists reports an output path that is already
	// occupied. Existing files are never overwritten.
	ErrDestinationExists = errors.New("destination file already exists")

	// ErrOutputVerification reports a written output that failed the
	// final structural check.
	ErrOutputVerification = errors.New("output verification failed")

	// ErrTooManyDimensions reports a source with more axes than the
	// engine supports.
	ErrTooManyDimensions = errors.New("too many dimensions")
)
