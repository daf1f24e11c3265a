package firmware

// SkipReason explains why a remote was not built. Skips are outcomes, not errors.
type SkipReason string

// Reasons a build is skipped.
const (
	SkipNone        SkipReason = ""
	SkipNotFound    SkipReason = "not_found"
	SkipClaimed     SkipReason = "claimed"
	SkipNotSigned   SkipReason = "not_signed"
	SkipNotDirty    SkipReason = "not_dirty"
	SkipNoFilename  SkipReason = "no_filename"
	SkipNoOutputDir SkipReason = "no_output_dir"
)
