package domain

// Container enumerates supported output container formats.
type Container string

const (
	ContainerMP4 Container = "mp4"
	ContainerMKV Container = "mkv"
)

// Valid reports whether the container is one of the supported formats.
func (c Container) Valid() bool {
	switch c {
	case ContainerMP4, ContainerMKV:
		return true
	default:
		return false
	}
}

// CompressionLevel names one encoder quality tier, ordered fastest to slowest.
type CompressionLevel string

const (
	CompressionFast   CompressionLevel = "fast"
	CompressionMedium CompressionLevel = "medium"
	CompressionSlow   CompressionLevel = "slow"
)

// Valid reports whether the level is one of the known tiers.
func (l CompressionLevel) Valid() bool {
	switch l {
	case CompressionFast, CompressionMedium, CompressionSlow:
		return true
	default:
		return false
	}
}

// BatchStatus tracks the lifecycle of one batch run.
type BatchStatus string

const (
	BatchStatusIdle      BatchStatus = "idle"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration. An empty
// OutputDir means each merged file is written beside its source video.
type Settings struct {
	OutputDir        string           `json:"outputDir"`
	Container        Container        `json:"container"`
	CompressionLevel CompressionLevel `json:"compressionLevel"`
}

// Job is one queued video file plus an optional subtitle to burn in.
type Job struct {
	ID           string `json:"id"`
	VideoPath    string `json:"videoPath"`
	SubtitlePath string `json:"subtitlePath,omitempty"`
}

// BatchProgress is a point-in-time view of a batch run for the UI.
// Cursor counts jobs attempted so far, not jobs that succeeded.
type BatchProgress struct {
	Cursor int         `json:"cursor"`
	Total  int         `json:"total"`
	Status BatchStatus `json:"status"`
}
