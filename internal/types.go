package internal

import "time"

// ResolvedTarget contains information about a file resolved from a share link
type ResolvedTarget struct {
	Filename  string    `json:"filename"`
	SizeText  string    `json:"size_text"`
	Size      int64     `json:"size"` // bytes; 0 when the upstream size was unparseable
	DirectURL string    `json:"direct_url"`
	ShareURL  string    `json:"share_url"`
	Timestamp time.Time `json:"timestamp"`
}

// HasKnownSize reports whether the upstream declared a parseable size.
func (t *ResolvedTarget) HasKnownSize() bool {
	return t.Size > 0
}

// TransferOptions contains configuration for a single transfer
type TransferOptions struct {
	OutputDir string
	RateLimit int64 // bytes per second, 0 = unlimited
	ProxyURL  string
	Quiet     bool
	Preset    string // force a named chunk preset, "" = full ladder
}

// ChunkPreset describes one rung of the sequential download ladder
type ChunkPreset struct {
	Name      string
	ChunkSize int64
	Attempts  int
}

// SequentialPresets is the ladder of chunk sizes tried in order when a
// parallel segmented download is not possible or has failed. Each rung
// gets its own attempt budget before the engine degrades to the next.
var SequentialPresets = []ChunkPreset{
	{Name: "fast", ChunkSize: 4 * 1024 * 1024, Attempts: 3},
	{Name: "steady", ChunkSize: 2 * 1024 * 1024, Attempts: 3},
	{Name: "careful", ChunkSize: 512 * 1024, Attempts: 3},
	{Name: "crawl", ChunkSize: 64 * 1024, Attempts: 3},
}

// PresetByName returns the ladder rung with the given name, or nil.
func PresetByName(name string) *ChunkPreset {
	for i := range SequentialPresets {
		if SequentialPresets[i].Name == name {
			return &SequentialPresets[i]
		}
	}
	return nil
}

// SegmentInfo represents a byte range assigned to one parallel worker
type SegmentInfo struct {
	Index int   `json:"index"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

const (
	// SizeTolerance is the fraction of the declared size a finished
	// download must reach to be accepted. Upstream resolvers report
	// rounded display sizes ("30.56 MB"), so exact matches are rare.
	SizeTolerance = 0.95

	// ParallelMinSize is the smallest file worth splitting into
	// parallel range segments.
	ParallelMinSize = 5 * 1024 * 1024

	// MaxSegments caps the parallel worker count per transfer.
	MaxSegments = 8

	// DefaultUploadCeiling is the largest file the bot will hand to
	// Telegram; the Bot API rejects larger uploads.
	DefaultUploadCeiling = 50 * 1024 * 1024

	// StatusEditInterval is the minimum gap between edits of a
	// transfer's status message.
	StatusEditInterval = 3 * time.Second
)
