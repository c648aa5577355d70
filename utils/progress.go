package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
)

// ThrottledReporter forwards progress to a callback at a bounded rate.
// Chat status messages may only be edited so often before Telegram
// starts rejecting the edits, so updates are gated by both a minimum
// time gap and a minimum byte delta.
type ThrottledReporter struct {
	callback    func(downloaded, total int64)
	minInterval time.Duration
	minDelta    int64

	mutex     sync.Mutex
	lastEdit  time.Time
	lastBytes int64
}

// NewThrottledReporter creates a reporter gated by interval and delta.
func NewThrottledReporter(minInterval time.Duration, minDelta int64, callback func(downloaded, total int64)) *ThrottledReporter {
	return &ThrottledReporter{
		callback:    callback,
		minInterval: minInterval,
		minDelta:    minDelta,
	}
}

// Report forwards the update when the gates allow it
func (r *ThrottledReporter) Report(downloaded, total int64) {
	r.mutex.Lock()
	now := time.Now()
	if now.Sub(r.lastEdit) < r.minInterval || downloaded-r.lastBytes < r.minDelta {
		r.mutex.Unlock()
		return
	}
	r.lastEdit = now
	r.lastBytes = downloaded
	r.mutex.Unlock()

	r.callback(downloaded, total)
}

// ProgressTracker manages CLI download progress display with real-time
// statistics.
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	total     int64
	current   int64
	mutex     sync.RWMutex

	speedSamples []float64
	lastUpdate   time.Time
	lastBytes    int64
	maxSamples   int
}

// DownloadSummary contains final download statistics
type DownloadSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	PeakSpeed    float64 // bytes per second
	Filename     string
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:        quiet,
		startTime:    time.Now(),
		total:        total,
		lastUpdate:   time.Now(),
		speedSamples: make([]float64, 0),
		maxSamples:   10,
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		bar := pb.ProgressBarTemplate(tmpl).Start64(total)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", "Downloading: ")
		tracker.bar = bar
	}

	return tracker
}

// Report implements internal.ProgressReporter
func (p *ProgressTracker) Report(downloaded, total int64) {
	p.Update(downloaded)
}

// Update updates the progress bar and speed samples
func (p *ProgressTracker) Update(current int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	p.current = current

	if p.bar != nil {
		p.bar.SetCurrent(current)
	}

	timeDiff := now.Sub(p.lastUpdate).Seconds()
	if timeDiff > 0.1 {
		bytesDiff := current - p.lastBytes
		currentSpeed := float64(bytesDiff) / timeDiff

		p.speedSamples = append(p.speedSamples, currentSpeed)
		if len(p.speedSamples) > p.maxSamples {
			p.speedSamples = p.speedSamples[1:]
		}

		p.lastUpdate = now
		p.lastBytes = current
	}
}

// Finish completes the progress bar and returns the download summary
func (p *ProgressTracker) Finish() *DownloadSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	totalTime := time.Since(p.startTime)

	if p.bar != nil {
		p.bar.Finish()
	}

	averageSpeed := float64(p.current) / totalTime.Seconds()

	var peakSpeed float64
	for _, speed := range p.speedSamples {
		if speed > peakSpeed {
			peakSpeed = speed
		}
	}

	summary := &DownloadSummary{
		TotalBytes:   p.current,
		TotalTime:    totalTime,
		AverageSpeed: averageSpeed,
		PeakSpeed:    peakSpeed,
	}

	if !p.quiet {
		p.displaySummary(summary)
	}

	return summary
}

// displaySummary prints the download summary statistics
func (p *ProgressTracker) displaySummary(summary *DownloadSummary) {
	fmt.Printf("\n")
	fmt.Printf("Download completed successfully!\n")
	fmt.Printf("Total size: %s\n", humanize.IBytes(uint64(summary.TotalBytes)))
	fmt.Printf("Total time: %v\n", summary.TotalTime.Round(time.Millisecond))
	fmt.Printf("Average speed: %s/s\n", humanize.IBytes(uint64(summary.AverageSpeed)))
	if summary.PeakSpeed > 0 {
		fmt.Printf("Peak speed: %s/s\n", humanize.IBytes(uint64(summary.PeakSpeed)))
	}
	if summary.Filename != "" {
		fmt.Printf("Saved to: %s\n", summary.Filename)
	}
}

// IsQuiet returns whether the tracker is in quiet mode
func (p *ProgressTracker) IsQuiet() bool {
	return p.quiet
}
