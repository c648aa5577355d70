package downloader

import (
	"context"
	"strings"

	"teraleech/internal"
	"teraleech/utils"
)

const (
	// MinSegmentSize is the minimum size for a parallel segment (1MB)
	MinSegmentSize = 1024 * 1024
)

// RangeSupport describes what the origin server allows for a direct URL
type RangeSupport struct {
	AcceptsRanges bool
	ContentLength int64
}

// TransferPlanner decides how a transfer is split across workers
type TransferPlanner struct {
	httpClient     *utils.HTTPClient
	minSegmentSize int64
	maxSegments    int
}

// NewTransferPlanner creates a new instance of TransferPlanner
func NewTransferPlanner(httpClient *utils.HTTPClient) *TransferPlanner {
	return &TransferPlanner{
		httpClient:     httpClient,
		minSegmentSize: MinSegmentSize,
		maxSegments:    internal.MaxSegments,
	}
}

// ProbeRangeSupport asks the origin whether byte-range requests are
// honored. CDN nodes behind these direct links vary, so the answer is
// per-URL, not per-host. A probe failure is reported as no support;
// the sequential path works everywhere.
func (p *TransferPlanner) ProbeRangeSupport(ctx context.Context, directURL string) RangeSupport {
	resp, err := p.httpClient.GetWithContext(ctx, directURL, map[string]string{
		"Range": "bytes=0-0",
	})
	if err != nil {
		return RangeSupport{}
	}
	defer resp.Body.Close()

	support := RangeSupport{}
	if resp.StatusCode == 206 {
		support.AcceptsRanges = true
		// Content-Range: bytes 0-0/12345
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndexByte(cr, '/'); idx != -1 {
				support.ContentLength = parseInt64(cr[idx+1:])
			}
		}
	} else if strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes") {
		support.AcceptsRanges = true
		support.ContentLength = resp.ContentLength
	} else {
		support.ContentLength = resp.ContentLength
	}

	return support
}

// ShouldParallelize reports whether a file is worth splitting
func (p *TransferPlanner) ShouldParallelize(size int64, support RangeSupport) bool {
	return support.AcceptsRanges && size > internal.ParallelMinSize
}

// SegmentCount picks the worker count for a file size. Small files
// gain nothing from extra connections; large ones saturate around
// four on these CDNs.
func (p *TransferPlanner) SegmentCount(size int64) int {
	var count int
	switch {
	case size < 10*1024*1024:
		count = 2
	case size < 30*1024*1024:
		count = 3
	default:
		count = 4
	}
	if count > p.maxSegments {
		count = p.maxSegments
	}
	return count
}

// CalculateSegments splits fileSize into contiguous byte ranges
func (p *TransferPlanner) CalculateSegments(fileSize int64, segmentCount int) []internal.SegmentInfo {
	if fileSize <= 0 {
		return []internal.SegmentInfo{}
	}

	if segmentCount <= 0 {
		segmentCount = 1
	}
	if segmentCount > p.maxSegments {
		segmentCount = p.maxSegments
	}

	// For small files, use a single segment
	if fileSize < p.minSegmentSize {
		return []internal.SegmentInfo{{Index: 0, Start: 0, End: fileSize - 1}}
	}

	segmentSize := fileSize / int64(segmentCount)

	// Keep each segment at least minSegmentSize
	if segmentSize < p.minSegmentSize {
		segmentCount = int(fileSize / p.minSegmentSize)
		if segmentCount == 0 {
			segmentCount = 1
		}
		segmentSize = fileSize / int64(segmentCount)
	}

	segments := make([]internal.SegmentInfo, 0, segmentCount)

	for i := 0; i < segmentCount; i++ {
		start := int64(i) * segmentSize
		end := start + segmentSize - 1

		// Last segment gets any remaining bytes
		if i == segmentCount-1 {
			end = fileSize - 1
		}

		segments = append(segments, internal.SegmentInfo{
			Index: i,
			Start: start,
			End:   end,
		})
	}

	return segments
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
