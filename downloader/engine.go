package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"teraleech/internal"
	"teraleech/utils"
)

// Engine downloads resolved targets to local disk. Large files with
// range support are fetched in parallel segments; everything else goes
// through a sequential ladder of chunk presets, each preset retried
// with backoff and byte-offset resume before degrading to the next.
type Engine struct {
	httpClient *utils.HTTPClient
	planner    *TransferPlanner
	fileOps    *utils.FileOperations
	reporter   internal.ProgressReporter
}

var _ internal.TransferEngine = (*Engine)(nil)

// NewEngine creates a new transfer engine
func NewEngine() *Engine {
	httpClient := utils.NewHTTPClient()
	return &Engine{
		httpClient: httpClient,
		planner:    NewTransferPlanner(httpClient),
		fileOps:    utils.NewFileOperations(),
	}
}

// NewEngineWithHTTP creates an engine with a custom HTTP client
func NewEngineWithHTTP(httpClient *utils.HTTPClient) *Engine {
	return &Engine{
		httpClient: httpClient,
		planner:    NewTransferPlanner(httpClient),
		fileOps:    utils.NewFileOperations(),
	}
}

// SetReporter attaches a progress reporter for subsequent downloads
func (e *Engine) SetReporter(reporter internal.ProgressReporter) {
	e.reporter = reporter
}

// Download fetches the target into opts.OutputDir and returns the
// final local path. The caller owns cleanup of the output directory
// on every outcome, including cancellation.
func (e *Engine) Download(ctx context.Context, target *internal.ResolvedTarget, opts *internal.TransferOptions) (string, error) {
	if target == nil {
		return "", fmt.Errorf("target cannot be nil")
	}
	if opts == nil {
		opts = &internal.TransferOptions{}
	}

	filename := utils.SanitizeFilename(target.Filename)
	finalPath := filepath.Join(opts.OutputDir, filename)
	partPath := finalPath + ".part"

	if err := e.fileOps.EnsureDir(finalPath); err != nil {
		return "", internal.NewTransferFailedError(fmt.Sprintf("cannot create output directory: %v", err))
	}

	var limiter internal.RateLimiter
	if opts.RateLimit > 0 {
		limiter = utils.NewTokenBucketLimiter(opts.RateLimit)
	}

	support := e.planner.ProbeRangeSupport(ctx, target.DirectURL)
	if err := cancelCause(ctx); err != nil {
		return "", err
	}

	// The resolver's size is parsed from a rounded display string; the
	// origin's Content-Length is authoritative when present.
	total := target.Size
	if support.ContentLength > 0 {
		total = support.ContentLength
	}

	if e.planner.ShouldParallelize(total, support) {
		err := e.downloadParallel(ctx, target.DirectURL, partPath, total, limiter)
		if err == nil {
			return e.finish(partPath, finalPath, target.Size, total)
		}
		if internal.IsCancelled(err) || cancelCause(ctx) != nil {
			return "", internal.NewCancelledError()
		}
		internal.LogWarn("Parallel download failed, falling back to sequential: %v", err)
		os.Remove(partPath)
	}

	if err := e.downloadLadder(ctx, target.DirectURL, partPath, total, limiter, opts.Preset); err != nil {
		return "", err
	}

	return e.finish(partPath, finalPath, target.Size, total)
}

// finish verifies the partial file and promotes it to its final name
func (e *Engine) finish(partPath, finalPath string, declaredSize, probedSize int64) (string, error) {
	actual, err := e.fileOps.GetFileSize(partPath)
	if err != nil {
		return "", internal.NewTransferFailedError(fmt.Sprintf("cannot stat downloaded file: %v", err))
	}

	if err := verifySize(actual, declaredSize, probedSize); err != nil {
		return "", err
	}

	if err := e.fileOps.AtomicRename(partPath, finalPath); err != nil {
		return "", internal.NewTransferFailedError(fmt.Sprintf("cannot finalize file: %v", err))
	}

	return finalPath, nil
}

// verifySize accepts a download when it reaches the size tolerance
// against the best size estimate available. With no estimate at all,
// any non-empty file passes.
func verifySize(actual, declaredSize, probedSize int64) error {
	expected := probedSize
	if expected <= 0 {
		expected = declaredSize
	}

	if expected <= 0 {
		if actual == 0 {
			return internal.NewTransferFailedError("downloaded file is empty")
		}
		return nil
	}

	if float64(actual) < float64(expected)*internal.SizeTolerance {
		return internal.NewSizeMismatchError(actual, expected)
	}

	return nil
}

// downloadLadder walks the sequential chunk presets until one finishes
// the file. The partial file persists across presets, so each rung
// resumes where the previous one gave up.
func (e *Engine) downloadLadder(ctx context.Context, directURL, partPath string, total int64, limiter internal.RateLimiter, presetName string) error {
	presets := internal.SequentialPresets
	if presetName != "" {
		preset := internal.PresetByName(presetName)
		if preset == nil {
			return internal.NewValidationError("preset", fmt.Sprintf("unknown preset %q", presetName))
		}
		presets = []internal.ChunkPreset{*preset}
	}

	var lastErr error
	for _, preset := range presets {
		for attempt := 0; attempt < preset.Attempts; attempt++ {
			err := e.downloadSequential(ctx, directURL, partPath, total, preset.ChunkSize, limiter)
			if err == nil {
				return nil
			}
			if internal.IsCancelled(err) {
				return err
			}
			if cerr := cancelCause(ctx); cerr != nil {
				return cerr
			}

			lastErr = err
			internal.LogWarn("Preset %s attempt %d/%d failed: %v", preset.Name, attempt+1, preset.Attempts, err)

			// A dead link stays dead at any chunk size
			if !isRecoverableError(err) {
				return internal.NewTransferFailedError(err.Error())
			}

			if attempt < preset.Attempts-1 {
				backoffDelay := time.Duration(1<<uint(attempt)) * time.Second
				select {
				case <-time.After(backoffDelay):
				case <-ctx.Done():
					return internal.NewCancelledError()
				}
			}
		}
		internal.LogInfo("Degrading from preset %s after %d attempts", preset.Name, preset.Attempts)
	}

	return internal.NewTransferFailedError(fmt.Sprintf("all presets exhausted: %v", lastErr))
}

// downloadSequential streams the remainder of the file into the
// partial file, resuming from its current length via a Range request.
func (e *Engine) downloadSequential(ctx context.Context, directURL, partPath string, total, chunkSize int64, limiter internal.RateLimiter) error {
	offset := int64(0)
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	if total > 0 && offset >= total {
		return nil
	}

	headers := map[string]string{}
	if offset > 0 {
		headers["Range"] = fmt.Sprintf("bytes=%d-", offset)
	}

	resp, err := e.httpClient.GetWithContext(ctx, directURL, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A 200 to a ranged request means the origin ignored the offset
	// and is sending the file from the top.
	if offset > 0 && resp.StatusCode == http.StatusOK {
		offset = 0
	}

	flags := os.O_CREATE | os.O_WRONLY
	file, err := os.OpenFile(partPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open part file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(offset); err != nil {
		return fmt.Errorf("failed to truncate part file: %w", err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek part file: %w", err)
	}

	var streamed int64
	written, err := e.copyChunks(ctx, file, resp.Body, chunkSize, limiter, func(n int64) {
		streamed += n
		e.report(offset+streamed, total)
	})
	if err != nil {
		return err
	}

	if total > 0 && offset+written < total {
		return fmt.Errorf("stream ended early at %d of %d bytes", offset+written, total)
	}

	return nil
}

// downloadParallel fetches the file as concurrent byte-range segments
// written at their offsets into a pre-allocated partial file. Any
// segment failure cancels the group; the caller falls back to the
// sequential ladder.
func (e *Engine) downloadParallel(ctx context.Context, directURL, partPath string, total int64, limiter internal.RateLimiter) error {
	segments := e.planner.CalculateSegments(total, e.planner.SegmentCount(total))
	if len(segments) == 0 {
		return fmt.Errorf("no segments planned for size %d", total)
	}

	if err := e.fileOps.CreatePartialFile(partPath, total); err != nil {
		return err
	}

	internal.LogInfo("Parallel download: %d segments for %d bytes", len(segments), total)

	var progress int64
	g, gctx := errgroup.WithContext(ctx)

	for _, segment := range segments {
		seg := segment
		g.Go(func() error {
			return e.downloadSegment(gctx, directURL, partPath, seg, limiter, func(n int64) {
				e.report(atomic.AddInt64(&progress, n), total)
			})
		})
	}

	if err := g.Wait(); err != nil {
		if cerr := cancelCause(ctx); cerr != nil {
			return cerr
		}
		return err
	}

	return nil
}

// downloadSegment fetches one byte range into the partial file
func (e *Engine) downloadSegment(ctx context.Context, directURL, partPath string, segment internal.SegmentInfo, limiter internal.RateLimiter, onWrite func(int64)) error {
	resp, err := e.httpClient.GetWithContext(ctx, directURL, map[string]string{
		"Range": fmt.Sprintf("bytes=%d-%d", segment.Start, segment.End),
	})
	if err != nil {
		return fmt.Errorf("segment %d: %w", segment.Index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("segment %d: expected 206, got %d", segment.Index, resp.StatusCode)
	}

	file, err := os.OpenFile(partPath, os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("segment %d: failed to open part file: %w", segment.Index, err)
	}
	defer file.Close()

	if _, err := file.Seek(segment.Start, io.SeekStart); err != nil {
		return fmt.Errorf("segment %d: failed to seek: %w", segment.Index, err)
	}

	want := segment.End - segment.Start + 1
	written, err := e.copyChunks(ctx, file, io.LimitReader(resp.Body, want), 256*1024, limiter, onWrite)
	if err != nil {
		return fmt.Errorf("segment %d: %w", segment.Index, err)
	}
	if written != want {
		return fmt.Errorf("segment %d: short read: %d of %d bytes", segment.Index, written, want)
	}

	return nil
}

// copyChunks copies src to dst in chunkSize pieces, checking for
// cancellation and applying the rate limit between chunks. onWrite
// receives the byte count of each chunk as it lands, so callers
// summing across concurrent segments stay within the file size.
func (e *Engine) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, chunkSize int64, limiter internal.RateLimiter, onWrite func(int64)) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	buffer := make([]byte, chunkSize)
	var totalWritten int64

	for {
		select {
		case <-ctx.Done():
			return totalWritten, internal.NewCancelledError()
		default:
		}

		n, err := io.ReadFull(src, buffer)
		if n > 0 {
			if limiter != nil {
				if werr := limiter.Wait(ctx, n); werr != nil {
					return totalWritten, internal.NewCancelledError()
				}
			}

			written, writeErr := dst.Write(buffer[:n])
			totalWritten += int64(written)
			if writeErr != nil {
				return totalWritten, writeErr
			}
			if written != n {
				return totalWritten, fmt.Errorf("short write: wrote %d, expected %d", written, n)
			}

			if onWrite != nil {
				onWrite(int64(written))
			}
		}

		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return totalWritten, nil
			}
			return totalWritten, err
		}
	}
}

// report forwards progress to the attached reporter, if any
func (e *Engine) report(downloaded, total int64) {
	if e.reporter != nil {
		e.reporter.Report(downloaded, total)
	}
}

// cancelCause maps a context error to the pipeline taxonomy
func cancelCause(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return internal.NewNetworkTimeoutError("download")
	default:
		return internal.NewCancelledError()
	}
}

// isRecoverableError determines if an error is recoverable through retry
func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}

	if leechErr, ok := err.(*internal.LeechError); ok {
		return leechErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	recoverablePatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no route to host",
		"broken pipe",
		"stream ended early",
		"eof",
	}

	for _, pattern := range recoverablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
