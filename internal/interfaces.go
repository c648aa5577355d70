package internal

import "context"

// LinkResolver turns a share link into a downloadable target
type LinkResolver interface {
	Resolve(ctx context.Context, shareURL string) (*ResolvedTarget, error)
}

// TransferEngine downloads a resolved target to local disk
type TransferEngine interface {
	Download(ctx context.Context, target *ResolvedTarget, opts *TransferOptions) (string, error)
}

// ProgressReporter receives byte-count updates during a transfer
type ProgressReporter interface {
	Report(downloaded, total int64)
}

// RateLimiter controls bandwidth usage
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
