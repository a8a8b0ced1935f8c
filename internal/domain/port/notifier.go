package port

import "context"

// FailureNotifier alerts operators when a segmentation request fails
// permanently.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, jobID string, errorMsg string) error
}
