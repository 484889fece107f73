package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// ClaimEventWorker processes claim event jobs from the River queue.
// It records the event in the structured log; notification fan-out hangs
// off this worker.
type ClaimEventWorker struct {
	river.WorkerDefaults[ClaimEventArgs]
	logger *slog.Logger
}

// Work processes a single event job.
func (w *ClaimEventWorker) Work(ctx context.Context, job *river.Job[ClaimEventArgs]) error {
	w.logger.InfoContext(ctx, "processing claim event",
		"event", job.Args.Event,
		"claim_id", job.Args.ClaimID,
		"claim_number", job.Args.ClaimNumber,
		"status", job.Args.Status,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
