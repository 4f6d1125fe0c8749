package ingest

import (
	"context"
	"log/slog"
	"time"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
	"hrvguard/internal/telemetry"
)

// SendNonBlocking queues job or drops it when out is full. A nil metrics
// disables counting.
func SendNonBlocking(ctx context.Context, out chan<- model.Job, job model.Job, metrics *telemetry.Metrics, logger *slog.Logger) bool {
	select {
	case out <- job:
		metrics.IncJobsReceived(job.Source)
		return true
	case <-ctx.Done():
		return false
	default:
		metrics.IncJobsDropped("queue_full")
		if logger != nil {
			logger.Warn("job channel full, dropping job", "record_id", job.RecordID, "source", job.Source)
		}
		return false
	}
}

// handleLine decodes one line from a stream source and queues the job.
func handleLine(ctx context.Context, line, source string, cfg *config.Manager, parser *Parser, out chan<- model.Job, metrics *telemetry.Metrics, logger *slog.Logger) {
	job, err := parser.ParseLine(line, cfg.Get())
	if err != nil {
		metrics.IncJobsDropped("decode")
		if logger != nil {
			logger.Warn(source+" decode error", "err", err)
		}
		return
	}
	if job == nil {
		return
	}
	job.Source = source
	SendNonBlocking(ctx, out, *job, metrics, logger)
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
