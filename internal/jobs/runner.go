package jobs

import (
	"context"
	"errors"
	"sync"

	"video-merger/internal/domain"
	"video-merger/internal/merge"
)

// ErrBatchAlreadyRunning is returned when starting a second batch while one
// is in flight.
var ErrBatchAlreadyRunning = errors.New("batch already running")

// ErrEmptyQueue is returned when starting a batch with no queued jobs.
var ErrEmptyQueue = errors.New("no jobs queued")

// ErrNoRunningBatch is returned when cancel is requested in idle state.
var ErrNoRunningBatch = errors.New("no running batch")

// JobMerger executes a single merge job to completion.
type JobMerger interface {
	Run(ctx context.Context, req merge.Request) (merge.Result, error)
}

// Runner executes one batch of merge jobs at a time on a dedicated
// goroutine. Jobs run strictly sequentially; a single job's failure never
// aborts the batch. Cancellation is observed between jobs and kills the
// in-flight ffmpeg process through the batch context.
type Runner struct {
	merger      JobMerger
	resolveTool func() (string, error)
	reporter    Reporter

	mu        sync.Mutex
	status    domain.BatchStatus
	cursor    int
	total     int
	cancelled bool
	cancel    context.CancelFunc
}

// NewRunner creates an idle runner. The reporter may be nil to discard
// events; resolveTool may be nil to skip the transcoder preflight.
func NewRunner(merger JobMerger, resolveTool func() (string, error), reporter Reporter) *Runner {
	return &Runner{
		merger:      merger,
		resolveTool: resolveTool,
		reporter:    reporter,
		status:      domain.BatchStatusIdle,
	}
}

// Start begins a batch over a snapshot of the given jobs. It fails fast
// with merge.ErrToolNotFound when ffmpeg is unresolvable, so no job is
// attempted in that case. Later mutations of the caller's slice do not
// affect the run.
func (r *Runner) Start(queued []domain.Job, settings domain.Settings) error {
	if len(queued) == 0 {
		return ErrEmptyQueue
	}
	if r.resolveTool != nil {
		if _, err := r.resolveTool(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if r.status == domain.BatchStatusRunning {
		r.mu.Unlock()
		return ErrBatchAlreadyRunning
	}

	snapshot := append([]domain.Job(nil), queued...)
	ctx, cancel := context.WithCancel(context.Background())
	r.status = domain.BatchStatusRunning
	r.cursor = 0
	r.total = len(snapshot)
	r.cancelled = false
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx, snapshot, settings)
	return nil
}

// Cancel requests cancellation of the running batch. The first call stops
// the loop and terminates the active process; repeated calls are no-ops.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != domain.BatchStatusRunning {
		return ErrNoRunningBatch
	}
	if r.cancelled {
		return nil
	}

	r.cancelled = true
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// Status returns the current batch lifecycle state.
func (r *Runner) Status() domain.BatchStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// IsRunning reports whether a batch is in flight.
func (r *Runner) IsRunning() bool {
	return r.Status() == domain.BatchStatusRunning
}

// Progress returns the attempted-job cursor, snapshot length, and status.
func (r *Runner) Progress() domain.BatchProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.BatchProgress{
		Cursor: r.cursor,
		Total:  r.total,
		Status: r.status,
	}
}

// run is the batch worker loop. It is the only goroutine that advances the
// cursor or launches processes.
func (r *Runner) run(ctx context.Context, snapshot []domain.Job, settings domain.Settings) {
	succeeded := 0
	failed := 0

	for _, job := range snapshot {
		if r.wasCancelled() || ctx.Err() != nil {
			break
		}

		r.publish(Event{
			Type:      EventTypeJobStarted,
			JobID:     job.ID,
			VideoPath: job.VideoPath,
			Message:   "Merge started",
		})

		result, err := r.merger.Run(ctx, merge.Request{
			Job:      job,
			Settings: settings,
			OnLog: func(log merge.CommandLog) {
				r.publish(Event{
					Type:     EventTypeLog,
					JobID:    job.ID,
					Message:  "Command completed",
					Command:  log.Command,
					Args:     log.Args,
					ExitCode: log.ExitCode,
					Stderr:   log.Stderr,
				})
			},
		})
		r.advanceCursor()

		if err != nil {
			failed++
			event := Event{
				Type:      EventTypeJobFailed,
				JobID:     job.ID,
				VideoPath: job.VideoPath,
				Message:   err.Error(),
			}
			var mergeErr *merge.MergeError
			if errors.As(err, &mergeErr) && mergeErr.CommandLog.Command != "" {
				event.Command = mergeErr.CommandLog.Command
				event.ExitCode = mergeErr.CommandLog.ExitCode
				event.Stderr = mergeErr.CommandLog.Stderr
			}
			r.publish(event)

			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			continue
		}

		succeeded++
		r.publish(Event{
			Type:       EventTypeJobSucceeded,
			JobID:      job.ID,
			VideoPath:  job.VideoPath,
			OutputPath: result.OutputPath,
			Message:    "Merge completed",
		})
	}

	r.finish(ctx, succeeded, failed)
}

// finish records the terminal state and emits the batch summary event.
func (r *Runner) finish(ctx context.Context, succeeded, failed int) {
	r.mu.Lock()
	wasCancelled := r.cancelled || ctx.Err() != nil
	if wasCancelled {
		r.status = domain.BatchStatusCancelled
	} else {
		r.status = domain.BatchStatusCompleted
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	if wasCancelled {
		r.publish(Event{
			Type:      EventTypeBatchCancelled,
			Message:   "Batch cancelled",
			Succeeded: succeeded,
			Failed:    failed,
		})
		return
	}

	r.publish(Event{
		Type:      EventTypeBatchCompleted,
		Message:   "Batch completed",
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// wasCancelled reads the shared cancellation flag.
func (r *Runner) wasCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// advanceCursor counts one attempted job.
func (r *Runner) advanceCursor() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor++
}

// publish forwards an event to the configured reporter.
func (r *Runner) publish(event Event) {
	if r.reporter != nil {
		r.reporter.Publish(event)
	}
}
