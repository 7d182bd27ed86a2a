package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"video-merger/internal/domain"
	"video-merger/internal/merge"
)

// fakeMerger allows injecting per-job merge behavior.
type fakeMerger struct {
	mu   sync.Mutex
	seen []string
	run  func(ctx context.Context, req merge.Request) (merge.Result, error)
}

// Run records the job order and delegates to injected behavior.
func (m *fakeMerger) Run(ctx context.Context, req merge.Request) (merge.Result, error) {
	m.mu.Lock()
	m.seen = append(m.seen, req.Job.VideoPath)
	m.mu.Unlock()

	if m.run == nil {
		return merge.Result{OutputPath: merge.OutputPath(req.Job, req.Settings)}, nil
	}
	return m.run(ctx, req)
}

// paths returns the video paths in merge order.
func (m *fakeMerger) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

// testSettings returns fixed batch settings for runner tests.
func testSettings() domain.Settings {
	return domain.Settings{
		OutputDir:        "/out",
		Container:        domain.ContainerMP4,
		CompressionLevel: domain.CompressionMedium,
	}
}

// TestRunnerCompletesBatchInOrder verifies sequential execution and the
// ordered event stream of a fully successful batch.
func TestRunnerCompletesBatchInOrder(t *testing.T) {
	bus := NewEventBus(100)
	merger := &fakeMerger{}
	runner := NewRunner(merger, nil, bus)

	queued := []domain.Job{
		{ID: "job-1", VideoPath: "/videos/a.mp4"},
		{ID: "job-2", VideoPath: "/videos/b.mkv", SubtitlePath: "/videos/b.srt"},
	}
	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitForBatchStatus(t, runner, domain.BatchStatusCompleted)

	if got := merger.paths(); len(got) != 2 || got[0] != "/videos/a.mp4" || got[1] != "/videos/b.mkv" {
		t.Fatalf("merge order = %v", got)
	}

	wantTypes := []EventType{
		EventTypeJobStarted,
		EventTypeJobSucceeded,
		EventTypeJobStarted,
		EventTypeJobSucceeded,
		EventTypeBatchCompleted,
	}
	assertEventTypes(t, bus.Since(0), wantTypes)

	final := bus.Since(0)[4]
	if final.Succeeded != 2 || final.Failed != 0 {
		t.Fatalf("summary = %d/%d, want 2/0", final.Succeeded, final.Failed)
	}

	progress := runner.Progress()
	if progress.Cursor != 2 || progress.Total != 2 || progress.Status != domain.BatchStatusCompleted {
		t.Fatalf("progress = %+v", progress)
	}
}

// TestRunnerIsolatesJobFailure verifies one job's failure never aborts the
// batch.
func TestRunnerIsolatesJobFailure(t *testing.T) {
	bus := NewEventBus(100)
	merger := &fakeMerger{
		run: func(ctx context.Context, req merge.Request) (merge.Result, error) {
			if req.Job.ID == "job-1" {
				return merge.Result{}, &merge.MergeError{
					Stage:   "transcode",
					Message: "ffmpeg merge failed",
					CommandLog: merge.CommandLog{
						Command:  "/usr/bin/ffmpeg",
						ExitCode: 1,
						Stderr:   "broken input",
					},
					Err: errors.New("exit status 1"),
				}
			}
			return merge.Result{OutputPath: "/out/b_merged.mp4"}, nil
		},
	}
	runner := NewRunner(merger, nil, bus)

	queued := []domain.Job{
		{ID: "job-1", VideoPath: "/videos/a.mp4"},
		{ID: "job-2", VideoPath: "/videos/b.mp4"},
	}
	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitForBatchStatus(t, runner, domain.BatchStatusCompleted)

	assertEventTypes(t, bus.Since(0), []EventType{
		EventTypeJobStarted,
		EventTypeJobFailed,
		EventTypeJobStarted,
		EventTypeJobSucceeded,
		EventTypeBatchCompleted,
	})

	events := bus.Since(0)
	if events[1].ExitCode != 1 || events[1].Stderr != "broken input" {
		t.Fatalf("failure event missing command detail: %+v", events[1])
	}
	if final := events[4]; final.Succeeded != 1 || final.Failed != 1 {
		t.Fatalf("summary = %d/%d, want 1/1", final.Succeeded, final.Failed)
	}
}

// TestRunnerRejectsEmptyQueue verifies the empty-queue guard.
func TestRunnerRejectsEmptyQueue(t *testing.T) {
	runner := NewRunner(&fakeMerger{}, nil, nil)
	if err := runner.Start(nil, testSettings()); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyQueue)
	}
	if runner.Status() != domain.BatchStatusIdle {
		t.Fatalf("status = %s, want idle", runner.Status())
	}
}

// TestRunnerToolPreflightAbortsBatch verifies a missing transcoder stops
// the batch before any job is attempted.
func TestRunnerToolPreflightAbortsBatch(t *testing.T) {
	bus := NewEventBus(100)
	merger := &fakeMerger{}
	runner := NewRunner(merger, func() (string, error) {
		return "", merge.ErrToolNotFound
	}, bus)

	err := runner.Start([]domain.Job{{ID: "job-1", VideoPath: "/v/a.mp4"}}, testSettings())
	if !errors.Is(err, merge.ErrToolNotFound) {
		t.Fatalf("error = %v, want %v", err, merge.ErrToolNotFound)
	}
	if runner.Status() != domain.BatchStatusIdle {
		t.Fatalf("status = %s, want idle", runner.Status())
	}
	if len(bus.Since(0)) != 0 {
		t.Fatalf("expected no events, got %+v", bus.Since(0))
	}
	if len(merger.paths()) != 0 {
		t.Fatal("no job should be attempted")
	}
}

// TestRunnerRejectsConcurrentStart verifies the single-batch guard.
func TestRunnerRejectsConcurrentStart(t *testing.T) {
	started := make(chan struct{})
	merger := &fakeMerger{
		run: func(ctx context.Context, req merge.Request) (merge.Result, error) {
			close(started)
			<-ctx.Done()
			return merge.Result{}, &merge.MergeError{
				Stage:   "transcode",
				Message: "merge interrupted by cancellation",
				Err:     context.Canceled,
			}
		},
	}
	runner := NewRunner(merger, nil, nil)

	queued := []domain.Job{{ID: "job-1", VideoPath: "/v/a.mp4"}}
	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	if err := runner.Start(queued, testSettings()); !errors.Is(err, ErrBatchAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, ErrBatchAlreadyRunning)
	}

	if err := runner.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	waitForBatchStatus(t, runner, domain.BatchStatusCancelled)
}

// TestRunnerCancelKillsInFlightJob verifies mid-job cancellation terminates
// the active process and never starts the next job.
func TestRunnerCancelKillsInFlightJob(t *testing.T) {
	bus := NewEventBus(100)
	started := make(chan struct{})
	merger := &fakeMerger{
		run: func(ctx context.Context, req merge.Request) (merge.Result, error) {
			close(started)
			<-ctx.Done()
			return merge.Result{}, &merge.MergeError{
				Stage:   "transcode",
				Message: "merge interrupted by cancellation",
				Err:     context.Canceled,
			}
		},
	}
	runner := NewRunner(merger, nil, bus)

	queued := []domain.Job{
		{ID: "job-1", VideoPath: "/v/a.mp4"},
		{ID: "job-2", VideoPath: "/v/b.mp4"},
	}
	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	if err := runner.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	waitForBatchStatus(t, runner, domain.BatchStatusCancelled)

	if got := merger.paths(); len(got) != 1 {
		t.Fatalf("merged jobs = %v, want only the first", got)
	}

	assertEventTypes(t, bus.Since(0), []EventType{
		EventTypeJobStarted,
		EventTypeJobFailed,
		EventTypeBatchCancelled,
	})

	progress := runner.Progress()
	if progress.Cursor != 1 || progress.Total != 2 {
		t.Fatalf("progress = %+v, want cursor 1 of 2", progress)
	}
}

// TestRunnerCancelIdempotent verifies repeated cancel handling.
func TestRunnerCancelIdempotent(t *testing.T) {
	started := make(chan struct{})
	merger := &fakeMerger{
		run: func(ctx context.Context, req merge.Request) (merge.Result, error) {
			close(started)
			<-ctx.Done()
			return merge.Result{}, context.Canceled
		},
	}
	runner := NewRunner(merger, nil, nil)

	if err := runner.Cancel(); !errors.Is(err, ErrNoRunningBatch) {
		t.Fatalf("idle cancel error = %v, want %v", err, ErrNoRunningBatch)
	}

	queued := []domain.Job{{ID: "job-1", VideoPath: "/v/a.mp4"}}
	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	if err := runner.Cancel(); err != nil {
		t.Fatalf("first cancel error = %v", err)
	}
	if err := runner.Cancel(); err != nil && !errors.Is(err, ErrNoRunningBatch) {
		t.Fatalf("second cancel error = %v", err)
	}

	waitForBatchStatus(t, runner, domain.BatchStatusCancelled)
	if err := runner.Cancel(); !errors.Is(err, ErrNoRunningBatch) {
		t.Fatalf("post-run cancel error = %v, want %v", err, ErrNoRunningBatch)
	}
}

// TestRunnerUsesQueueSnapshot verifies caller-side mutations after start do
// not affect the in-flight run.
func TestRunnerUsesQueueSnapshot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	merger := &fakeMerger{
		run: func(ctx context.Context, req merge.Request) (merge.Result, error) {
			once.Do(func() {
				close(started)
				<-release
			})
			return merge.Result{}, nil
		},
	}
	runner := NewRunner(merger, nil, nil)

	queued := []domain.Job{
		{ID: "job-1", VideoPath: "/v/a.mp4"},
		{ID: "job-2", VideoPath: "/v/b.mp4"},
	}
	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-started

	queued[1].VideoPath = "/v/tampered.mp4"
	close(release)
	waitForBatchStatus(t, runner, domain.BatchStatusCompleted)

	got := merger.paths()
	if len(got) != 2 || got[1] != "/v/b.mp4" {
		t.Fatalf("merge paths = %v, want original snapshot", got)
	}
}

// TestRunnerRestartsAfterTerminalState verifies a new batch may start once
// the previous one finished.
func TestRunnerRestartsAfterTerminalState(t *testing.T) {
	runner := NewRunner(&fakeMerger{}, nil, nil)
	queued := []domain.Job{{ID: "job-1", VideoPath: "/v/a.mp4"}}

	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	waitForBatchStatus(t, runner, domain.BatchStatusCompleted)

	if err := runner.Start(queued, testSettings()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	waitForBatchStatus(t, runner, domain.BatchStatusCompleted)
}

// waitForBatchStatus polls until the runner reaches a status or times out.
func waitForBatchStatus(t *testing.T, runner *Runner, want domain.BatchStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runner.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", runner.Status(), want)
}

// assertEventTypes verifies the exact event type sequence.
func assertEventTypes(t *testing.T, events []Event, want []EventType) {
	t.Helper()
	if len(events) != len(want) {
		t.Fatalf("event count = %d, want %d (%+v)", len(events), len(want), events)
	}
	for i, event := range events {
		if event.Type != want[i] {
			t.Fatalf("event[%d] type = %s, want %s", i, event.Type, want[i])
		}
	}
}
