package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"video-merger/internal/domain"
	"video-merger/internal/subtitles"
)

// ErrJobNotFound is returned when a job ID does not exist in the queue.
var ErrJobNotFound = errors.New("job not found")

// videoExtensions is the fixed set of recognized input container extensions.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
}

// IsVideoPath reports whether the path carries a recognized video extension.
func IsVideoPath(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// SubtitleMatcher discovers a companion subtitle for a queued video.
type SubtitleMatcher interface {
	Match(videoPath string) string
}

// Queue holds pending merge jobs in insertion order. Jobs are immutable
// except for their subtitle path, which stays editable until a batch
// snapshots the queue.
type Queue struct {
	mu      sync.RWMutex
	jobs    []domain.Job
	matcher SubtitleMatcher
	stat    func(string) (os.FileInfo, error)
	newID   func() string
}

// NewQueue creates an empty queue. The matcher may be nil to disable
// automatic subtitle discovery.
func NewQueue(matcher SubtitleMatcher) *Queue {
	return &Queue{
		matcher: matcher,
		stat:    os.Stat,
		newID:   uuid.NewString,
	}
}

// Add validates and appends one video, auto-populating its subtitle when a
// sibling subtitle file exists.
func (q *Queue) Add(videoPath string) (domain.Job, error) {
	videoPath = strings.TrimSpace(videoPath)
	if !IsVideoPath(videoPath) {
		return domain.Job{}, fmt.Errorf("unsupported video file: %s", filepath.Base(videoPath))
	}

	info, err := q.stat(videoPath)
	if err != nil {
		return domain.Job{}, fmt.Errorf("cannot access video file: %s: %w", videoPath, err)
	}
	if info.IsDir() {
		return domain.Job{}, fmt.Errorf("not a video file: %s", videoPath)
	}

	job := domain.Job{
		ID:        q.newID(),
		VideoPath: videoPath,
	}
	if q.matcher != nil {
		job.SubtitlePath = q.matcher.Match(videoPath)
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	return job, nil
}

// SetSubtitle assigns a subtitle file to an existing job.
func (q *Queue) SetSubtitle(jobID, subtitlePath string) error {
	subtitlePath = strings.TrimSpace(subtitlePath)
	if !subtitles.IsSubtitlePath(subtitlePath) {
		return fmt.Errorf("unsupported subtitle file: %s", filepath.Base(subtitlePath))
	}
	if _, err := q.stat(subtitlePath); err != nil {
		return fmt.Errorf("cannot access subtitle file: %s: %w", subtitlePath, err)
	}

	return q.update(jobID, func(job *domain.Job) {
		job.SubtitlePath = subtitlePath
	})
}

// ClearSubtitle removes the subtitle assignment from a job.
func (q *Queue) ClearSubtitle(jobID string) error {
	return q.update(jobID, func(job *domain.Job) {
		job.SubtitlePath = ""
	})
}

// Remove deletes a job from the queue.
func (q *Queue) Remove(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if job.ID == jobID {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return nil
		}
	}
	return ErrJobNotFound
}

// Jobs returns a snapshot copy of the queue in insertion order.
func (q *Queue) Jobs() []domain.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]domain.Job(nil), q.jobs...)
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.jobs)
}

// Clear removes all jobs.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}

// update applies a mutation to the job with the given ID.
func (q *Queue) update(jobID string, mutate func(*domain.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.jobs {
		if q.jobs[i].ID == jobID {
			mutate(&q.jobs[i])
			return nil
		}
	}
	return ErrJobNotFound
}

// NewQueueForTests creates a queue with injectable dependencies.
func NewQueueForTests(
	matcher SubtitleMatcher,
	stat func(string) (os.FileInfo, error),
	newID func() string,
) *Queue {
	return &Queue{
		matcher: matcher,
		stat:    stat,
		newID:   newID,
	}
}
