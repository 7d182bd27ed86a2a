package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"video-merger/internal/config"
	"video-merger/internal/diagnostics"
	"video-merger/internal/domain"
	"video-merger/internal/jobs"
	"video-merger/internal/merge"
	"video-merger/internal/subtitles"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video files",
		Pattern:     "*.mp4;*.mkv;*.mov;*.avi;*.webm;*.m4v",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var subtitleDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Subtitle files",
		Pattern:     "*.srt;*.ass",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the job queue, the batch runner, and UI runtime
// callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Queue       *jobs.Queue
	Runner      *jobs.Runner
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".video-merger", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Queue:       jobs.NewQueue(subtitles.NewMatcher()),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
	}
	app.Runner = jobs.NewRunner(
		merge.NewPipeline(),
		merge.NewBuilder().ResolveTool,
		jobs.ReporterFunc(app.publishEvent),
	)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Video Merger",
		Width:       1080,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = normalizeSettings(settings)
	a.Diagnostics = a.checker.Run(a.Settings)
	return a.Diagnostics, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// AddJob validates and queues one video, auto-matching a sibling subtitle.
func (a *App) AddJob(videoPath string) (domain.Job, error) {
	if err := a.requireEditableQueue(); err != nil {
		return domain.Job{}, err
	}
	return a.Queue.Add(videoPath)
}

// AddJobs queues every recognized video among the given paths. Paths with
// unrecognized extensions (e.g. stray files in a multi-drop) are skipped.
func (a *App) AddJobs(paths []string) ([]domain.Job, error) {
	if err := a.requireEditableQueue(); err != nil {
		return nil, err
	}

	added := make([]domain.Job, 0, len(paths))
	for _, path := range paths {
		if !jobs.IsVideoPath(path) {
			continue
		}
		job, err := a.Queue.Add(path)
		if err != nil {
			return added, err
		}
		added = append(added, job)
	}
	return added, nil
}

// SetSubtitle assigns a subtitle file to a queued job.
func (a *App) SetSubtitle(jobID, subtitlePath string) error {
	if err := a.requireEditableQueue(); err != nil {
		return err
	}
	return a.Queue.SetSubtitle(jobID, subtitlePath)
}

// ClearSubtitle removes the subtitle assignment from a queued job.
func (a *App) ClearSubtitle(jobID string) error {
	if err := a.requireEditableQueue(); err != nil {
		return err
	}
	return a.Queue.ClearSubtitle(jobID)
}

// RemoveJob deletes a job from the queue.
func (a *App) RemoveJob(jobID string) error {
	if err := a.requireEditableQueue(); err != nil {
		return err
	}
	return a.Queue.Remove(jobID)
}

// ClearQueue removes all queued jobs.
func (a *App) ClearQueue() error {
	if err := a.requireEditableQueue(); err != nil {
		return err
	}
	a.Queue.Clear()
	return nil
}

// ListJobs returns the queued jobs in insertion order.
func (a *App) ListJobs() []domain.Job {
	return a.Queue.Jobs()
}

// StartBatch snapshots the queue and starts a batch run with the persisted
// settings.
func (a *App) StartBatch() error {
	settings, err := a.GetSettings()
	if err != nil {
		return err
	}
	return a.Runner.Start(a.Queue.Jobs(), settings)
}

// CancelBatch requests cancellation of the running batch.
func (a *App) CancelBatch() error {
	return a.Runner.Cancel()
}

// BatchProgress returns cursor, total, and status for the progress bar.
func (a *App) BatchProgress() domain.BatchProgress {
	return a.Runner.Progress()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// PickVideoFiles opens a native multi-select dialog for video files.
func (a *App) PickVideoFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video files",
		Filters: videoDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// PickSubtitleFile opens a native file dialog for subtitle selection.
func (a *App) PickSubtitleFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select subtitle file",
		Filters: subtitleDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for merged outputs.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in the
// platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// requireEditableQueue rejects queue edits while a batch is running.
func (a *App) requireEditableQueue() error {
	if a.Runner != nil && a.Runner.IsRunning() {
		return fmt.Errorf("queue is locked while a batch is running")
	}
	return nil
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) jobs.Event {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "batch:event", published)
	}
	return published
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and coerces unknown enum values to
// their defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	if !settings.Container.Valid() {
		settings.Container = domain.ContainerMP4
	}
	if !settings.CompressionLevel.Valid() {
		settings.CompressionLevel = domain.CompressionMedium
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
