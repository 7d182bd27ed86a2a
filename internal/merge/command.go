package merge

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"video-merger/internal/domain"
)

// ErrToolNotFound is returned when the ffmpeg binary cannot be resolved.
var ErrToolNotFound = errors.New("ffmpeg not found on PATH")

// quality maps each compression tier to its x264 preset and CRF value.
// Lower CRF means higher fidelity and a larger file.
type quality struct {
	Preset string
	CRF    int
}

var qualityByLevel = map[domain.CompressionLevel]quality{
	domain.CompressionFast:   {Preset: "fast", CRF: 28},
	domain.CompressionMedium: {Preset: "medium", CRF: 23},
	domain.CompressionSlow:   {Preset: "slow", CRF: 18},
}

// Command is a fully resolved external transcoder invocation.
type Command struct {
	Path string
	Args []string
}

// Builder turns a job plus batch settings into an ffmpeg invocation.
type Builder struct {
	ffmpegName string
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
}

// NewBuilder constructs the production builder with OS dependencies.
func NewBuilder() *Builder {
	return &Builder{
		ffmpegName: "ffmpeg",
		lookPath:   exec.LookPath,
		stat:       os.Stat,
	}
}

// ResolveTool locates the ffmpeg binary, returning ErrToolNotFound when it
// is not available. Used as a preflight before any batch work begins.
func (b *Builder) ResolveTool() (string, error) {
	path, err := b.lookPath(b.ffmpegName)
	if err != nil {
		return "", ErrToolNotFound
	}
	return path, nil
}

// Build assembles the complete command for one merge job. The argument
// order is fixed because ffmpeg is argument-order-sensitive; identical
// inputs always yield an identical argument list. The only filesystem
// access is an existence check on the input video.
func (b *Builder) Build(job domain.Job, settings domain.Settings) (Command, error) {
	path, err := b.ResolveTool()
	if err != nil {
		return Command{}, err
	}

	if _, err := b.stat(job.VideoPath); err != nil {
		return Command{}, fmt.Errorf("input video not accessible: %s: %w", job.VideoPath, err)
	}

	return Command{Path: path, Args: buildMergeArgs(job, settings)}, nil
}

// buildMergeArgs builds the ordered ffmpeg argument list: input, optional
// subtitle burn-in filter, verbatim audio copy, tiered x264 encode, output.
func buildMergeArgs(job domain.Job, settings domain.Settings) []string {
	args := make([]string, 0, 20)
	args = append(args, "-hide_banner", "-nostdin", "-y", "-i", job.VideoPath)

	if job.SubtitlePath != "" {
		args = append(args, "-vf", subtitleFilter(job.SubtitlePath))
	}

	args = append(args, "-c:a", "copy")

	q, ok := qualityByLevel[settings.CompressionLevel]
	if !ok {
		q = qualityByLevel[domain.CompressionMedium]
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", q.Preset,
		"-crf", strconv.Itoa(q.CRF),
	)

	args = append(args, OutputPath(job, settings))
	return args
}

// subtitleFilter builds the burn-in filter expression with the subtitle
// character encoding forced to UTF-8.
func subtitleFilter(subtitlePath string) string {
	return "subtitles=filename=" + escapeFilterValue(subtitlePath) + ":charenc=UTF-8"
}

// filterEscaper escapes the characters that delimit or quote values inside
// an ffmpeg filter graph, so arbitrary paths survive filter parsing.
var filterEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

// escapeFilterValue escapes a single filter argument value.
func escapeFilterValue(value string) string {
	return filterEscaper.Replace(value)
}

// OutputPath returns the merge target: the configured output directory (or
// the video's own directory when unset) joined with
// "<videoBaseName>_merged.<container>".
func OutputPath(job domain.Job, settings domain.Settings) string {
	dir := strings.TrimSpace(settings.OutputDir)
	if dir == "" {
		dir = filepath.Dir(job.VideoPath)
	}

	base := strings.TrimSuffix(filepath.Base(job.VideoPath), filepath.Ext(job.VideoPath))
	container := settings.Container
	if !container.Valid() {
		container = domain.ContainerMP4
	}

	return filepath.Join(dir, base+"_merged."+string(container))
}

// NewBuilderForTests constructs a builder with injectable dependencies.
func NewBuilderForTests(
	ffmpegName string,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
) *Builder {
	return &Builder{
		ffmpegName: ffmpegName,
		lookPath:   lookPath,
		stat:       stat,
	}
}
