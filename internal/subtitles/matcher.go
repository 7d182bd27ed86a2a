package subtitles

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IsSubtitlePath reports whether the path carries a supported subtitle
// extension.
func IsSubtitlePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt", ".ass":
		return true
	default:
		return false
	}
}

// Matcher discovers a companion subtitle file sitting beside a video.
type Matcher struct {
	readDir func(string) ([]os.DirEntry, error)
}

// NewMatcher builds a matcher using real OS dependencies.
func NewMatcher() *Matcher {
	return &Matcher{readDir: os.ReadDir}
}

// Match returns the path of a subtitle file in the video's directory whose
// name starts with the video's base name, or "" when none exists. Candidates
// are sorted lexicographically so the result does not depend on
// directory-listing order. This is a convenience heuristic: any I/O failure
// simply yields no match.
func (m *Matcher) Match(videoPath string) string {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	if base == "" || base == "." {
		return ""
	}

	dir := filepath.Dir(videoPath)
	entries, err := m.readDir(dir)
	if err != nil {
		return ""
	}

	candidates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base) || !IsSubtitlePath(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Strings(candidates)
	return filepath.Join(dir, candidates[0])
}

// NewMatcherForTests creates a matcher with an injectable directory reader.
func NewMatcherForTests(readDir func(string) ([]os.DirEntry, error)) *Matcher {
	return &Matcher{readDir: readDir}
}
