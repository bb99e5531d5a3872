// Package replay serves recorded screenshots as a Screen, so graphs can be
// exercised offline against a captured session.
//
// Frames are PNG files matched by a doublestar pattern and served in lexical
// order. A frame's labels are read from a YAML file next to it with the same
// base name, e.g. 0003.png and 0003.yaml.
package replay

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"

	"github.com/agentstation/operation"
)

// ErrNoFrames is returned when a pattern matches no PNG file.
var ErrNoFrames = errors.New("replay: no frames")

// Screen replays frames in order. The last frame repeats once the recording
// is exhausted.
type Screen struct {
	mu    sync.Mutex
	paths []string
	next  int
	cache map[int]*operation.Frame
	now   func() time.Time
}

// Open collects the frames matching pattern.
func Open(pattern string) (*Screen, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	paths := matches[:0]
	for _, m := range matches {
		if strings.EqualFold(filepath.Ext(m), ".png") {
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, pattern)
	}
	sort.Strings(paths)

	return &Screen{
		paths: paths,
		cache: make(map[int]*operation.Frame),
		now:   time.Now,
	}, nil
}

// Len returns the number of frames.
func (s *Screen) Len() int {
	return len(s.paths)
}

// Rewind restarts the replay from the first frame.
func (s *Screen) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}

// Screenshot implements operation.Screen.
func (s *Screen) Screenshot(ctx context.Context) (*operation.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.next
	if idx >= len(s.paths) {
		idx = len(s.paths) - 1
	} else {
		s.next++
	}

	f, ok := s.cache[idx]
	if !ok {
		var err error
		if f, err = load(s.paths[idx]); err != nil {
			return nil, err
		}
		s.cache[idx] = f
	}
	return &operation.Frame{Image: f.Image, Labels: f.Labels, Captured: s.now()}, nil
}

func load(path string) (*operation.Frame, error) {
	file, err := os.Open(path) //nolint:gosec // frame paths come from the operator's pattern
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	labels, err := readLabels(strings.TrimSuffix(path, filepath.Ext(path)) + ".yaml")
	if err != nil {
		return nil, err
	}
	return &operation.Frame{Image: img, Labels: labels}, nil
}

func readLabels(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // sidecar of an operator-chosen frame
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	labels := map[string]any{}
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	return labels, nil
}
