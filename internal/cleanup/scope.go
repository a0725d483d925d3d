// Package cleanup tracks the temporary files created while serving a request
// and removes them when the request ends.
package cleanup

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

// remover deletes a file by its path.
type remover interface {
	Delete(path string) error
}

// Scope is a registry of temporary files owned by one request.
// Every tracked file is removed at most once; a failed removal is logged
// and never returned to the caller.
type Scope struct {
	mu      sync.Mutex
	remover remover
	paths   []string
	tag     string
}

// New creates an empty Scope. The tag is attached to every log line
// (typically the request id).
func New(r remover, tag string) *Scope {
	return &Scope{remover: r, tag: tag}
}

// Track registers a path for removal on Release.
func (s *Scope) Track(path string) {
	if path == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.paths {
		if p == path {
			return
		}
	}
	s.paths = append(s.paths, path)
}

// Discard removes a tracked path right away and forgets it.
func (s *Scope) Discard(path string) {
	s.mu.Lock()
	for i, p := range s.paths {
		if p == path {
			s.paths = append(s.paths[:i], s.paths[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.remove(path)
}

// pending returns the paths that are still waiting for removal.
func (s *Scope) pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.paths))
	copy(out, s.paths)

	return out
}

// Release removes every tracked path. Calling it more than once is a no-op.
func (s *Scope) Release() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		s.remove(p)
	}
}

func (s *Scope) remove(path string) {
	err := s.remover.Delete(path)
	if err == nil {
		zlog.Logger.Debug().Str("request_id", s.tag).Str("path", path).Msg("cleaned up temp file")
		return
	}

	if errors.Is(err, fs.ErrNotExist) {
		return
	}

	zlog.Logger.Warn().Err(err).Str("request_id", s.tag).Str("path", path).Msg("could not clean up temp file")
}
