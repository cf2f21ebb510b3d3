// Package session holds the currently selected model and its loaded engine.
//
// A Session is an explicit, caller-owned context object: it replaces the
// ambient "current model" state a UI would keep. At most one engine is loaded
// at any time. Selecting a different model releases the previous engine
// before the new one is loaded; selecting the loaded model again is a no-op.
//
// A load that finishes after a newer selection has been made is stale: its
// engine is closed immediately and its caller receives ErrSuperseded.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/rmbg-local/internal/engine"
	"github.com/ironsheep/rmbg-local/internal/registry"
)

// ErrSuperseded is returned by Select when another model was selected while
// the requested one was loading.
var ErrSuperseded = errors.New("model selection superseded")

// Session tracks the selected model. It is safe for concurrent use.
type Session struct {
	loader engine.Loader
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.Mutex
	current registry.ModelType
	engine  engine.Engine
	gen     uint64
}

// New returns an empty session that loads engines with loader.
func New(loader engine.Loader, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{loader: loader, logger: logger}
}

// Select makes id the current model and returns its engine, loading it when
// needed.
//
// Concurrent calls for the same selection share one load; only the caller
// that started it receives progress. The shared load is detached from the
// callers' contexts: a caller whose ctx ends stops waiting and gets ctx.Err(),
// while the load carries on for the others and, if still current, is kept.
// A failed load leaves no engine behind and the next Select retries.
func (s *Session) Select(ctx context.Context, id registry.ModelType, progress engine.ProgressFunc) (engine.Engine, error) {
	d, err := registry.Describe(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current == id && s.engine != nil {
		e := s.engine
		s.mu.Unlock()
		return e, nil
	}
	if s.current != id {
		s.releaseLocked()
		s.logger.Info("model selected", "model", string(id), "previous", string(s.current))
		s.current = id
		s.gen++
	}
	gen := s.gen
	s.mu.Unlock()

	key := fmt.Sprintf("%s#%d", id, gen)
	ch := s.group.DoChan(key, func() (any, error) {
		e, err := s.loader.Load(context.WithoutCancel(ctx), d, progress)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			s.logger.Info("discarding stale model load", "model", string(id))
			s.closeEngine(id, e)
			return nil, fmt.Errorf("%w: %s", ErrSuperseded, id)
		}
		s.engine = e
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(engine.Engine), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the selected model and whether its engine is loaded.
func (s *Session) Current() (registry.ModelType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.engine != nil
}

// Close releases the loaded engine and clears the selection. Loads still in
// flight become stale.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.current
	var err error
	if s.engine != nil {
		err = s.engine.Close()
		s.engine = nil
	}
	s.current = ""
	s.gen++
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", id, err)
	}
	return nil
}

// releaseLocked drops the current engine. Release failures are logged and
// do not stop the caller from loading the next model.
func (s *Session) releaseLocked() {
	if s.engine == nil {
		return
	}
	s.closeEngine(s.current, s.engine)
	s.engine = nil
}

func (s *Session) closeEngine(id registry.ModelType, e engine.Engine) {
	if err := e.Close(); err != nil {
		s.logger.Warn("failed to release model", "model", string(id), "error", err)
	}
}
