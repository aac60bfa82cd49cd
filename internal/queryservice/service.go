// Package queryservice owns the active metadata index snapshot and answers
// query submissions against it.
package queryservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/dql"
	"github.com/starford/ansuz/internal/engine"
	"github.com/starford/ansuz/internal/metaindex"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
)

// NeedsIndexMessage is returned to callers that query before the first build.
const NeedsIndexMessage = "The metadata index has not been built yet. Rebuild the index and run the query again."

// Source is the document store adapter the index is built from.
type Source interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	LinkGraph(path string) (models.Links, error)
}

// Status describes the active snapshot.
type Status struct {
	Ready     bool      `json:"ready"`
	BuildID   string    `json:"buildId,omitempty"`
	BuiltAt   time.Time `json:"builtAt,omitzero"`
	Documents int       `json:"documents"`
	Building  bool      `json:"building"`
}

// Response is the submitQuery contract: a result on success, otherwise an
// error message with needsIndex set when no snapshot exists yet.
type Response struct {
	Success    bool
	Error      string
	NeedsIndex bool
	Result     *engine.Result
}

func (r Response) MarshalJSON() ([]byte, error) {
	if !r.Success || r.Result == nil {
		return json.Marshal(struct {
			Success    bool   `json:"success"`
			Error      string `json:"error"`
			NeedsIndex bool   `json:"needsIndex,omitempty"`
		}{false, r.Error, r.NeedsIndex})
	}
	body, err := r.Result.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+16)
	out = append(out, `{"success":true,`...)
	return append(out, body[1:]...), nil
}

// Options configure a Service.
type Options struct {
	Engine engine.Options
	// Debounce delays Schedule-triggered rebuilds. Zero rebuilds immediately.
	Debounce time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Service owns the current index snapshot. Rebuilds construct a complete new
// index and swap it in atomically; queries read whichever snapshot is active
// when they start.
type Service struct {
	src     Source
	opts    Options
	logger  *slog.Logger
	current atomic.Pointer[metaindex.Index]

	buildMu  sync.Mutex // serialises rebuilds
	building atomic.Bool

	mu        sync.Mutex
	listeners []func(Status)
	timer     *time.Timer
	gen       uint64 // bumped by every Schedule and Stop
}

// New creates a service with no snapshot; queries return needsIndex until
// the first Rebuild completes.
func New(src Source, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, opts: opts, logger: logger}
}

// OnRebuild registers fn to be called after every successful rebuild.
func (s *Service) OnRebuild(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the active index, or nil before the first build.
func (s *Service) Snapshot() *metaindex.Index { return s.current.Load() }

// Ready reports whether a snapshot exists.
func (s *Service) Ready() bool { return s.current.Load() != nil }

// Status describes the active snapshot.
func (s *Service) Status() Status {
	st := Status{Building: s.building.Load()}
	if idx := s.current.Load(); idx != nil {
		st.Ready = true
		st.BuildID = idx.BuildID()
		st.BuiltAt = idx.BuiltAt()
		st.Documents = idx.Len()
	}
	return st
}

// Rebuild lists every document, builds a fresh index and swaps it in. On
// failure the previous snapshot stays active.
func (s *Service) Rebuild(ctx context.Context) (Status, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	s.building.Store(true)
	defer s.building.Store(false)

	start := time.Now()
	docs, err := s.src.ListDocuments(ctx)
	if err != nil {
		s.opts.Metrics.ObserveRebuild(err, time.Since(start), 0, time.Time{})
		return s.Status(), fmt.Errorf("queryservice: list documents: %w", err)
	}
	idx := metaindex.Build(docs, s.src)
	s.current.Store(idx)
	s.opts.Metrics.ObserveRebuild(nil, time.Since(start), idx.Len(), idx.BuiltAt())

	st := s.Status()
	st.Building = false
	s.logger.Info("index rebuilt",
		slog.String("build_id", idx.BuildID()),
		slog.Int("documents", idx.Len()),
		slog.Duration("took", time.Since(start)))

	s.mu.Lock()
	listeners := append([]func(Status){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
	return st, nil
}

// Schedule requests a rebuild after the debounce delay. Requests arriving
// within the delay collapse into one rebuild.
func (s *Service) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.fire(gen) })
}

// fire runs the rebuild for schedule generation gen. A timer that expired
// while a newer Schedule call was replacing it finds its generation stale
// and does nothing.
func (s *Service) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()
	if _, err := s.Rebuild(context.Background()); err != nil {
		s.logger.Warn("scheduled rebuild failed", slog.String("error", err.Error()))
	}
}

// Stop cancels a pending scheduled rebuild.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Submit parses and executes one query against the active snapshot.
func (s *Service) Submit(_ context.Context, text string) Response {
	start := time.Now()
	q, err := dql.Parse(text)
	if err != nil {
		s.logger.Debug("query rejected", slog.String("query", text), slog.String("error", err.Error()))
		s.opts.Metrics.ObserveQuery("", metrics.OutcomeQueryError, time.Since(start), 0)
		return Response{Error: err.Error()}
	}

	res, err := engine.Execute(s.current.Load(), q, s.opts.Engine)
	if err != nil {
		if errors.Is(err, apperr.ErrIndexNotReady) {
			s.opts.Metrics.ObserveQuery(q.Type.String(), metrics.OutcomeNeedsIndex, time.Since(start), 0)
			return Response{Error: NeedsIndexMessage, NeedsIndex: true}
		}
		s.opts.Metrics.ObserveQuery(q.Type.String(), metrics.OutcomeQueryError, time.Since(start), 0)
		return Response{Error: err.Error()}
	}
	s.opts.Metrics.ObserveQuery(q.Type.String(), metrics.OutcomeOK, time.Since(start), res.TotalCount)
	return Response{Success: true, Result: res}
}
