package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/JonMunkholm/csvsql/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrImportNotFound is returned for an unknown or expired import ID.
var ErrImportNotFound = errors.New("import not found")

// ResultRetention is how long a finished import stays queryable.
var ResultRetention = 10 * time.Minute

// Service runs import sessions against one shared store. It bounds the
// number of concurrent sessions and tracks background imports by ID.
type Service struct {
	importer *Importer
	limiter  *ImportLimiter
	defaults Options
	timeout  time.Duration

	mu      sync.RWMutex
	imports map[string]*activeImport
}

type activeImport struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	progress ImportProgress
	result   *ImportResult
	err      error
}

func (a *activeImport) setProgress(p ImportProgress) {
	a.mu.Lock()
	a.progress = p
	a.mu.Unlock()
}

func (a *activeImport) snapshot() ImportProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// NewService creates a service over store using the import section of cfg
// for default options and limits.
func NewService(store Store, cfg config.ImportConfig) (*Service, error) {
	defaults, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("import options: %w", err)
	}
	return &Service{
		importer: NewImporter(store, NewWriteGate()),
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		defaults: defaults,
		timeout:  cfg.Timeout,
		imports:  make(map[string]*activeImport),
	}, nil
}

// Defaults returns a copy of the configured import options, without a table.
func (s *Service) Defaults() Options {
	opts := s.defaults
	opts.Delimiters = append([]rune(nil), s.defaults.Delimiters...)
	return opts
}

// Import runs one session synchronously, holding a limiter slot for its
// duration.
func (s *Service) Import(ctx context.Context, r io.Reader, source string, opts Options) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if logging.ImportID(ctx) == "" {
		ctx = logging.WithImportID(ctx, uuid.NewString())
	}
	return s.importer.Import(ctx, r, source, opts)
}

// Preview reports what importing r would do without writing to the store.
func (s *Service) Preview(ctx context.Context, r io.Reader, source string, opts Options) (*PreviewResponse, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()
	return s.importer.Preview(ctx, r, source, opts)
}

// ImportJob names one file to import.
type ImportJob struct {
	Path  string
	Table string
}

// ImportFile opens path and imports it into opts.Table.
func (s *Service) ImportFile(ctx context.Context, path string, opts Options) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{Source: path, Err: err}
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		opts.Size = info.Size()
	}
	return s.Import(ctx, f, path, opts)
}

// ImportAll imports every job concurrently. A failing job does not stop the
// others; results are returned in job order (nil where a job produced no
// table) together with the joined per-job errors.
func (s *Service) ImportAll(ctx context.Context, jobs []ImportJob, opts Options) ([]*ImportResult, error) {
	results := make([]*ImportResult, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(s.limiter.MaxConcurrent())
	for i, job := range jobs {
		g.Go(func() error {
			jobOpts := opts
			jobOpts.Table = job.Table
			results[i], errs[i] = s.ImportFile(ctx, job.Path, jobOpts)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Path, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// StartImport begins an import in the background and returns its ID. The
// service owns r from then on and closes it when the session ends. The
// request context only bounds the wait for a limiter slot; the session
// itself runs under the configured import timeout.
//
// Returns ErrTooManyImports if no slot frees up in time.
func (s *Service) StartImport(ctx context.Context, r io.ReadCloser, source string, opts Options) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		r.Close()
		return "", err
	}

	id := uuid.NewString()
	var (
		importCtx context.Context
		cancel    context.CancelFunc
	)
	if s.timeout > 0 {
		importCtx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		importCtx, cancel = context.WithCancel(context.Background())
	}
	importCtx = logging.WithImportID(importCtx, id)

	imp := &activeImport{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: ImportProgress{
			ImportID:   id,
			Table:      opts.Table,
			Source:     source,
			Phase:      PhaseQueued,
			BytesTotal: opts.Size,
		},
	}

	s.mu.Lock()
	s.imports[id] = imp
	s.mu.Unlock()

	userProgress := opts.Progress
	opts.Progress = func(p ImportProgress) {
		imp.setProgress(p)
		if userProgress != nil {
			userProgress(p)
		}
	}

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer r.Close()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in import",
					"import_id", id,
					"table", opts.Table,
					"panic", rec,
				)
				p := imp.snapshot()
				p.Phase = PhaseFailed
				p.Error = fmt.Sprintf("internal error: %v", rec)
				imp.mu.Lock()
				imp.progress = p
				imp.err = fmt.Errorf("internal error: %v", rec)
				imp.mu.Unlock()
				close(imp.done)
				s.cleanup(id, ResultRetention)
			}
		}()

		result, err := s.importer.Import(importCtx, r, source, opts)

		imp.mu.Lock()
		imp.result, imp.err = result, err
		if err != nil && !imp.progress.Phase.Done() {
			imp.progress.Phase = PhaseFailed
			imp.progress.Error = err.Error()
		}
		imp.mu.Unlock()

		if err != nil {
			logging.FromContext(importCtx).Warn("import failed", "source", source, "error", err)
		}
		close(imp.done)
		s.cleanup(id, ResultRetention)
	}()

	return id, nil
}

func (s *Service) lookup(id string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return imp, nil
}

// Progress returns the latest progress of an import without blocking.
func (s *Service) Progress(id string) (ImportProgress, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return ImportProgress{}, err
	}
	return imp.snapshot(), nil
}

// ImportStatus is the externally visible state of a tracked import.
type ImportStatus struct {
	Progress ImportProgress `json:"progress"`
	Done     bool           `json:"done"`
	Result   *ImportResult  `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Code     string         `json:"code,omitempty"`
}

// Status returns the progress of an import and, once it has finished, its
// result and error.
func (s *Service) Status(id string) (ImportStatus, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return ImportStatus{}, err
	}

	st := ImportStatus{Progress: imp.snapshot()}
	select {
	case <-imp.done:
	default:
		return st, nil
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	st.Done = true
	st.Result = imp.result
	if imp.err != nil {
		msg := MapError(imp.err)
		st.Error = imp.err.Error()
		st.Code = msg.Code
	}
	return st, nil
}

// Wait blocks until the import finishes or ctx ends, then returns its
// result and error.
func (s *Service) Wait(ctx context.Context, id string) (*ImportResult, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-imp.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.result, imp.err
}

// Cancel stops a running import. Rows already committed stay in the store.
func (s *Service) Cancel(id string) error {
	imp, err := s.lookup(id)
	if err != nil {
		return err
	}
	imp.cancel()
	return nil
}

// List returns the progress of every tracked import, sorted by ID.
func (s *Service) List() []ImportProgress {
	s.mu.RLock()
	out := make([]ImportProgress, 0, len(s.imports))
	for _, imp := range s.imports {
		out = append(out, imp.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ImportID < out[j].ImportID })
	return out
}

// LimiterStatus returns the import limiter state for health checks.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import has released its slot
// or ctx ends. Used during graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}
