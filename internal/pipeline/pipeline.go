// Package pipeline holds the ordered input collection and runs batch
// conversions over it. All state lives in one Pipeline value; inputs and
// results change only through its methods.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AnyUserName/imgconv-cli/internal/converter"
	"github.com/AnyUserName/imgconv-cli/internal/format"
	"github.com/AnyUserName/imgconv-cli/internal/logging"
	"github.com/AnyUserName/imgconv-cli/internal/metrics"
)

// DefaultMaxFiles is the input ceiling when Config.MaxFiles is unset.
const DefaultMaxFiles = 100

var (
	// ErrSuperseded is returned by a run whose results were invalidated by
	// Submit, Clear, RemoveAt or a newer run before it finished.
	ErrSuperseded = errors.New("run superseded")
	// ErrIndexOutOfRange is returned by RemoveAt.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Config holds the pipeline parameters.
type Config struct {
	MaxFiles int
	Workers  int // 1 converts sequentially; >1 converts in parallel, same result order
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Pipeline is the batch orchestrator.
type Pipeline struct {
	cfg  Config
	conv *converter.Converter
	log  *slog.Logger

	mu         sync.Mutex
	inputs     []InputFile
	results    []Result
	runID      string
	generation uint64
}

// New creates a pipeline converting through conv (nil selects the default codec).
func New(cfg Config, conv *converter.Converter) *Pipeline {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if conv == nil {
		conv = converter.New(nil)
	}
	return &Pipeline{
		cfg:  cfg,
		conv: conv,
		log:  logging.OrDiscard(cfg.Logger),
	}
}

// MaxFiles returns the configured input ceiling.
func (p *Pipeline) MaxFiles() int { return p.cfg.MaxFiles }

// Submit appends the image files among files, in order, until the ceiling
// is reached. Non-image media types and files past the ceiling are dropped
// without error. Any previous result set is discarded. Returns how many
// files were accepted.
func (p *Pipeline) Submit(files ...InputFile) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := p.cfg.MaxFiles - len(p.inputs)
	accepted, skipped, dropped := 0, 0, 0
	for _, f := range files {
		if !format.IsImageMediaType(f.MediaType) {
			skipped++
			continue
		}
		if remaining <= 0 {
			dropped++
			continue
		}
		p.inputs = append(p.inputs, f)
		remaining--
		accepted++
	}

	p.invalidateLocked()
	p.log.Debug("submitted",
		"accepted", accepted, "not_image", skipped, "over_capacity", dropped, "held", len(p.inputs))
	return accepted
}

// Clear empties the input collection and discards results.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = nil
	p.invalidateLocked()
}

// RemoveAt removes the input at index i and discards results.
func (p *Pipeline) RemoveAt(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.inputs) {
		return fmt.Errorf("%w: %d (have %d inputs)", ErrIndexOutOfRange, i, len(p.inputs))
	}
	p.inputs = append(p.inputs[:i:i], p.inputs[i+1:]...)
	p.invalidateLocked()
	return nil
}

// invalidateLocked drops published results and orphans any in-flight run.
func (p *Pipeline) invalidateLocked() {
	p.generation++
	p.results = nil
	p.runID = ""
	p.cfg.Metrics.SetInputsHeld(len(p.inputs))
}

// Inputs returns a copy of the held inputs in submission order.
func (p *Pipeline) Inputs() []InputFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]InputFile, len(p.inputs))
	copy(out, p.inputs)
	return out
}

// Len returns the number of held inputs.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inputs)
}

// Results returns a copy of the last published result set, or nil if there
// is none.
func (p *Pipeline) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneResults(p.results)
}

// RunID returns the identifier of the run that produced Results, if any.
func (p *Pipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// RunHandle tracks one run started with Start.
type RunHandle struct {
	ID     string
	Format format.Format

	done    chan struct{}
	results []Result
	err     error
}

// Done is closed when the run has finished.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes and returns its results.
func (h *RunHandle) Wait() ([]Result, error) {
	<-h.done
	return h.results, h.err
}

// Start begins a run converting every held input to target and returns
// immediately. The previous result set is discarded first, even when target
// turns out to be unsupported. Results are
// published only when every input has been attempted, and only if nothing
// superseded the run meanwhile.
func (p *Pipeline) Start(ctx context.Context, target format.Format) *RunHandle {
	h := &RunHandle{ID: uuid.NewString(), Format: target, done: make(chan struct{})}

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.results = nil
	p.runID = ""
	inputs := make([]InputFile, len(p.inputs))
	copy(inputs, p.inputs)
	p.mu.Unlock()

	if _, ok := format.Lookup(target); !ok {
		h.err = fmt.Errorf("%w: %q", format.ErrUnsupported, target)
		close(h.done)
		return h
	}

	go func() {
		defer close(h.done)
		h.results, h.err = p.execute(ctx, gen, h.ID, inputs, target)
	}()
	return h
}

// Run converts every held input to target and waits for the result set.
func (p *Pipeline) Run(ctx context.Context, target format.Format) ([]Result, error) {
	return p.Start(ctx, target).Wait()
}

func (p *Pipeline) execute(ctx context.Context, gen uint64, id string, inputs []InputFile, target format.Format) ([]Result, error) {
	log := p.log.With("run", id, "format", target)
	log.Info("run started", "files", len(inputs), "workers", p.cfg.Workers)

	var (
		results []Result
		err     error
	)
	if p.cfg.Workers > 1 && len(inputs) > 1 {
		results, err = p.convertParallel(ctx, gen, inputs, target, log)
	} else {
		results, err = p.convertSequential(ctx, gen, inputs, target, log)
	}
	if err != nil {
		status := "cancelled"
		if errors.Is(err, ErrSuperseded) {
			status = "superseded"
		}
		p.cfg.Metrics.IncRun(status)
		log.Info("run discarded", "reason", status)
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		p.cfg.Metrics.IncRun("superseded")
		log.Info("run discarded", "reason", "superseded")
		return nil, ErrSuperseded
	}
	p.results = results
	p.runID = id
	p.cfg.Metrics.IncRun("completed")

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	log.Info("run complete", "succeeded", len(results)-failed, "failed", failed)
	return cloneResults(results), nil
}

func (p *Pipeline) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == gen
}

func (p *Pipeline) convertSequential(ctx context.Context, gen uint64, inputs []InputFile, target format.Format, log *slog.Logger) ([]Result, error) {
	results := make([]Result, len(inputs))
	for i, in := range inputs {
		if !p.current(gen) {
			return nil, ErrSuperseded
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := processInput(ctx, p.conv, i, in, target, log, p.cfg.Metrics)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// convertParallel fans out over a bounded errgroup. Each goroutine writes
// only its own slot, so result order equals input order.
func (p *Pipeline) convertParallel(ctx context.Context, gen uint64, inputs []InputFile, target format.Format, log *slog.Logger) ([]Result, error) {
	results := make([]Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if !p.current(gen) {
				return ErrSuperseded
			}
			res, err := processInput(gctx, p.conv, i, in, target, log, p.cfg.Metrics)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func cloneResults(rs []Result) []Result {
	if rs == nil {
		return nil
	}
	out := make([]Result, len(rs))
	copy(out, rs)
	return out
}
