// Package export hands successful conversion results to a persistence Sink.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AnyUserName/imgconv-cli/internal/logging"
	"github.com/AnyUserName/imgconv-cli/internal/pipeline"
)

// ErrNotExportable is returned by ExportOne for failed results.
var ErrNotExportable = errors.New("result has no output to export")

// Sink persists one named blob. It is the save-to-disk (or download,
// upload, ...) capability of the host platform.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, name string, data []byte) error

func (f SinkFunc) Save(ctx context.Context, name string, data []byte) error {
	return f(ctx, name, data)
}

// Blob is one (filename, bytes) pair ready for an external archiver.
type Blob struct {
	Name string
	Data []byte
}

// Options tune an Exporter.
type Options struct {
	// Pace is the delay between consecutive saves in ExportAll. Some sinks
	// (browser download triggers, rate-limited APIs) need it; disks don't.
	Pace   time.Duration
	Logger *slog.Logger
}

// Exporter delivers results to a Sink.
type Exporter struct {
	sink Sink
	pace time.Duration
	log  *slog.Logger
}

// New returns an Exporter writing to sink.
func New(sink Sink, opts Options) *Exporter {
	return &Exporter{
		sink: sink,
		pace: opts.Pace,
		log:  logging.OrDiscard(opts.Logger),
	}
}

// ExportOne saves a single successful result under its output name.
func (e *Exporter) ExportOne(ctx context.Context, r pipeline.Result) error {
	if !r.OK() || len(r.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrNotExportable, r.SourceName)
	}
	if err := e.sink.Save(ctx, r.OutputName, r.Data); err != nil {
		return fmt.Errorf("save %s: %w", r.OutputName, err)
	}
	e.log.Debug("exported", "file", r.OutputName, "size", len(r.Data))
	return nil
}

// ExportAll saves every successful result in result order and returns how
// many were saved. Sink failures do not stop the remaining saves; they are
// returned joined.
func (e *Exporter) ExportAll(ctx context.Context, results []pipeline.Result) (int, error) {
	var (
		errs  []error
		saved int
		first = true
	)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		if !first && e.pace > 0 {
			select {
			case <-ctx.Done():
				return saved, errors.Join(append(errs, ctx.Err())...)
			case <-time.After(e.pace):
			}
		}
		first = false

		if err := ctx.Err(); err != nil {
			return saved, errors.Join(append(errs, err)...)
		}
		if err := e.ExportOne(ctx, r); err != nil {
			e.log.Warn("export failed", "file", r.OutputName, "err", err)
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// Pairs returns the (name, bytes) list of successful results, in order.
func Pairs(results []pipeline.Result) []Blob {
	var out []Blob
	for _, r := range results {
		if r.OK() {
			out = append(out, Blob{Name: r.OutputName, Data: r.Data})
		}
	}
	return out
}
