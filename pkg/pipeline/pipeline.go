// Package pipeline runs one input through the document processor into an
// output file or database sink, and runs many inputs in parallel.
package pipeline

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/filereduce/filereduce/pkg/checkpoint"
	"github.com/filereduce/filereduce/pkg/compress"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/processor"
	"github.com/filereduce/filereduce/pkg/query"
	"github.com/filereduce/filereduce/pkg/sinks"
	"github.com/filereduce/filereduce/pkg/storage"
	"github.com/filereduce/filereduce/pkg/storage/s3"
	"github.com/filereduce/filereduce/pkg/telemetry"
)

// Config configures a Runner.
type Config struct {
	// Format forces the input format; empty detects it from the file name.
	Format string

	// Query is a filter expression, or a SELECT * statement with only a WHERE
	// clause. Empty keeps every document.
	Query string

	// Compression is applied to local output files after they are written.
	Compression compress.Codec

	// Sink is used for jobs without an output path.
	Sink sinks.Config

	Storage     *storage.Storage
	Checkpoints checkpoint.Store

	// Progress, when set, receives the stored input size and returns a
	// writer that sees every stored byte read.
	Progress func(input string, size int64) io.Writer
}

// Job is one input and where its kept documents go. An empty Output sends
// them to the configured database sink.
type Job struct {
	Input  string
	Output string
}

// Result describes one finished job.
type Result struct {
	RunID    string          `json:"run_id"`
	Input    string          `json:"input"`
	Output   string          `json:"output,omitempty"`
	Stats    processor.Stats `json:"stats"`
	Duration time.Duration   `json:"duration"`
	Skipped  bool            `json:"skipped,omitempty"`
	Err      error           `json:"-"`
}

// Runner processes jobs with a fixed configuration. It is safe for
// concurrent use.
type Runner struct {
	cfg    Config
	filter query.Expr
	format *processor.Format
}

// New validates cfg and parses its query once.
func New(cfg Config) (*Runner, error) {
	r := &Runner{cfg: cfg}
	if r.cfg.Storage == nil {
		r.cfg.Storage = storage.New(s3.DefaultConfig())
	}

	if cfg.Query != "" {
		filter, err := FilterOf(cfg.Query)
		if err != nil {
			return nil, err
		}
		r.filter = filter
	}

	if cfg.Format != "" {
		f, err := processor.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		r.format = &f
	}
	return r, nil
}

// FilterOf parses a push-down filter. Statements that project, sort, limit
// or aggregate are rejected since documents pass through whole.
func FilterOf(input string) (query.Expr, error) {
	q, err := query.ParseQuery(input)
	if err != nil {
		return nil, err
	}
	if len(q.Select) > 0 || q.HasAggregates() || q.OrderBy != nil || q.Limit != nil {
		return nil, ferrors.New(ferrors.CodeQuerySyntax, "document filters take only a WHERE clause").
			WithContext("query", input)
	}
	return q.Filter, nil
}

// Run processes one job. The returned Result is non-nil even when err is
// not, so callers can report partial counters.
func (r *Runner) Run(ctx context.Context, job Job) (res *Result, err error) {
	start := time.Now()
	res = &Result{Input: job.Input, Output: job.Output}

	ctx, span := telemetry.StartSpan(ctx, "filereduce.process",
		attribute.String("input", job.Input),
		attribute.String("output", job.Output),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var cp *checkpoint.Checkpoint
	if r.cfg.Checkpoints != nil {
		cp = checkpoint.Start(job.Input, job.Output)
		if err := r.cfg.Checkpoints.Save(ctx, cp); err != nil {
			res.Err = err
			return res, err
		}
		res.RunID = cp.RunID
	} else {
		res.RunID = uuid.NewString()
	}

	res.Stats, res.Output, err = r.process(ctx, job)
	res.Duration = time.Since(start)
	res.Err = err

	span.SetAttributes(
		attribute.Int64("documents", res.Stats.Documents),
		attribute.Int64("records", res.Stats.Records),
		attribute.Int64("kept", res.Stats.Kept),
		attribute.Int64("dropped", res.Stats.Dropped),
	)

	if cp != nil {
		counters := checkpoint.Counters{
			Documents: res.Stats.Documents,
			Records:   res.Stats.Records,
			Kept:      res.Stats.Kept,
			Dropped:   res.Stats.Dropped,
		}
		if err != nil {
			cp.Fail(counters, err)
		} else {
			cp.Complete(counters)
		}
		cp.Output = res.Output
		// A canceled ctx must not stop the final state from being recorded.
		if serr := r.cfg.Checkpoints.Save(context.WithoutCancel(ctx), cp); serr != nil && err == nil {
			err = serr
			res.Err = err
		}
	}

	if err != nil {
		log.Printf("[pipeline] %s failed after %s: %v", job.Input, res.Duration, err)
	} else {
		log.Printf("[pipeline] %s: documents=%d records=%d kept=%d dropped=%d (%s)",
			job.Input, res.Stats.Documents, res.Stats.Records, res.Stats.Kept, res.Stats.Dropped, res.Duration)
	}
	return res, err
}

func (r *Runner) process(ctx context.Context, job Job) (processor.Stats, string, error) {
	var opts []storage.OpenOption
	if r.cfg.Progress != nil {
		opts = append(opts, storage.WithProgress(func(size int64) io.Writer {
			return r.cfg.Progress(job.Input, size)
		}))
	}

	in, err := r.cfg.Storage.Open(ctx, job.Input, opts...)
	if err != nil {
		return processor.Stats{}, job.Output, err
	}
	defer in.Close()

	format := processor.DetectFormat(job.Input)
	if r.format != nil {
		format = *r.format
	}

	sink, err := r.openSink(ctx, job.Output)
	if err != nil {
		return processor.Stats{}, job.Output, err
	}

	stats, err := processor.Process(ctx, in, sink, format, r.filter)
	if cerr := sink.Close(); cerr != nil && err == nil {
		err = ferrors.SinkFailed("close", cerr)
	}
	if err != nil {
		return stats, job.Output, err
	}

	output := job.Output
	if r.compressible(output) {
		output, err = compress.File(output, r.cfg.Compression)
		if err != nil {
			return stats, job.Output, err
		}
	}
	return stats, output, nil
}

func (r *Runner) openSink(ctx context.Context, output string) (sinks.Sink, error) {
	if output == "" {
		return sinks.Open(ctx, r.cfg.Sink)
	}
	w, err := r.cfg.Storage.Create(ctx, output)
	if err != nil {
		return nil, err
	}
	return sinks.NewFileSink(w), nil
}

// compressible reports whether output is a plain local file the codec
// should be applied to.
func (r *Runner) compressible(output string) bool {
	return r.cfg.Compression != compress.CodecNone &&
		output != "" &&
		output != storage.Stdio &&
		!s3.IsURI(output) &&
		storage.Compression(output) == ""
}
