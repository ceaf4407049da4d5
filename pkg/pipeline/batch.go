package pipeline

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/filereduce/filereduce/pkg/checkpoint"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/storage"
)

// BatchOptions configures Batch.
type BatchOptions struct {
	// Workers bounds concurrent jobs; zero means runtime.NumCPU().
	Workers int

	// FailFast cancels the remaining jobs on the first failure.
	FailFast bool

	// Resume skips inputs whose checkpoint is already complete.
	Resume bool

	// DeadLetters, when set, records every failed job.
	DeadLetters *DeadLetterWriter
}

// Plan expands pattern into jobs writing <outDir>/<name>.jsonl, where name
// is the input's base name without compression or format extension. An
// empty outDir leaves Output empty so documents go to the database sink.
func (r *Runner) Plan(ctx context.Context, pattern, outDir string) ([]Job, error) {
	inputs, err := r.cfg.Storage.List(ctx, pattern)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = Job{Input: input}
		if outDir != "" {
			jobs[i].Output = OutputPath(outDir, input)
		}
	}
	return jobs, nil
}

// OutputPath names the JSONL output for input inside dir.
func OutputPath(dir, input string) string {
	base := filepath.Base(storage.StripCompression(input))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasPrefix(dir, "s3://") {
		return strings.TrimSuffix(dir, "/") + "/" + base + ".jsonl"
	}
	return filepath.Join(dir, base+".jsonl")
}

// Batch runs every job with a separate builder and sink. Results are in job
// order. Without FailFast every job runs and the failures are combined into
// the returned error.
func (r *Runner) Batch(ctx context.Context, jobs []Job, opts BatchOptions) ([]*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// One DuckDB file accepts a single writer.
	if r.cfg.Sink.Driver == "duckdb" && workers > 1 && hasSinkJobs(jobs) {
		log.Printf("[pipeline] duckdb sink: running %d jobs sequentially", len(jobs))
		workers = 1
	}

	g := &errgroup.Group{}
	gctx := ctx
	if opts.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	}
	g.SetLimit(workers)

	results := make([]*Result, len(jobs))
	for i, job := range jobs {
		if opts.Resume && r.cfg.Checkpoints != nil {
			if res := r.resumed(ctx, job); res != nil {
				results[i] = res
				continue
			}
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &Result{Input: job.Input, Output: job.Output, Err: ferrors.Canceled("batch")}
				return results[i].Err
			}
			res, err := r.Run(gctx, job)
			results[i] = res
			if err != nil && opts.DeadLetters != nil {
				if derr := opts.DeadLetters.Write(res); derr != nil {
					log.Printf("[pipeline] dead letter for %s not written: %v", job.Input, derr)
				}
			}
			if opts.FailFast {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	var errs ferrors.MultiError
	for _, res := range results {
		if res != nil {
			errs.Add(res.Err)
		}
	}
	return results, errs.Combined()
}

// resumed returns a skipped Result when job's input already completed.
func (r *Runner) resumed(ctx context.Context, job Job) *Result {
	cp, err := r.cfg.Checkpoints.Load(ctx, job.Input)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNotFound) {
			log.Printf("[pipeline] checkpoint for %s unreadable, reprocessing: %v", job.Input, err)
		}
		return nil
	}
	if !cp.Done() {
		return nil
	}
	return &Result{
		RunID:   cp.RunID,
		Input:   cp.Input,
		Output:  cp.Output,
		Skipped: true,
	}
}

func hasSinkJobs(jobs []Job) bool {
	for _, j := range jobs {
		if j.Output == "" {
			return true
		}
	}
	return false
}

// Summary totals a batch.
type Summary struct {
	Jobs      int
	Succeeded int
	Failed    int
	Skipped   int
	Documents int64
	Records   int64
	Kept      int64
	Dropped   int64
}

// Summarize totals results.
func Summarize(results []*Result) Summary {
	s := Summary{Jobs: len(results)}
	for _, res := range results {
		switch {
		case res == nil:
			continue
		case res.Skipped:
			s.Skipped++
			continue
		case res.Err != nil:
			s.Failed++
		default:
			s.Succeeded++
		}
		s.Documents += res.Stats.Documents
		s.Records += res.Stats.Records
		s.Kept += res.Stats.Kept
		s.Dropped += res.Stats.Dropped
	}
	return s
}
