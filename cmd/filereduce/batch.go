package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/pkg/checkpoint"
	"github.com/filereduce/filereduce/pkg/compress"
	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/storage/s3"
	"github.com/filereduce/filereduce/pkg/tui"
)

var (
	batchOutDir   string
	batchFormat   string
	batchQuery    string
	batchCompress string
	batchWorkers  int
	batchResume   bool
	batchFailFast bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <glob>",
	Short: "Process many inputs in parallel",
	Long: `Expand a glob (local, or s3://bucket/prefix*suffix) and process every
input independently with a bounded pool of workers.

Each input writes <out-dir>/<name>.jsonl. Without --out-dir documents go
to the configured database sink. Every run is checkpointed; --resume skips
inputs that already completed. Failed inputs are recorded in
<out-dir>/failed.jsonl.

Examples:
  filereduce batch 'incoming/*.edi' --out-dir reduced -q "doc_type = 'INVOIC'"
  filereduce batch 's3://edi/2024/*.edi.gz' --out-dir s3://edi-reduced/2024 --workers 16
  filereduce batch 'incoming/*.edi' --config ingest.yaml --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Output directory (empty sends documents to the database sink)")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "", "Input format (edifact, json, xml)")
	batchCmd.Flags().StringVarP(&batchQuery, "query", "q", "", "Document filter")
	batchCmd.Flags().StringVar(&batchCompress, "compress", "", "Compress outputs after writing (none, zstd, gzip)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Concurrent inputs (0=config or NumCPU)")
	batchCmd.Flags().BoolVar(&batchResume, "resume", false, "Skip inputs whose checkpoint is complete")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "Stop scheduling inputs after the first failure")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := manager.Get()

	codec := cfg.Codec()
	if batchCompress != "" {
		c, err := compress.ParseCodec(batchCompress)
		if err != nil {
			return err
		}
		codec = c
	}

	store, err := checkpoint.Open(cfg.Checkpoints())
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	runner, err := pipeline.New(pipeline.Config{
		Format:      batchFormat,
		Query:       batchQuery,
		Compression: codec,
		Sink:        cfg.Sink(),
		Storage:     newStorage(),
		Checkpoints: store,
	})
	if err != nil {
		return err
	}

	jobs, err := runner.Plan(ctx, args[0], batchOutDir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no inputs match %s", args[0])
	}

	opts := pipeline.BatchOptions{
		Workers:  batchWorkers,
		FailFast: batchFailFast || cfg.Batch.FailFast,
		Resume:   batchResume,
	}
	if opts.Workers <= 0 {
		opts.Workers = cfg.Batch.Workers
	}

	if batchOutDir != "" && !s3.IsURI(batchOutDir) {
		dl, err := pipeline.NewDeadLetterWriter(filepath.Join(batchOutDir, "failed.jsonl"))
		if err != nil {
			return err
		}
		defer dl.Close()
		opts.DeadLetters = dl
	}

	start := time.Now()
	results, err := runner.Batch(ctx, jobs, opts)
	tui.PrintBatch(os.Stdout, results, time.Since(start))

	if err != nil {
		summary := pipeline.Summarize(results)
		log.Printf("[batch] %v", err)
		return fmt.Errorf("%d of %d inputs failed", summary.Failed, summary.Jobs)
	}
	return nil
}
