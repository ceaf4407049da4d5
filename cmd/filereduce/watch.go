package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/tui"
	"github.com/filereduce/filereduce/pkg/watch"
)

var (
	watchFormat   string
	watchQuery    string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <input> <output>",
	Short: "Re-process an input whenever it changes",
	Long: `Process the input once, then watch it and process it again after every
burst of writes settles. Stops on Ctrl+C.

Examples:
  filereduce watch inbox/orders.edi reduced/orders.jsonl -q "doc_type = 'ORDERS'"`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "", "Input format (edifact, json, xml)")
	watchCmd.Flags().StringVarP(&watchQuery, "query", "q", "", "Document filter")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before re-processing")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	job := pipeline.Job{Input: args[0], Output: args[1]}

	runner, err := pipeline.New(pipeline.Config{
		Format:      watchFormat,
		Query:       watchQuery,
		Compression: manager.Get().Codec(),
		Storage:     newStorage(),
	})
	if err != nil {
		return err
	}

	process := func(ctx context.Context, path string) error {
		res, err := runner.Run(ctx, job)
		if err != nil {
			return err
		}
		tui.PrintResult(summaryWriter(job.Output), res)
		return nil
	}

	w, err := watch.New(watchDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	w.OnChange = process
	w.OnError = func(path string, err error) {
		tui.PrintError(os.Stderr, err)
	}
	if err := w.Add(job.Input); err != nil {
		return err
	}

	if err := process(ctx, job.Input); err != nil {
		tui.PrintError(os.Stderr, err)
	}

	log.Printf("[watch] watching %s", job.Input)
	return w.Run(ctx)
}
