package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/pkg/compress"
	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/tui"
)

var (
	processFormat   string
	processQuery    string
	processCompress string
	processQuiet    bool
)

var processCmd = &cobra.Command{
	Use:   "process <input> <output>",
	Short: "Filter documents into a JSON lines file",
	Long: `Stream an interchange, assemble each document and write the ones the
query keeps to a JSON lines output.

The query is a filter expression or a SELECT * ... WHERE statement.

Examples:
  filereduce process orders.edi kept.jsonl -q "doc_type = 'ORDERS' AND qty > 50"
  filereduce process s3://in/orders.edi.gz s3://out/kept.jsonl.zst
  filereduce process orders.edi kept.jsonl --compress zstd
  cat orders.edi | filereduce process - - -f edifact`,
	Args: cobra.ExactArgs(2),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processFormat, "format", "f", "", "Input format (edifact, json, xml) - auto-detected if not specified")
	processCmd.Flags().StringVarP(&processQuery, "query", "q", "", "Document filter")
	processCmd.Flags().StringVar(&processCompress, "compress", "", "Compress the output after writing (none, zstd, gzip)")
	processCmd.Flags().BoolVar(&processQuiet, "quiet", false, "Hide the progress bar")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]
	cfg := manager.Get()

	codec := cfg.Codec()
	if processCompress != "" {
		c, err := compress.ParseCodec(processCompress)
		if err != nil {
			return err
		}
		codec = c
	}

	var bar *progressbar.ProgressBar
	pcfg := pipeline.Config{
		Format:      processFormat,
		Query:       processQuery,
		Compression: codec,
		Storage:     newStorage(),
	}
	if !processQuiet {
		pcfg.Progress = func(input string, size int64) io.Writer {
			bar = tui.ShowProgress(os.Stderr, size, filepath.Base(input))
			return bar
		}
	}

	runner, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}

	res, err := runner.Run(cmd.Context(), pipeline.Job{Input: input, Output: output})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	tui.PrintResult(summaryWriter(output), res)
	return nil
}
