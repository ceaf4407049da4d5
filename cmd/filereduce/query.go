package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/export"
	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/storage"
	"github.com/filereduce/filereduce/pkg/tui"
)

var (
	queryStatement string
	queryOutput    string
	queryFormat    string
	querySegments  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <input>",
	Short: "Run a query over the rows of an interchange",
	Long: `Flatten every document into rows and run a statement over them.

Statements:
  SELECT * | field, ... | COUNT(*), SUM(field), AVG(field), MIN(field), MAX(field)
  [WHERE expr] [ORDER BY field [ASC|DESC]] [LIMIT n]

A bare filter expression selects every field of the matching rows.
Results print as a table, or are written to -o by extension
(.jsonl, .xlsx, .parquet). Aggregates print as JSON.

Examples:
  filereduce query orders.edi -q "SELECT sku, qty WHERE KIND = 'LIN' ORDER BY qty DESC LIMIT 10"
  filereduce query orders.edi -q "SELECT COUNT(*), SUM(qty) WHERE doc_type = 'ORDERS'"
  filereduce query orders.edi -q "KIND = 'LIN'" -o lines.xlsx
  filereduce query orders.edi --segments -q "KIND = 'NAD'"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryStatement, "query", "q", "", "Statement or filter expression (required)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write rows to a .jsonl, .xlsx or .parquet file")
	queryCmd.Flags().StringVarP(&queryFormat, "format", "f", "", "Input format (edifact, json, xml)")
	queryCmd.Flags().BoolVar(&querySegments, "segments", false, "Yield one row per segment instead of per document line")
	queryCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	store := newStorage()
	runner, err := pipeline.New(pipeline.Config{Format: queryFormat, Storage: store})
	if err != nil {
		return err
	}

	res, err := runner.Query(cmd.Context(), args[0], queryStatement, pipeline.QueryOptions{Segments: querySegments})
	if err != nil {
		return err
	}

	switch {
	case res.Aggregates != nil:
		if err := tui.PrintAggregates(os.Stdout, res.Aggregates); err != nil {
			return err
		}
	case queryOutput != "":
		if err := writeRows(cmd, store, res.Rows); err != nil {
			return err
		}
	default:
		tui.PrintRows(os.Stdout, res.Rows)
	}

	if verbose || queryOutput != "" {
		tui.PrintQueryStats(summaryWriter(queryOutput), res)
	}
	return nil
}

// writeRows encodes rows by the output extension, through storage so that
// s3:// targets and .gz/.zst suffixes work.
func writeRows(cmd *cobra.Command, store *storage.Storage, rows []model.Row) error {
	format, err := export.FormatFor(storage.StripCompression(queryOutput))
	if err != nil {
		return err
	}
	w, err := store.Create(cmd.Context(), queryOutput)
	if err != nil {
		return err
	}
	if err := export.Encode(w, format, rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
