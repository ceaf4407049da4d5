package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/tui"
)

var (
	insertFormat string
	insertQuery  string
)

var insertCmd = &cobra.Command{
	Use:   "insert <input>",
	Short: "Load kept documents into the configured database",
	Long: `Stream an interchange and send the documents the query keeps to the
database sink named in the ingest section of the configuration.

  postgres: each batch is passed as a JSON array to the ingest procedure
  duckdb:   each batch is inserted into the documents table in one transaction

Examples:
  filereduce insert orders.edi --config ingest.yaml
  FILEREDUCE_DB_DRIVER=duckdb FILEREDUCE_DB_CONNECTION=docs.db filereduce insert orders.edi -q "qty > 10"`,
	Args: cobra.ExactArgs(1),
	RunE: runInsert,
}

func init() {
	insertCmd.Flags().StringVarP(&insertFormat, "format", "f", "", "Input format (edifact, json, xml)")
	insertCmd.Flags().StringVarP(&insertQuery, "query", "q", "", "Document filter")

	rootCmd.AddCommand(insertCmd)
}

func runInsert(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()

	runner, err := pipeline.New(pipeline.Config{
		Format:  insertFormat,
		Query:   insertQuery,
		Sink:    cfg.Sink(),
		Storage: newStorage(),
	})
	if err != nil {
		return err
	}

	res, err := runner.Run(cmd.Context(), pipeline.Job{Input: args[0]})
	if err != nil {
		return err
	}

	tui.PrintResult(os.Stdout, res)
	return nil
}
