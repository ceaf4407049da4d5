package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/pkg/convert"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

var (
	convertFrom string
	convertTo   string
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Normalize JSON lines or XML records to JSON lines",
	Long: `Rewrite records as compact JSON lines.

  json: every line is parsed, null members are dropped recursively
  xml:  <record>, <item> and <row> elements become one object per line

Examples:
  filereduce convert events.jsonl clean.jsonl --from json
  filereduce convert export.xml records.jsonl.zst --from xml`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertFrom, "from", "json", "Input format (json, xml)")
	convertCmd.Flags().StringVar(&convertTo, "to", "jsonl", "Output format (jsonl)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]

	if convertTo != "jsonl" {
		return ferrors.New(ferrors.CodeConfigInvalid, "unsupported output format").WithContext("to", convertTo)
	}

	var fn func(r io.Reader, w io.Writer) (int64, error)
	switch convertFrom {
	case "json", "jsonl":
		fn = convert.JSONLines
	case "xml":
		fn = convert.XMLRecords
	default:
		return ferrors.New(ferrors.CodeConfigInvalid, "unsupported input format").WithContext("from", convertFrom)
	}

	store := newStorage()
	in, err := store.Open(cmd.Context(), input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := store.Create(cmd.Context(), output)
	if err != nil {
		return err
	}

	n, err := fn(in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = ferrors.Wrap(cerr, ferrors.CodeWriteFailed, "close output").WithContext("path", output)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(summaryWriter(output), "  %d records -> %s\n", n, output)
	return nil
}
