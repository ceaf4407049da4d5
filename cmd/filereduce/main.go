// filereduce - streaming EDIFACT document filter
// Reduces interchange files to the documents a query keeps and loads them
// into JSON lines files, DuckDB or Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/filereduce/filereduce/pkg/config"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/storage"
	"github.com/filereduce/filereduce/pkg/telemetry"
	"github.com/filereduce/filereduce/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile string
	verbose    bool
)

var (
	manager  = config.NewManager()
	shutdown telemetry.ShutdownFunc
)

func main() {
	tui.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if shutdown != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := shutdown(flushCtx); serr != nil {
			log.Printf("[telemetry] shutdown: %v", serr)
		}
		cancel()
	}

	if err != nil {
		tui.PrintError(os.Stderr, err)
		if verbose {
			var frErr *ferrors.FileReduceError
			if errors.As(err, &frErr) {
				fmt.Fprint(os.Stderr, frErr.FormatStack())
			}
		}
		os.Exit(exitCode(err))
	}
}

// Exit codes by error tier.
const (
	exitFailure  = 1
	exitParse    = 2
	exitIO       = 3
	exitCanceled = 130
)

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case ferrors.IsParse(err):
		return exitParse
	case ferrors.IsIO(err):
		return exitIO
	case ferrors.IsCode(err, ferrors.CodeCanceled), errors.Is(err, context.Canceled):
		return exitCanceled
	}
	return exitFailure
}

var rootCmd = &cobra.Command{
	Use:   "filereduce",
	Short: "filereduce - filter EDIFACT interchanges down to the documents you need",
	Long: `filereduce streams EDIFACT interchanges (and JSON lines or XML record files),
assembles documents one at a time and keeps only those matching a query.

Inputs and outputs may be local paths, s3://bucket/key URIs or "-" for
stdin/stdout. Files ending in .gz or .zst are decoded transparently.`,
	Version:           version + " (" + commit + ")",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (overrides ~/.filereduce/config.yaml and ./.filereduce.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// setup loads configuration, routes the operational log and starts tracing.
func setup(cmd *cobra.Command, args []string) error {
	log.SetFlags(log.LstdFlags)
	if verbose {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	if err := manager.Load(configFile); err != nil {
		return err
	}
	if verbose {
		for _, path := range manager.GetPaths() {
			log.Printf("[config] loaded %s", path)
		}
	}

	fn, err := telemetry.Init(cmd.Context(), manager.Get().Tracing())
	if err != nil {
		return err
	}
	shutdown = fn
	return nil
}

// newStorage returns a Storage using the configured S3 settings.
func newStorage() *storage.Storage {
	return storage.New(manager.Get().S3())
}

// summaryWriter keeps summaries off stdout when stdout carries the output.
func summaryWriter(output string) io.Writer {
	if output == storage.Stdio {
		return os.Stderr
	}
	return os.Stdout
}
