package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/engine"
	"github.com/gofhir/profiletree/loader"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/logger"
)

const version = "0.1.0"

// errFailed is returned when at least one resource failed; the details are already
// printed.
var errFailed = errors.New("one or more resources failed")

var (
	// Global flags
	verbose      bool
	quiet        bool
	jsonOut      bool
	strict       bool
	eventsConfig string
	workers      int
	metricsFile  string
	extensions   []string
	tidy         bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiletree",
		Short: "Build and check FHIR profile element trees",
		Long: `profiletree builds the snapshot and differential element trees of FHIR
StructureDefinitions, tidies them and reports inconsistencies in their links,
mappings and constraints.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only print failures")
	flags.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	flags.BoolVar(&strict, "strict", false, "Fail on every warning")
	flags.StringVar(&eventsConfig, "events-config", "", "YAML file mapping event types to ignore, warn or fail")
	flags.IntVar(&workers, "workers", 0, "Number of parallel workers (default: number of CPUs)")
	flags.StringVar(&metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file when done")
	flags.StringSliceVar(&extensions, "extensions", nil, "Directories of extension StructureDefinitions")
	flags.BoolVar(&tidy, "tidy", false, "Run every optional tidy pass")

	cmd.AddCommand(newTreeCmd(), newCheckCmd(), newPackageCmd())
	return cmd
}

func execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// newEngine builds an engine from the global flags. Logs go to stderr.
func newEngine(stderr io.Writer) (*engine.Engine, error) {
	level := logger.LevelWarn
	switch {
	case verbose:
		level = logger.LevelDebug
	case quiet:
		level = logger.LevelError
	}

	opts := []profiletree.Option{
		profiletree.WithLogger(logger.New(stderr, level)),
		profiletree.WithStrictMode(strict),
		profiletree.WithWorkerCount(workers),
	}
	if tidy {
		opts = append(opts, profiletree.TidyOptions()...)
	}
	if eventsConfig != "" {
		responses, err := event.LoadResponses(eventsConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, profiletree.WithResponses(responses))
	}

	e := engine.New(opts...)

	if len(extensions) > 0 {
		store := loader.NewStore()
		for _, dir := range extensions {
			n, err := store.LoadFromDirectory(dir)
			if err != nil {
				return nil, fmt.Errorf("loading extensions from %s: %w", dir, err)
			}
			printVerbose(stderr, "Loaded %d definitions from %s\n", n, dir)
		}
		e.SetExtensionResolver(store)
	}
	return e, nil
}

// writeMetrics writes the engine metrics to --metrics-textfile, if set.
func writeMetrics(e *engine.Engine) error {
	if metricsFile == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := e.Metrics().Register(reg); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(w io.Writer, format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(w, format, args...)
	}
}
