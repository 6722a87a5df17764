package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	pkgloader "github.com/gofhir/profiletree/pkg/loader"
	"github.com/gofhir/profiletree/stream"
	"github.com/gofhir/profiletree/worker"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file|glob>...",
		Short: "Check StructureDefinition files",
		Long: `Build and check the element trees of StructureDefinition files in parallel.
Bundles are read entry by entry and each StructureDefinition in them is checked.

Every event is printed under its resource. The command exits with status 1
when any resource has an event whose response is fail, or cannot be built.`,
		Example: `  profiletree check profiles/*.json
  profiletree check --strict --events-config events.yaml my-profile.json
  profiletree check --json --workers 4 'input/**.json'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			e, err := newEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			reports := make([]resourceReport, 0, len(files))
			emit := func(r resourceReport) {
				reports = append(reports, r)
				if !jsonOut {
					printReport(out, r)
				}
			}

			// readErrs is only touched by the submitting goroutine until Results is closed.
			var readErrs []resourceReport
			pool := worker.NewPool(cmd.Context(), e, e.Options().WorkerCount)
			go func() {
				defer pool.Close()
				for _, f := range files {
					data, rerr := readDocument(f)
					if rerr != nil {
						readErrs = append(readErrs, newReport(f, nil, nil, rerr))
						continue
					}
					if rt, _ := stream.ResourceType(data); rt == "Bundle" {
						if !submitBundle(cmd.Context(), pool, f, data, &readErrs) {
							return
						}
						continue
					}
					if !pool.Submit(worker.Job{ID: f, Name: f, Data: data}) {
						return
					}
				}
			}()

			for jr := range pool.Results() {
				emit(newReport(jr.ID, jr.Result, jr.Events.Events(), jr.Error))
			}
			for _, r := range readErrs {
				emit(r)
			}

			if merr := writeMetrics(e); merr != nil {
				return merr
			}

			if jsonOut {
				sort.Slice(reports, func(i, j int) bool { return reports[i].Source < reports[j].Source })
				if perr := printJSON(out, reports); perr != nil {
					return perr
				}
			} else if len(reports) > 1 {
				printSummary(out, reports)
			}

			if !allOK(reports) {
				return errFailed
			}
			return nil
		},
	}
	return cmd
}

// submitBundle submits every StructureDefinition entry of a bundle file. Entries that
// cannot be decoded are added to errs. It returns false once the pool is closed.
func submitBundle(ctx context.Context, pool *worker.Pool, file string, data []byte, errs *[]resourceReport) bool {
	reader := stream.NewBundleReader().WithResourceTypes("StructureDefinition")
	for entry := range reader.Read(ctx, bytes.NewReader(data)) {
		source := fmt.Sprintf("%s#%s", file, entry.Name())
		if entry.Error != nil {
			if entry.Index < 0 {
				source = file
			}
			*errs = append(*errs, newReport(source, nil, nil, entry.Error))
			continue
		}
		if !pool.Submit(worker.Job{ID: source, Name: entry.Name(), Data: entry.Resource}) {
			return false
		}
	}
	return true
}

// expandFiles expands glob patterns and removes duplicates, keeping argument order.
func expandFiles(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// readDocument reads a JSON file, dropping any byte order mark.
func readDocument(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pkgloader.Decode(raw)
}
