package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gofhir/profiletree/engine"
	"github.com/gofhir/profiletree/pkg/event"
	pkgloader "github.com/gofhir/profiletree/pkg/loader"
)

func newTreeCmd() *cobra.Command {
	var differential bool

	cmd := &cobra.Command{
		Use:   "tree <structure-definition.json>",
		Short: "Print the element tree of a StructureDefinition",
		Long: `Build the element trees of one StructureDefinition, run the configured passes
and print the resulting snapshot tree as an indented outline.

Dummy nodes, extension kinds, removed elements and resolved links are marked
on each line. Use --json for a nested node document.`,
		Example: `  profiletree tree StructureDefinition-my-patient.json
  profiletree tree --differential --tidy my-profile.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			data, err := pkgloader.Decode(raw)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}

			e, err := newEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			events := event.NewCollector(args[0])
			result, err := e.ProcessJSON(cmd.Context(), data, events)
			if result == nil {
				return err
			}
			if merr := writeMetrics(e); merr != nil {
				return merr
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				doc := map[string]any{
					"name":     result.Name,
					"snapshot": newTreeNode(result.Snapshot, result.Snapshot.Root()),
					"events":   result.Events,
				}
				if differential && result.Differential != nil {
					doc["differential"] = newTreeNode(result.Differential, result.Differential.Root())
				}
				if perr := printJSON(out, doc); perr != nil {
					return perr
				}
			} else {
				fmt.Fprint(out, engine.DumpTree(result.Snapshot))
				if differential && result.Differential != nil {
					fmt.Fprintln(out)
					fmt.Fprint(out, engine.DumpTree(result.Differential))
				}
				if !quiet {
					for _, ev := range events.Events() {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", ev)
					}
				}
			}

			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&differential, "differential", "d", false, "Also print the differential tree")
	return cmd
}
