package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/tree"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resourceReport is the JSON form of one processed resource.
type resourceReport struct {
	Name     string             `json:"name"`
	Source   string             `json:"source,omitempty"`
	Status   string             `json:"status"`
	Error    string             `json:"error,omitempty"`
	Stats    *profiletree.Stats `json:"stats,omitempty"`
	Events   []event.Event      `json:"events,omitempty"`
	Failures []event.Event      `json:"failures,omitempty"`
	Duration string             `json:"duration,omitempty"`
}

const (
	statusOK     = "OK"
	statusFailed = "FAILED"
	statusError  = "ERROR"
)

func newReport(source string, result *profiletree.Result, events []event.Event, err error) resourceReport {
	r := resourceReport{Name: source, Source: source, Status: statusOK, Events: events}
	if result != nil {
		r.Name = result.Name
		r.Stats = &result.Stats
		r.Failures = result.Failures
		r.Duration = result.Duration.String()
		if result.Failed() {
			r.Status = statusFailed
		}
	}
	if err != nil && result == nil {
		r.Status = statusError
		r.Error = err.Error()
	}
	return r
}

func (r resourceReport) ok() bool {
	return r.Status == statusOK
}

// printReport writes the text form of one report. In quiet mode passing resources are
// skipped and only failing events are listed.
func printReport(w io.Writer, r resourceReport) {
	if quiet && r.ok() {
		return
	}

	fmt.Fprintf(w, "== %s ==\n", r.Name)
	if r.Source != "" && r.Source != r.Name {
		fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
		fmt.Fprintln(w)
		return
	}

	if r.Stats != nil {
		fmt.Fprintf(w, "Nodes: %d snapshot, %d differential (%d dummies, %d removed)\n",
			r.Stats.SnapshotNodes, r.Stats.DifferentialNodes, r.Stats.Dummies, r.Stats.Removed)
		fmt.Fprintf(w, "Links: %d resolved, %d missing\n", r.Stats.LinksResolved, r.Stats.LinksMissing)
	}

	events := r.Events
	if quiet {
		events = r.Failures
	}
	if len(events) > 0 {
		fmt.Fprintln(w, "Events:")
		for _, e := range events {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if r.Duration != "" {
		printVerbose(w, "Duration: %s\n", r.Duration)
	}
	fmt.Fprintln(w)
}

// printSummary writes the totals line of a multi-resource run.
func printSummary(w io.Writer, reports []resourceReport) {
	var ok, failed, errored int
	for _, r := range reports {
		switch r.Status {
		case statusOK:
			ok++
		case statusFailed:
			failed++
		default:
			errored++
		}
	}
	fmt.Fprintf(w, "Total: %d resources, %d ok, %d failed, %d errors\n", len(reports), ok, failed, errored)
}

func allOK(reports []resourceReport) bool {
	for _, r := range reports {
		if !r.ok() {
			return false
		}
	}
	return true
}

// treeNode is the JSON form of one tree node.
type treeNode struct {
	Path      string      `json:"path"`
	ID        string      `json:"id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Dummy     bool        `json:"dummy,omitempty"`
	Removed   bool        `json:"removed,omitempty"`
	Extension string      `json:"extension,omitempty"`
	LinkedTo  string      `json:"linkedTo,omitempty"`
	Children  []*treeNode `json:"children,omitempty"`
}

func newTreeNode[D element.Data](t *tree.Tree[D], n *tree.Node[D]) *treeNode {
	data := n.Data()
	out := &treeNode{
		Path:    n.Path().String(),
		ID:      data.ElementID(),
		Dummy:   data.IsDummy(),
		Removed: data.IsRemoved(),
	}
	if name := data.Name(); name != n.Path().Last() {
		out.Name = name
	}
	if ext := data.ExtensionType(); ext != element.ExtensionNone {
		out.Extension = ext.String()
	}
	if id, ok := data.LinkTarget(); ok {
		if target, found := t.Lookup(id); found {
			out.LinkedTo = target.Path().String()
		}
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, newTreeNode(t, c))
	}
	return out
}
