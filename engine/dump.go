package engine

import (
	"fmt"
	"strings"

	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/tree"
)

// DumpTree renders t as an indented outline, one node per line. Each line holds the
// last path segment, the slice name when it differs, and markers for dummy nodes,
// extension types, removed elements and resolved links.
func DumpTree[D element.Data](t *tree.Tree[D]) string {
	var sb strings.Builder
	t.Walk(func(n *tree.Node[D], depth int) bool {
		data := n.Data()
		sb.WriteString(strings.Repeat("  ", depth-1))

		segment := n.Path().Last()
		if n.IsRoot() {
			segment = n.Path().String()
		}
		sb.WriteString(segment)
		if name := data.Name(); name != segment && !n.IsRoot() {
			fmt.Fprintf(&sb, ":%s", name)
		}

		if data.IsDummy() {
			sb.WriteString(" [dummy]")
		}
		if ext := data.ExtensionType(); ext != element.ExtensionNone {
			fmt.Fprintf(&sb, " [%s extension]", ext)
		}
		if data.IsRemoved() {
			sb.WriteString(" [removed]")
		}
		if id, ok := data.LinkTarget(); ok {
			if target, found := t.Lookup(id); found {
				fmt.Fprintf(&sb, " -> %s", target.Path())
			}
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}
