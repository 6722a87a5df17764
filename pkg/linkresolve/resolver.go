// Package linkresolve resolves symbolic links between nodes of one tree once the tree is
// complete, such as an element whose content is defined by another element.
package linkresolve

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/tree"
	"github.com/gofhir/profiletree/pool"
)

// Stats summarizes one resolution run.
type Stats struct {
	Resolved int
	Missing  int
}

// Resolve links every dependent in expected to the node present under the same
// identifier by calling set. Each identifier with no present node is reported once as
// MISSING_REFERENCED_NODE, naming every waiting node. Unresolved links stay unset.
func Resolve[D any](
	expected map[string][]*tree.Node[D],
	present map[string]*tree.Node[D],
	set func(dependent, target *tree.Node[D]),
	sink event.Sink,
) Stats {
	ids := make([]string, 0, len(expected))
	for id := range expected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var stats Stats
	for _, id := range ids {
		dependents := expected[id]
		if len(dependents) == 0 {
			continue
		}

		target, ok := present[id]
		if !ok {
			paths := make([]string, len(dependents))
			for i, n := range dependents {
				paths[i] = n.Path().String()
			}
			event.Reportf(sink, event.MissingReferencedNode, map[string]any{
				"paths": pool.JoinList(paths, ", "),
				"id":    id,
			})
			stats.Missing++
			continue
		}

		for _, n := range dependents {
			set(n, target)
			stats.Resolved++
		}
	}
	return stats
}

// ResolveTree resolves id links declared with LinkIDs against element ids in t.
func ResolveTree[D element.Data](t *tree.Tree[D], sink event.Sink) Stats {
	present := make(map[string]*tree.Node[D])
	expected := make(map[string][]*tree.Node[D])

	for n := range t.All() {
		data := n.Data()
		if id := data.ElementID(); id != "" {
			if _, dup := present[id]; !dup {
				present[id] = n
			}
		}
		if data.IsDummy() {
			continue
		}
		for _, link := range data.LinkIDs() {
			checkLink(n, link, data.ElementID(), sink)
			expected[link] = append(expected[link], n)
		}
	}

	return Resolve(expected, present, setTarget[D], sink)
}

// ResolveNames resolves name links declared with LinkName against element names in t.
func ResolveNames[D element.Data](t *tree.Tree[D], sink event.Sink) Stats {
	present := make(map[string]*tree.Node[D])
	expected := make(map[string][]*tree.Node[D])

	for n := range t.All() {
		data := n.Data()
		if data.IsDummy() {
			continue
		}
		if name := data.Name(); name != "" && !n.IsRoot() {
			if _, dup := present[name]; !dup {
				present[name] = n
			}
		}
		if link := data.LinkName(); link != "" {
			checkLink(n, link, data.Name(), sink)
			expected[link] = append(expected[link], n)
		}
	}

	return Resolve(expected, present, setTarget[D], sink)
}

func setTarget[D element.Data](dependent, target *tree.Node[D]) {
	dependent.Data().SetLinkTarget(target.ID())
}

// checkLink reports links to the node itself and links on nodes that also fix their
// value. Both links are still resolved.
func checkLink[D element.Data](n *tree.Node[D], link, self string, sink event.Sink) {
	params := map[string]any{
		"path": n.Path().String(),
		"id":   link,
	}
	if link == self {
		event.Reportf(sink, event.LinkReferencesItself, params)
	}
	if v := n.Data().FixedValue(); v != nil {
		params["value"] = describeValue(v)
		event.Reportf(sink, event.FixedValueWithLinkedNode, params)
	}
}

// describeValue renders a decoded JSON value for a message.
func describeValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}
