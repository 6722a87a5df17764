// Package consistency checks mapping and constraint metadata of individual elements and
// reports problems as events. Nothing here fails a build.
package consistency

import (
	"sort"
	"strings"

	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
)

// DefaultIgnorableMappings are placeholder values meaning "not applicable".
var DefaultIgnorableMappings = []string{"n/a", "N/A"}

// MappingValidator checks the mappings of one element for repeated identities.
type MappingValidator struct {
	ignorable map[string]struct{}
}

// NewMappingValidator creates a validator treating values as ignorable placeholders.
// With no values, DefaultIgnorableMappings is used.
func NewMappingValidator(values ...string) *MappingValidator {
	if len(values) == 0 {
		values = DefaultIgnorableMappings
	}
	v := &MappingValidator{ignorable: make(map[string]struct{}, len(values))}
	for _, s := range values {
		v.ignorable[s] = struct{}{}
	}
	return v
}

// IsIgnorable reports whether value is a placeholder.
func (v *MappingValidator) IsIgnorable(value string) bool {
	_, ok := v.ignorable[value]
	return ok
}

// Validate reports IGNORABLE_MAPPING_ID for every placeholder value, then per identity
// either MULTIPLE_MAPPINGS_SAME_KEY when several real values share it, or
// MULTIPLE_MAPPINGS_SAME_KEY_IGNORABLE when the repetition involves placeholders only.
func (v *MappingValidator) Validate(path string, mappings []element.Mapping, sink event.Sink) {
	if len(mappings) == 0 {
		return
	}

	all := make(map[string][]string)
	filtered := make(map[string][]string)
	for _, m := range mappings {
		all[m.Identity] = append(all[m.Identity], m.Map)
		if v.IsIgnorable(m.Map) {
			event.Reportf(sink, event.IgnorableMappingID, map[string]any{
				"value":    m.Map,
				"identity": m.Identity,
				"path":     path,
			})
			continue
		}
		filtered[m.Identity] = append(filtered[m.Identity], m.Map)
	}

	identities := make([]string, 0, len(all))
	for id := range all {
		identities = append(identities, id)
	}
	sort.Strings(identities)

	for _, id := range identities {
		if values := filtered[id]; len(values) > 1 {
			event.Reportf(sink, event.MultipleMappingsSameKey, map[string]any{
				"count":    len(values),
				"path":     path,
				"identity": id,
				"values":   strings.Join(values, ", "),
			})
			continue
		}
		if values := all[id]; len(values) > 1 {
			event.Reportf(sink, event.MultipleMappingsSameKeyIgnorable, map[string]any{
				"count":    len(values),
				"path":     path,
				"identity": id,
				"values":   strings.Join(values, ", "),
			})
		}
	}
}
