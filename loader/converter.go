package loader

import (
	"encoding/json"
	"strings"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/fhirtype"
)

// ExtensionResolver finds extension StructureDefinitions by canonical URL.
type ExtensionResolver interface {
	Lookup(url string) (*Definition, bool)
}

// R4Converter converts R4 StructureDefinitions to the flat element records trees are
// built from.
type R4Converter struct {
	extensions ExtensionResolver
}

// NewR4Converter creates a new R4 converter. extensions may be nil, in which case every
// profiled extension is treated as simple.
func NewR4Converter(extensions ExtensionResolver) *R4Converter {
	return &R4Converter{extensions: extensions}
}

// Snapshot converts the snapshot elements of def.
func (c *R4Converter) Snapshot(def *Definition, sink event.Sink) []element.Record {
	return c.Records(def, ViewSnapshot, sink)
}

// Differential converts the differential elements of def.
func (c *R4Converter) Differential(def *Definition, sink event.Sink) []element.Record {
	return c.Records(def, ViewDifferential, sink)
}

// Records converts the elements of one view of def, in document order.
func (c *R4Converter) Records(def *Definition, view View, sink event.Sink) []element.Record {
	if def == nil {
		return nil
	}
	if sink == nil {
		sink = event.Discard
	}

	elements := def.Elements(view)
	if len(elements) == 0 {
		return nil
	}

	records := make([]element.Record, 0, len(elements))
	for i := range elements {
		records = append(records, c.convertElement(def, view, elements, i, sink))
	}
	return records
}

// convertElement converts a single r4.ElementDefinition.
func (c *R4Converter) convertElement(def *Definition, view View, elements []r4.ElementDefinition, i int, sink event.Sink) element.Record {
	ed := &elements[i]
	extras := def.extras(view, i)
	codes := c.convertTypeCodes(ed.Type)

	rec := element.Record{
		Path:         derefString(ed.Path),
		ID:           derefString(ed.Id),
		Name:         derefString(ed.SliceName),
		Primitive:    fhirtype.IsPrimitiveElement(codes),
		Constraints:  c.convertConstraints(ed.Constraint),
		ConditionIDs: extras.Condition,
		Max:          derefString(ed.Max),
		Sliced:       ed.Slicing != nil,
		FixedValue:   decodeValue(extras.Fixed),
		TypeCodes:    codes,
	}
	for _, m := range extras.Mapping {
		rec.Mappings = append(rec.Mappings, element.Mapping{Identity: m.Identity, Map: m.Map})
	}
	if target := contentReferenceID(extras.ContentReference); target != "" {
		rec.LinkIDs = []string{target}
	}

	switch {
	case i == 0 && def.IsExtension() && rec.Path == fhirtype.TypeExtension:
		rec.Extension = classifyExtension(def)
	case fhirtype.IsExtension(codes):
		rec.ExtensionURLs = extensionProfiles(ed.Type)
		rec.Extension = c.extensionType(def, elements, ed, rec.ExtensionURLs, sink)
	}
	return rec
}

// extensionType classifies an element typed Extension. Profiled extensions are looked up
// through the resolver; inline sub-extensions of an extension definition are classified
// from their own value[x] element.
func (c *R4Converter) extensionType(def *Definition, elements []r4.ElementDefinition, ed *r4.ElementDefinition, profiles []string, sink event.Sink) element.ExtensionType {
	if len(profiles) == 0 {
		if def.IsExtension() {
			return inlineExtensionType(elements, derefString(ed.Id))
		}
		return element.ExtensionSimple
	}

	profile := profiles[0]
	if c.extensions != nil {
		if ext, ok := c.extensions.Lookup(profile); ok {
			return classifyExtension(ext)
		}
	}
	event.Reportf(sink, event.DefaultToSimpleExtension, map[string]any{
		"profile": profile,
		"path":    derefString(ed.Path),
	})
	return element.ExtensionSimple
}

// classifyExtension reports complex when the extension's own value[x] is prohibited.
func classifyExtension(def *Definition) element.ExtensionType {
	for _, ed := range def.Elements(ViewSnapshot) {
		if derefString(ed.Path) == "Extension.value[x]" {
			if derefString(ed.Max) == "0" {
				return element.ExtensionComplex
			}
			return element.ExtensionSimple
		}
	}
	return element.ExtensionSimple
}

func inlineExtensionType(elements []r4.ElementDefinition, id string) element.ExtensionType {
	if id == "" {
		return element.ExtensionSimple
	}
	valueID := id + ".value[x]"
	for i := range elements {
		if derefString(elements[i].Id) == valueID {
			if derefString(elements[i].Max) == "0" {
				return element.ExtensionComplex
			}
			break
		}
	}
	return element.ExtensionSimple
}

func extensionProfiles(types []r4.ElementDefinitionType) []string {
	for i := range types {
		if derefString(types[i].Code) == fhirtype.TypeExtension && len(types[i].Profile) > 0 {
			return append([]string(nil), types[i].Profile...)
		}
	}
	return nil
}

// contentReferenceID returns the element id a contentReference points at. Both "#id" and
// "url#id" forms are accepted.
func contentReferenceID(ref string) string {
	if ref == "" {
		return ""
	}
	if i := strings.LastIndexByte(ref, '#'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// convertTypeCodes returns the normalized type codes of an element.
func (c *R4Converter) convertTypeCodes(types []r4.ElementDefinitionType) []string {
	if len(types) == 0 {
		return nil
	}

	result := make([]string, 0, len(types))
	for i := range types {
		if code := derefString(types[i].Code); code != "" {
			result = append(result, fhirtype.Normalize(code))
		}
	}
	return result
}

// convertConstraints converts r4.ElementDefinitionConstraint slice to element constraints.
func (c *R4Converter) convertConstraints(constraints []r4.ElementDefinitionConstraint) []element.Constraint {
	if len(constraints) == 0 {
		return nil
	}

	result := make([]element.Constraint, 0, len(constraints))
	for i := range constraints {
		con := &constraints[i]
		result = append(result, element.Constraint{
			Key:        derefString(con.Key),
			Severity:   c.convertConstraintSeverity(con.Severity),
			Human:      derefString(con.Human),
			Expression: derefString(con.Expression),
		})
	}
	return result
}

func (c *R4Converter) convertConstraintSeverity(severity *r4.ConstraintSeverity) string {
	if severity == nil {
		return ""
	}
	return string(*severity)
}

// decodeValue decodes a raw fixed or pattern value into plain Go values, or nil.
func decodeValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
