package loader

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofhir/fhir/r4"
)

// View selects the element list of a StructureDefinition.
type View int

// Views.
const (
	ViewSnapshot View = iota
	ViewDifferential
)

func (v View) String() string {
	if v == ViewDifferential {
		return "differential"
	}
	return "snapshot"
}

// elementExtras carries the ElementDefinition fields the tree needs beyond the typed r4
// model. They are decoded from the same JSON document.
type elementExtras struct {
	Mapping []struct {
		Identity string `json:"identity"`
		Map      string `json:"map"`
	} `json:"mapping,omitempty"`
	Condition        []string `json:"condition,omitempty"`
	ContentReference string   `json:"contentReference,omitempty"`

	// Fixed is the raw fixed[x] value, or the pattern[x] value when no fixed[x] is set.
	Fixed json.RawMessage `json:"-"`
}

func (e *elementExtras) UnmarshalJSON(data []byte) error {
	type plain elementExtras
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.Fixed = choiceValue(fields, "fixed")
	if e.Fixed == nil {
		e.Fixed = choiceValue(fields, "pattern")
	}
	return nil
}

// choiceValue returns the value of the prefix[x] choice element in fields, such as
// fixedDateTime for "fixed". When several are present the first key in sort order wins.
func choiceValue(fields map[string]json.RawMessage, prefix string) json.RawMessage {
	key := ""
	for k, v := range fields {
		if len(k) <= len(prefix) || !strings.HasPrefix(k, prefix) {
			continue
		}
		if c := k[len(prefix)]; c < 'A' || c > 'Z' {
			continue
		}
		if string(v) == "null" {
			continue
		}
		if key == "" || k < key {
			key = k
		}
	}
	if key == "" {
		return nil
	}
	return fields[key]
}

type rawDefinition struct {
	ResourceType string `json:"resourceType"`
	Snapshot     *struct {
		Element []elementExtras `json:"element"`
	} `json:"snapshot,omitempty"`
	Differential *struct {
		Element []elementExtras `json:"element"`
	} `json:"differential,omitempty"`
}

// Definition is a parsed StructureDefinition together with the per-element metadata used
// to build profile trees.
type Definition struct {
	*r4.StructureDefinition
	snapshot     []elementExtras
	differential []elementExtras
}

// ParseDefinition parses a StructureDefinition JSON document.
func ParseDefinition(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if raw.ResourceType != "StructureDefinition" {
		return nil, fmt.Errorf("expected StructureDefinition, got %q", raw.ResourceType)
	}

	var sd r4.StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to parse StructureDefinition: %w", err)
	}

	def := &Definition{StructureDefinition: &sd}
	if raw.Snapshot != nil {
		def.snapshot = raw.Snapshot.Element
	}
	if raw.Differential != nil {
		def.differential = raw.Differential.Element
	}
	return def, nil
}

// NewDefinition wraps an already decoded StructureDefinition. The document is re-encoded
// once to recover the element metadata.
func NewDefinition(sd *r4.StructureDefinition) (*Definition, error) {
	if sd == nil {
		return nil, fmt.Errorf("structure definition is nil")
	}
	data, err := json.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode StructureDefinition: %w", err)
	}
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode element metadata: %w", err)
	}
	def := &Definition{StructureDefinition: sd}
	if raw.Snapshot != nil {
		def.snapshot = raw.Snapshot.Element
	}
	if raw.Differential != nil {
		def.differential = raw.Differential.Element
	}
	return def, nil
}

// URL returns the canonical URL, or "" when unset.
func (d *Definition) URL() string {
	return derefString(d.Url)
}

// Label returns the name of the definition, falling back to its URL then its type.
func (d *Definition) Label() string {
	if name := derefString(d.Name); name != "" {
		return name
	}
	if url := d.URL(); url != "" {
		return url
	}
	return derefString(d.Type)
}

// Elements returns the element list of the given view, or nil when absent.
func (d *Definition) Elements(v View) []r4.ElementDefinition {
	switch v {
	case ViewDifferential:
		if d.Differential != nil {
			return d.Differential.Element
		}
	default:
		if d.Snapshot != nil {
			return d.Snapshot.Element
		}
	}
	return nil
}

func (d *Definition) extras(v View, i int) elementExtras {
	list := d.snapshot
	if v == ViewDifferential {
		list = d.differential
	}
	if i < len(list) {
		return list[i]
	}
	return elementExtras{}
}

// IsExtension reports whether the definition defines an extension.
func (d *Definition) IsExtension() bool {
	return derefString(d.Type) == "Extension"
}
