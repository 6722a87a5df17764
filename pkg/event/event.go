// Package event defines the advisory events reported while building and tidying element
// trees, the Sink they are reported to, and message templates for each event type.
package event

import (
	"fmt"
	"strings"
)

// Type identifies the kind of an event.
type Type string

// Event types reported by link resolution and the consistency validators.
const (
	MissingReferencedNode            Type = "MISSING_REFERENCED_NODE"
	IgnorableMappingID               Type = "IGNORABLE_MAPPING_ID"
	MultipleMappingsSameKey          Type = "MULTIPLE_MAPPINGS_SAME_KEY"
	MultipleMappingsSameKeyIgnorable Type = "MULTIPLE_MAPPINGS_SAME_KEY_IGNORABLE"
	ConstraintWithoutCondition       Type = "CONSTRAINT_WITHOUT_CONDITION"
	DuplicateConstraintKeys          Type = "DUPLICATE_CONSTRAINT_KEYS"
)

// Event types reported by the converter, the engine and the extra link checks.
const (
	LinkReferencesItself        Type = "LINK_REFERENCES_ITSELF"
	FixedValueWithLinkedNode    Type = "FIXED_VALUE_WITH_LINKED_NODE"
	InvalidConstraintExpression Type = "INVALID_CONSTRAINT_EXPRESSION"
	MissingBackupNode           Type = "MISSING_BACKUP_NODE"
	DefaultToSimpleExtension    Type = "DEFAULT_TO_SIMPLE_EXTENSION"
)

// Severity of an event. Values follow FHIR IssueSeverity.
type Severity string

// Severity constants.
const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Template defines the fixed severity and message template of an event type.
type Template struct {
	Type     Type
	Severity Severity
	Template string
}

// templates use {placeholder} syntax for variable substitution.
var templates = map[Type]Template{
	MissingReferencedNode: {
		Severity: SeverityWarning,
		Template: "Linked node(s) at {paths} missing target ({id})",
	},
	IgnorableMappingID: {
		Severity: SeverityInformation,
		Template: "Found ignorable mapping ({value}) for identity {identity} at {path}",
	},
	MultipleMappingsSameKey: {
		Severity: SeverityWarning,
		Template: "Multiple mapping entries ({count}) on {path} for identity {identity} [{values}]",
	},
	MultipleMappingsSameKeyIgnorable: {
		Severity: SeverityInformation,
		Template: "Multiple mapping entries ({count}) on {path} for identity {identity} [{values}]",
	},
	ConstraintWithoutCondition: {
		Severity: SeverityWarning,
		Template: "Constraint {key} doesn't have an associated condition pointing at it ({node})",
	},
	DuplicateConstraintKeys: {
		Severity: SeverityWarning,
		Template: "Node constraints with duplicate keys: '{key}' ({node})",
	},
	LinkReferencesItself: {
		Severity: SeverityWarning,
		Template: "Link on {path} references itself ({id})",
	},
	FixedValueWithLinkedNode: {
		Severity: SeverityInformation,
		Template: "Node {path} has a fixed value ({value}) and a linked node ({id})",
	},
	InvalidConstraintExpression: {
		Severity: SeverityWarning,
		Template: "Constraint {key} on {node} has an invalid expression: {error}",
	},
	MissingBackupNode: {
		Severity: SeverityWarning,
		Template: "No snapshot node found for differential node {path} ({id})",
	},
	DefaultToSimpleExtension: {
		Severity: SeverityInformation,
		Template: "Extension definition {profile} not found for {path}, treating it as a simple extension",
	},
}

// Severity returns the fixed severity of t. Unknown types are warnings.
func (t Type) Severity() Severity {
	if tmpl, ok := templates[t]; ok {
		return tmpl.Severity
	}
	return SeverityWarning
}

// Known reports whether t is a registered event type.
func (t Type) Known() bool {
	_, ok := templates[t]
	return ok
}

// Types returns every registered event type.
func Types() []Type {
	out := make([]Type, 0, len(templates))
	for t := range templates {
		out = append(out, t)
	}
	return out
}

// GetTemplate returns the template for t.
func GetTemplate(t Type) (Template, bool) {
	tmpl, ok := templates[t]
	if ok {
		tmpl.Type = t
	}
	return tmpl, ok
}

// Format renders the message for t with params.
func Format(t Type, params map[string]any) string {
	tmpl, ok := templates[t]
	if !ok {
		return string(t)
	}
	return formatTemplate(tmpl.Template, params)
}

// formatTemplate replaces {placeholder} with values from params.
func formatTemplate(template string, params map[string]any) string {
	result := template
	for key, value := range params {
		placeholder := "{" + key + "}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprint(value))
	}
	return result
}

// Event is one reported event.
type Event struct {
	Type     Type     `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Resource string   `json:"resource,omitempty"`
	Cause    error    `json:"-"`
}

func (e Event) String() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Severity, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Type, e.Message)
}
