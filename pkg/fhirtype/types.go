// Package fhirtype classifies FHIR type codes found on ElementDefinition.type.
package fhirtype

import "strings"

// Type codes with special handling.
const (
	TypeExtension = "Extension"
	TypeString    = "string"
)

// systemTypeMapping maps FHIRPath system types used on primitive value elements to FHIR
// primitive types.
var systemTypeMapping = map[string]string{
	"http://hl7.org/fhirpath/System.String":   TypeString,
	"http://hl7.org/fhirpath/System.Boolean":  "boolean",
	"http://hl7.org/fhirpath/System.Integer":  "integer",
	"http://hl7.org/fhirpath/System.Decimal":  "decimal",
	"http://hl7.org/fhirpath/System.DateTime": "dateTime",
	"http://hl7.org/fhirpath/System.Time":     "time",
	"http://hl7.org/fhirpath/System.Date":     "date",
}

// primitiveTypes contains all FHIR primitive type codes.
var primitiveTypes = map[string]bool{
	"boolean":      true,
	"integer":      true,
	"integer64":    true,
	"string":       true,
	"decimal":      true,
	"uri":          true,
	"url":          true,
	"canonical":    true,
	"base64Binary": true,
	"instant":      true,
	"date":         true,
	"dateTime":     true,
	"time":         true,
	"code":         true,
	"oid":          true,
	"id":           true,
	"markdown":     true,
	"unsignedInt":  true,
	"positiveInt":  true,
	"uuid":         true,
	"xhtml":        true,
}

// Normalize maps FHIRPath system type URLs to FHIR primitive codes and returns other
// codes unchanged.
func Normalize(code string) string {
	if mapped, ok := systemTypeMapping[code]; ok {
		return mapped
	}
	return code
}

// IsPrimitive reports whether code is a FHIR primitive type.
func IsPrimitive(code string) bool {
	return primitiveTypes[Normalize(code)]
}

// IsPrimitiveElement reports whether an element with the given type codes is primitive:
// it has exactly one type and that type is primitive.
func IsPrimitiveElement(codes []string) bool {
	return len(codes) == 1 && IsPrimitive(codes[0])
}

// IsExtension reports whether an element with the given type codes is an extension.
func IsExtension(codes []string) bool {
	for _, c := range codes {
		if c == TypeExtension {
			return true
		}
	}
	return false
}

// IsChoiceSegment reports whether a path segment is a choice element such as value[x].
func IsChoiceSegment(segment string) bool {
	return strings.HasSuffix(segment, "[x]")
}
