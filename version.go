package profiletree

import "strings"

// FHIRVersion represents a FHIR specification version.
type FHIRVersion string

// Known FHIR versions.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the version string.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a known FHIR version.
func (v FHIRVersion) IsValid() bool {
	_, ok := versionConfigs[v]
	return ok
}

// IsSupported reports whether StructureDefinitions of this version can be converted.
// Only R4 documents are decoded.
func (v FHIRVersion) IsSupported() bool {
	return v == R4
}

// CorePackage returns the "name#version" reference of the core package of v, or "" for
// an unknown version.
func (v FHIRVersion) CorePackage() string {
	cfg, ok := versionConfigs[v]
	if !ok {
		return ""
	}
	return cfg.corePackageName + "#" + cfg.release
}

type versionConfig struct {
	corePackageName string
	release         string
}

var versionConfigs = map[FHIRVersion]versionConfig{
	R4:  {corePackageName: "hl7.fhir.r4.core", release: "4.0.1"},
	R4B: {corePackageName: "hl7.fhir.r4b.core", release: "4.3.0"},
	R5:  {corePackageName: "hl7.fhir.r5.core", release: "5.0.0"},
}

// ParseFHIRVersion maps a release name ("R4") or a fhirVersion value of a package or
// StructureDefinition ("4.0.1", "4.0") to a FHIRVersion.
func ParseFHIRVersion(s string) (FHIRVersion, bool) {
	s = strings.TrimSpace(s)
	if v := FHIRVersion(strings.ToUpper(s)); v.IsValid() {
		return v, true
	}
	switch {
	case strings.HasPrefix(s, "4.0"):
		return R4, true
	case strings.HasPrefix(s, "4.3"):
		return R4B, true
	case strings.HasPrefix(s, "5.0"):
		return R5, true
	}
	return "", false
}
