package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const formJSON = `{
  "resourceType": "StructureDefinition",
  "url": "http://example.org/StructureDefinition/form",
  "name": "Form",
  "type": "Questionnaire",
  "kind": "resource",
  "snapshot": {
    "element": [
      {"id": "Questionnaire", "path": "Questionnaire", "max": "*"},
      {"id": "Questionnaire.item", "path": "Questionnaire.item", "max": "*", "type": [{"code": "BackboneElement"}]},
      {"id": "Questionnaire.item.linkId", "path": "Questionnaire.item.linkId", "max": "1", "type": [{"code": "string"}]},
      {"id": "Questionnaire.item.item", "path": "Questionnaire.item.item", "max": "*", "contentReference": "#Questionnaire.item"},
      {"id": "Questionnaire.item.answer", "path": "Questionnaire.item.answer", "max": "*", "contentReference": "#Questionnaire.gone"}
    ]
  },
  "differential": {
    "element": [
      {"id": "Questionnaire", "path": "Questionnaire"},
      {"id": "Questionnaire.item.linkId", "path": "Questionnaire.item.linkId", "max": "1"}
    ]
  }
}`

// writeFile writes content to name under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// run executes the command line args and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func assertContains(t *testing.T, output string, want []string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Errorf("output missing %q\nOutput:\n%s", w, output)
		}
	}
}

func TestTreeCommand(t *testing.T) {
	file := writeFile(t, t.TempDir(), "form.json", formJSON)

	tests := []struct {
		name        string
		args        []string
		wantContain []string
		wantJSON    bool
	}{
		{
			name: "snapshot outline",
			args: []string{"tree", file},
			wantContain: []string{
				"Questionnaire\n",
				"  item\n",
				"    item -> Questionnaire.item\n",
				"    answer\n",
			},
		},
		{
			name:        "with differential",
			args:        []string{"tree", "-d", file},
			wantContain: []string{"  item [dummy]\n", "    linkId\n"},
		},
		{
			name:        "json",
			args:        []string{"tree", "--json", "--differential", file},
			wantContain: []string{`"linkedTo": "Questionnaire.item"`, `"differential"`, `"dummy": true`},
			wantJSON:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("tree: %v", err)
			}
			if tt.wantJSON && !json.Valid([]byte(out)) {
				t.Fatalf("output is not valid JSON:\n%s", out)
			}
			assertContains(t, out, tt.wantContain)
		})
	}
}

func TestTreeCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := run(t, "tree", filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}

	patient := writeFile(t, dir, "patient.json", `{"resourceType": "Patient"}`)
	if _, _, err := run(t, "tree", patient); err == nil {
		t.Error("expected an error for a non-StructureDefinition document")
	}

	if _, _, err := run(t, "tree"); err == nil {
		t.Error("expected an argument error")
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", formJSON)
	writeFile(t, dir, "b.json", formJSON)

	out, _, err := run(t, "check", filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	assertContains(t, out, []string{
		"== Form ==",
		"Status: OK",
		"Links: 1 resolved, 1 missing",
		"MISSING_REFERENCED_NODE",
		"Total: 2 resources, 2 ok, 0 failed, 0 errors",
	})
}

func TestCheckCommand_Strict(t *testing.T) {
	file := writeFile(t, t.TempDir(), "form.json", formJSON)

	out, _, err := run(t, "check", "--strict", file)
	if !errors.Is(err, errFailed) {
		t.Fatalf("check --strict error = %v; want errFailed", err)
	}
	assertContains(t, out, []string{"Status: FAILED"})
}

func TestCheckCommand_EventsConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "form.json", formJSON)
	config := writeFile(t, dir, "events.yaml", "events:\n  - type: MISSING_REFERENCED_NODE\n    response: fail\n")

	_, _, err := run(t, "check", "--events-config", config, file)
	if !errors.Is(err, errFailed) {
		t.Fatalf("error = %v; want errFailed", err)
	}

	bad := writeFile(t, dir, "bad.yaml", "events:\n  - type: NOT_AN_EVENT\n    response: fail\n")
	_, _, err = run(t, "check", "--events-config", bad, file)
	if err == nil || errors.Is(err, errFailed) {
		t.Fatalf("error = %v; want a configuration error", err)
	}
}

func TestCheckCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "form.json", formJSON)
	missing := filepath.Join(dir, "missing.json")

	out, _, err := run(t, "check", "--json", file, missing)
	if !errors.Is(err, errFailed) {
		t.Fatalf("error = %v; want errFailed", err)
	}

	var reports []resourceReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports; want 2", len(reports))
	}
	byStatus := map[string]resourceReport{}
	for _, r := range reports {
		byStatus[r.Status] = r
	}
	if r, ok := byStatus[statusOK]; !ok || r.Name != "Form" || r.Stats == nil || r.Stats.LinksMissing != 1 {
		t.Errorf("ok report = %+v", r)
	}
	if r, ok := byStatus[statusError]; !ok || r.Source != missing || r.Error == "" {
		t.Errorf("error report = %+v", r)
	}
}

func TestCheckCommand_Quiet(t *testing.T) {
	file := writeFile(t, t.TempDir(), "form.json", formJSON)

	out, _, err := run(t, "check", "-q", file)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out != "" {
		t.Errorf("quiet output = %q; want nothing for a passing resource", out)
	}
}

func TestCheckCommand_MetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "form.json", formJSON)
	metrics := filepath.Join(dir, "profiletree.prom")

	if _, _, err := run(t, "check", "--metrics-textfile", metrics, file); err != nil {
		t.Fatalf("check: %v", err)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	assertContains(t, string(data), []string{
		`profiletree_resources_total{outcome="ok"} 1`,
		`profiletree_links_total{outcome="missing"} 1`,
	})
}

func newPackageDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "example.forms", "version": "1.0.0", "fhirVersions": ["4.0.1"]}`)
	writeFile(t, dir, "StructureDefinition-form.json", formJSON)
	writeFile(t, dir, "ValueSet-colors.json", `{"resourceType": "ValueSet", "url": "http://example.org/ValueSet/colors"}`)
	return dir
}

func TestPackageCommand(t *testing.T) {
	dir := newPackageDir(t)

	out, _, err := run(t, "package", dir)
	if err != nil {
		t.Fatalf("package: %v\n%s", err, out)
	}
	assertContains(t, out, []string{
		"Package: example.forms#1.0.0",
		"== Form ==",
		"Source: http://example.org/StructureDefinition/form",
		"Total: 1 resources, 1 ok, 0 failed, 0 errors",
	})
}

func TestPackageCommand_Cache(t *testing.T) {
	cache := t.TempDir()
	pkgDir := filepath.Join(cache, "example.forms#1.0.0", "package")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, pkgDir, "package.json", `{"name": "example.forms", "version": "1.0.0"}`)
	writeFile(t, pkgDir, "StructureDefinition-form.json", formJSON)

	out, _, err := run(t, "package", "--list", "--cache", cache)
	if err != nil {
		t.Fatalf("package --list: %v", err)
	}
	if strings.TrimSpace(out) != "example.forms#1.0.0" {
		t.Errorf("list output = %q", out)
	}

	out, _, err = run(t, "package", "--json", "--cache", cache, "example.forms#1.0.0")
	if err != nil {
		t.Fatalf("package: %v\n%s", err, out)
	}
	var doc struct {
		Package   string           `json:"package"`
		Version   string           `json:"version"`
		Resources []resourceReport `json:"resources"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if doc.Package != "example.forms" || len(doc.Resources) != 1 || doc.Resources[0].Status != statusOK {
		t.Errorf("package report = %+v", doc)
	}

	if _, _, err := run(t, "package", "--cache", cache, "example.missing#0.1.0"); err == nil {
		t.Error("expected an error for a package missing from the cache")
	}
}

func TestCheckCommand_Bundle(t *testing.T) {
	dir := t.TempDir()
	bundle := `{"resourceType": "Bundle", "type": "collection", "entry": [
		{"resource": ` + formJSON + `},
		{"resource": {"resourceType": "ValueSet", "id": "colors"}}
	]}`
	file := writeFile(t, dir, "bundle.json", bundle)

	out, _, err := run(t, "check", file)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	assertContains(t, out, []string{
		"== Form ==",
		"Source: " + file + "#http://example.org/StructureDefinition/form",
		"Status: OK",
	})
	if strings.Contains(out, "colors") {
		t.Errorf("non-StructureDefinition entry was checked:\n%s", out)
	}
}

func TestPackageCommand_FHIRVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name": "example.r5", "version": "0.1.0", "fhirVersions": ["5.0.0"]}`)
	writeFile(t, dir, "StructureDefinition-form.json", formJSON)

	_, stderr, err := run(t, "package", dir)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	assertContains(t, stderr, []string{"warning: example.r5#0.1.0 targets FHIR 5.0.0"})

	// no core package in an empty cache
	if _, _, err := run(t, "package", "--core", "--cache", t.TempDir(), dir); err == nil {
		t.Error("expected an error for a core package missing from the cache")
	}
}
