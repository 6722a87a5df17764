package loader

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

const manifestJSON = `{"name":"example.fhir.core","version":"1.0.0","fhirVersions":["4.0.1"]}`

const sdJSON = `{"resourceType":"StructureDefinition","id":"race","url":"http://example.org/StructureDefinition/race","type":"Extension"}`

func TestDefaultPackagePath(t *testing.T) {
	path := DefaultPackagePath()
	if path == "" {
		t.Error("DefaultPackagePath returned empty string")
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".fhir", "packages")
	if path != expected {
		t.Errorf("DefaultPackagePath = %q, want %q", path, expected)
	}
}

func TestParsePackageSpec(t *testing.T) {
	tests := []struct {
		spec string
		want PackageRef
	}{
		{"hl7.fhir.r4.core#4.0.1", PackageRef{Name: "hl7.fhir.r4.core", Version: "4.0.1"}},
		{"hl7.fhir.uv.extensions.r4#5.2.0", PackageRef{Name: "hl7.fhir.uv.extensions.r4", Version: "5.2.0"}},
		{"package-without-version", PackageRef{Name: "package-without-version"}},
	}

	for _, tt := range tests {
		if got := ParsePackageSpec(tt.spec); got != tt.want {
			t.Errorf("ParsePackageSpec(%q) = %+v, want %+v", tt.spec, got, tt.want)
		}
		if tt.want.Version != "" && tt.want.String() != tt.spec {
			t.Errorf("String() = %q, want %q", tt.want.String(), tt.spec)
		}
	}
}

func writeFiles(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func utf16WithBOM(t *testing.T, s string) []byte {
	t.Helper()
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestLoadPackage(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, filepath.Join(base, "example.fhir.core#1.0.0", "package"), map[string][]byte{
		"package.json":                  []byte(manifestJSON),
		".index.json":                   []byte(`{"index-version":1}`),
		"StructureDefinition-race.json": append([]byte{0xEF, 0xBB, 0xBF}, sdJSON...),
		"ValueSet-codes.json":           utf16WithBOM(t, `{"resourceType":"ValueSet","id":"codes"}`),
		"notes.json":                    []byte(`{"hello":"world"}`),
		"broken.json":                   []byte(`{`),
		"readme.md":                     []byte(`# readme`),
	})

	l := NewLoader(base, WithConcurrency(2))
	pkg, err := l.LoadPackage(context.Background(), PackageRef{Name: "example.fhir.core", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("LoadPackage: %v", err)
	}

	if pkg.Name != "example.fhir.core" || pkg.Version != "1.0.0" || pkg.FHIRVersion != "4.0.1" {
		t.Errorf("unexpected manifest %s#%s (%s)", pkg.Name, pkg.Version, pkg.FHIRVersion)
	}
	if len(pkg.Resources) != 2 {
		t.Fatalf("got %d resources, want 2", len(pkg.Resources))
	}

	sds := pkg.StructureDefinitions()
	data, ok := sds["http://example.org/StructureDefinition/race"]
	if !ok {
		t.Fatalf("StructureDefinition missing, got %v", sds)
	}
	if !bytes.Equal(data, []byte(sdJSON)) {
		t.Errorf("BOM not stripped: %q", data)
	}

	for _, r := range pkg.Resources {
		if r.Type == "ValueSet" && r.Key() != "ValueSet/codes" {
			t.Errorf("Key = %q, want ValueSet/codes", r.Key())
		}
	}
}

func TestLoadPackage_Missing(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.LoadPackage(context.Background(), PackageRef{Name: "nope", Version: "1"}); err == nil {
		t.Error("expected error for missing package")
	}
}

func TestLoadDir_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string][]byte{
		"package.json":                  []byte(manifestJSON),
		"StructureDefinition-race.json": []byte(sdJSON),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader(dir).LoadDir(ctx, dir); err == nil {
		t.Error("expected context error")
	}
}

func TestListPackages(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"b.pkg#2.0.0", "a.pkg#1.0.0", "not-a-package"} {
		if err := os.MkdirAll(filepath.Join(base, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	got, err := NewLoader(base).ListPackages()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a.pkg#1.0.0" || got[1] != "b.pkg#2.0.0" {
		t.Errorf("ListPackages = %v", got)
	}
}

func TestLoadFromTgz(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range map[string]string{
		"package/package.json":                       manifestJSON,
		"package/StructureDefinition-race.json":      sdJSON,
		"package/other/StructureDefinition-x.json":   sdJSON,
		"package/example/Patient-example-patient.md": "ignored",
	} {
		hdr := &tar.Header{Name: name, Mode: 0o600, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "example.tgz")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	pkg, err := NewLoader(t.TempDir()).LoadFromTgz(path)
	if err != nil {
		t.Fatalf("LoadFromTgz: %v", err)
	}
	if pkg.Name != "example.fhir.core" {
		t.Errorf("Name = %q", pkg.Name)
	}
	if len(pkg.Resources) != 1 {
		t.Errorf("got %d resources, want 1", len(pkg.Resources))
	}
}

func TestLoadFromTgz_NoManifest(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	_ = tw.Close()
	_ = gz.Close()

	if _, err := loadFromTgzReader(&buf, "empty.tgz"); err == nil {
		t.Error("expected error for package without package.json")
	}
}
