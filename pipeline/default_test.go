package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/internal/testutil"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
)

func patientRecords() []element.Record {
	return []element.Record{
		{Path: "Patient", ID: "Patient"},
		{Path: "Patient.extension", ID: "Patient.extension:nationality", Extension: element.ExtensionComplex},
		{Path: "Patient.extension.url", ID: "Patient.extension:nationality.url"},
		{Path: "Patient.name", ID: "Patient.name", Mappings: []element.Mapping{
			{Identity: "rim", Map: "name"},
			{Identity: "rim", Map: "PN"},
		}},
		{Path: "Patient.birthDate", ID: "Patient.birthDate", Primitive: true},
		{Path: "Patient.birthDate.id", ID: "Patient.birthDate.id"},
		{Path: "Patient.birthDate.value", ID: "Patient.birthDate.value"},
		{Path: "Patient.contact", ID: "Patient.contact", Constraints: []element.Constraint{
			{Key: "pat-1", Expression: "name.exists() or telecom.exists()"},
		}},
		{Path: "Patient.contact.contact", ID: "Patient.contact.contact", LinkIDs: []string{"Patient.contact"}},
		{Path: "Patient.link.other", ID: "Patient.link.other", LinkIDs: []string{"Patient.gone"}},
	}
}

func TestDefault_PassOrder(t *testing.T) {
	p := Default(nil, nil)
	want := []string{
		"prune-complex",
		"ignore-constraints",
		"remove-redundant-values",
		"resolve-links",
		"validate-mappings",
		"validate-constraints",
	}
	if got := p.PassNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("PassNames() = %v; want %v", got, want)
	}

	all := Default(profiletree.Apply(profiletree.TidyOptions()...), nil)
	want = []string{
		"prune-complex",
		"ignore-constraints",
		"remove-extension-slicing",
		"strip-removed",
		"strip-childless-dummies",
		"remove-redundant-values",
		"resolve-links",
		"validate-mappings",
		"validate-constraints",
	}
	if got := all.PassNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("PassNames() with tidy options = %v; want %v", got, want)
	}

	build := Default(profiletree.Apply(profiletree.BuildOnlyOptions()...), nil)
	for _, name := range build.PassNames() {
		if name == string(PassIDValidateMappings) || name == string(PassIDValidateConstraints) {
			t.Errorf("build-only pipeline runs %s", name)
		}
	}
}

func TestDefault_Run(t *testing.T) {
	snap := testutil.Snapshot(t, patientRecords()...)
	sink := event.NewCollector("Patient")
	pctx := NewContext("Patient", snap, nil, sink)
	m := profiletree.NewMetrics()

	if err := Default(nil, m).Run(context.Background(), pctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, gone := range []string{"Patient.extension.url", "Patient.birthDate.value"} {
		if testutil.Find(snap, gone) != nil {
			t.Errorf("%s should have been removed", gone)
		}
	}
	if testutil.Find(snap, "Patient.birthDate.id") == nil {
		t.Error("Patient.birthDate.id should be kept")
	}

	contact := testutil.Find(snap, "Patient.contact")
	target, ok := testutil.Find(snap, "Patient.contact.contact").Data().LinkTarget()
	if !ok || target != contact.ID() {
		t.Errorf("LinkTarget() = %v, %v; want %v", target, ok, contact.ID())
	}

	if pctx.Stats.Removed != 2 {
		t.Errorf("Stats.Removed = %d; want 2", pctx.Stats.Removed)
	}
	if pctx.Stats.LinksResolved != 1 || pctx.Stats.LinksMissing != 1 {
		t.Errorf("links resolved = %d, missing = %d", pctx.Stats.LinksResolved, pctx.Stats.LinksMissing)
	}

	counts := map[event.Type]int{
		event.MissingReferencedNode:      1,
		event.MultipleMappingsSameKey:    1,
		event.ConstraintWithoutCondition: 1,
	}
	for typ, want := range counts {
		if got := sink.Count(typ); got != want {
			t.Errorf("Count(%s) = %d; want %d", typ, got, want)
		}
	}
	if sink.Len() != 3 {
		t.Errorf("Len() = %d; want 3: %v", sink.Len(), sink.Events())
	}

	if m.LinksResolved() != 1 || m.LinksMissing() != 1 {
		t.Errorf("metrics links resolved = %d, missing = %d", m.LinksResolved(), m.LinksMissing())
	}
	if s, ok := m.PassStats("remove-redundant-values"); !ok || s.Changes != 1 {
		t.Errorf("remove-redundant-values stats = %+v, %v", s, ok)
	}
}

func TestDefault_BackedValueIsKept(t *testing.T) {
	snap := testutil.Snapshot(t, patientRecords()...)
	diff := testutil.Differential(t, snap,
		element.Record{Path: "Patient", ID: "Patient"},
		element.Record{Path: "Patient.birthDate.value", ID: "Patient.birthDate.value"},
	)
	pctx := NewContext("Patient", snap, diff, nil)

	if err := Default(nil, nil).Run(context.Background(), pctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if testutil.Find(snap, "Patient.birthDate.value") == nil {
		t.Error("value node backed by the differential should be kept")
	}
}

func TestDefault_IgnoredConstraints(t *testing.T) {
	snap := testutil.Snapshot(t, patientRecords()...)
	sink := event.NewCollector("Patient")
	opts := profiletree.Apply(profiletree.WithIgnoredConstraints("pat-1"))

	if err := Default(opts, nil).Run(context.Background(), NewContext("Patient", snap, nil, sink)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := sink.Count(event.ConstraintWithoutCondition); n != 0 {
		t.Errorf("ignored constraint still reported %d times", n)
	}
	if got := testutil.Find(snap, "Patient.contact").Data().Constraints(); len(got) != 0 {
		t.Errorf("Constraints() = %v; want none", got)
	}
}

func TestDefault_ExpressionCheckRecordsCache(t *testing.T) {
	m := profiletree.NewMetrics()
	opts := profiletree.Apply(profiletree.WithExpressionCheck(true))
	p := Default(opts, m)

	for i := 0; i < 2; i++ {
		snap := testutil.Snapshot(t, patientRecords()...)
		if err := p.Run(context.Background(), NewContext("Patient", snap, nil, nil)); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if rate := m.CacheHitRate(); rate != 0.5 {
		t.Errorf("CacheHitRate() = %f; want 0.5", rate)
	}
}
