package profiletree

import (
	"bytes"
	"reflect"
	"runtime"
	"testing"

	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/logger"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	// Tidy defaults
	if !opts.PruneComplexExtensions {
		t.Error("PruneComplexExtensions should be true by default")
	}
	if !opts.RemoveRedundantValues {
		t.Error("RemoveRedundantValues should be true by default")
	}
	if opts.RemoveExtensionSlicing || opts.StripRemovedElements || opts.StripChildlessDummies {
		t.Error("optional tidy passes should be off by default")
	}
	if opts.ValueSegment != "value" {
		t.Errorf("ValueSegment = %q; want value", opts.ValueSegment)
	}

	// Checks
	if !opts.ResolveLinks {
		t.Error("ResolveLinks should be true by default")
	}
	if !opts.ValidateMappings || !opts.ValidateConstraints {
		t.Error("consistency checks should be on by default")
	}
	if opts.CheckExpressions {
		t.Error("CheckExpressions should be false by default")
	}
	if !reflect.DeepEqual(opts.IgnorableMappings, []string{"n/a", "N/A"}) {
		t.Errorf("IgnorableMappings = %v", opts.IgnorableMappings)
	}

	// Events
	if opts.StrictMode {
		t.Error("StrictMode should be false by default")
	}
	if opts.Responses == nil {
		t.Fatal("Responses should not be nil")
	}
	if opts.Responses.For(event.MissingReferencedNode, false) != event.ResponseWarn {
		t.Error("warnings should warn by default")
	}

	// Performance
	if opts.WorkerCount != runtime.NumCPU() {
		t.Errorf("WorkerCount = %d; want %d", opts.WorkerCount, runtime.NumCPU())
	}
	if opts.ExpressionCacheSize != 2000 {
		t.Errorf("ExpressionCacheSize = %d; want 2000", opts.ExpressionCacheSize)
	}
	if opts.Logger == nil {
		t.Error("Logger should not be nil")
	}
}

func TestWithValueSegment(t *testing.T) {
	opts := Apply(WithValueSegment("content"))
	if opts.ValueSegment != "content" {
		t.Errorf("ValueSegment = %q; want content", opts.ValueSegment)
	}

	opts = Apply(WithValueSegment(""))
	if opts.ValueSegment != "value" {
		t.Errorf("empty segment should be ignored, got %q", opts.ValueSegment)
	}
}

func TestWithIgnorableMappings(t *testing.T) {
	opts := Apply(WithIgnorableMappings("-", "none"))
	if !reflect.DeepEqual(opts.IgnorableMappings, []string{"-", "none"}) {
		t.Errorf("IgnorableMappings = %v", opts.IgnorableMappings)
	}

	opts = Apply(WithIgnorableMappings())
	if len(opts.IgnorableMappings) != 2 {
		t.Errorf("no values should keep the defaults, got %v", opts.IgnorableMappings)
	}
}

func TestWithIgnoredConstraints(t *testing.T) {
	opts := Apply(WithIgnoredConstraints("ele-1"), WithIgnoredConstraints("dom-6"))
	if !reflect.DeepEqual(opts.IgnoredConstraintKeys, []string{"ele-1", "dom-6"}) {
		t.Errorf("IgnoredConstraintKeys = %v", opts.IgnoredConstraintKeys)
	}
}

func TestWithWorkerCount(t *testing.T) {
	opts := Apply(WithWorkerCount(3))
	if opts.WorkerCount != 3 {
		t.Errorf("WorkerCount = %d; want 3", opts.WorkerCount)
	}

	opts = Apply(WithWorkerCount(0))
	if opts.WorkerCount != runtime.NumCPU() {
		t.Errorf("zero should keep the default, got %d", opts.WorkerCount)
	}
}

func TestWithExpressionCache(t *testing.T) {
	opts := Apply(WithExpressionCache(10), WithExpressionCache(-1))
	if opts.ExpressionCacheSize != 10 {
		t.Errorf("ExpressionCacheSize = %d; want 10", opts.ExpressionCacheSize)
	}
}

func TestWithResponses(t *testing.T) {
	r := &event.Responses{Default: event.ResponseFail}
	opts := Apply(WithResponses(r))
	if opts.Responses != r {
		t.Error("Responses not applied")
	}

	opts = Apply(WithResponses(nil))
	if opts.Responses == nil {
		t.Error("nil should keep the defaults")
	}
}

func TestWithLogger(t *testing.T) {
	l := logger.New(&bytes.Buffer{}, logger.LevelDebug)
	if Apply(WithLogger(l)).Logger != l {
		t.Error("Logger not applied")
	}
	if Apply(WithLogger(nil)).Logger == nil {
		t.Error("nil should keep the default logger")
	}
}

func TestPresets(t *testing.T) {
	tidy := Apply(TidyOptions()...)
	if !tidy.RemoveExtensionSlicing || !tidy.StripRemovedElements || !tidy.StripChildlessDummies {
		t.Error("TidyOptions should enable every tidy pass")
	}

	strict := Apply(StrictOptions()...)
	if !strict.StrictMode || !strict.CheckExpressions {
		t.Error("StrictOptions should enable strict mode and expression checks")
	}

	build := Apply(BuildOnlyOptions()...)
	if build.ValidateMappings || build.ValidateConstraints || build.CheckExpressions {
		t.Error("BuildOnlyOptions should disable every check")
	}
}
