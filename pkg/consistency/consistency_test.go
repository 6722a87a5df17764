package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profiletree/internal/testutil"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
)

func TestMappingValidator(t *testing.T) {
	tests := []struct {
		name     string
		mappings []element.Mapping
		want     map[event.Type]int
	}{
		{
			name:     "two real values",
			mappings: []element.Mapping{{Identity: "A", Map: "x"}, {Identity: "A", Map: "y"}},
			want: map[event.Type]int{
				event.MultipleMappingsSameKey:          1,
				event.IgnorableMappingID:               0,
				event.MultipleMappingsSameKeyIgnorable: 0,
			},
		},
		{
			name:     "two placeholders",
			mappings: []element.Mapping{{Identity: "A", Map: "n/a"}, {Identity: "A", Map: "n/a"}},
			want: map[event.Type]int{
				event.IgnorableMappingID:               2,
				event.MultipleMappingsSameKeyIgnorable: 1,
				event.MultipleMappingsSameKey:          0,
			},
		},
		{
			name:     "one real one placeholder",
			mappings: []element.Mapping{{Identity: "A", Map: "x"}, {Identity: "A", Map: "N/A"}},
			want: map[event.Type]int{
				event.IgnorableMappingID:               1,
				event.MultipleMappingsSameKeyIgnorable: 1,
				event.MultipleMappingsSameKey:          0,
			},
		},
		{
			name:     "distinct identities",
			mappings: []element.Mapping{{Identity: "A", Map: "x"}, {Identity: "B", Map: "y"}},
			want: map[event.Type]int{
				event.IgnorableMappingID:               0,
				event.MultipleMappingsSameKeyIgnorable: 0,
				event.MultipleMappingsSameKey:          0,
			},
		},
	}

	v := NewMappingValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := event.NewCollector("Patient")
			v.Validate("Patient.name", tt.mappings, sink)
			for typ, n := range tt.want {
				assert.Equal(t, n, sink.Count(typ), typ)
			}
		})
	}
}

func TestMappingValidator_Message(t *testing.T) {
	sink := event.NewCollector("Patient")
	NewMappingValidator().Validate("Patient.name", []element.Mapping{
		{Identity: "rim", Map: "x"},
		{Identity: "rim", Map: "y"},
		{Identity: "rim", Map: "n/a"},
	}, sink)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, event.IgnorableMappingID, events[0].Type)
	assert.Equal(t, event.MultipleMappingsSameKey, events[1].Type)
	assert.Equal(t, "Multiple mapping entries (2) on Patient.name for identity rim [x, y]", events[1].Message)
}

func TestMappingValidator_CustomIgnorable(t *testing.T) {
	v := NewMappingValidator("-")
	assert.True(t, v.IsIgnorable("-"))
	assert.False(t, v.IsIgnorable("n/a"))
}

func TestConstraintValidator(t *testing.T) {
	tests := []struct {
		name        string
		conditions  []string
		constraints []element.Constraint
		without     int
		duplicates  int
	}{
		{
			name:        "no matching condition",
			constraints: []element.Constraint{{Key: "con-1"}},
			without:     1,
		},
		{
			name:        "matching condition",
			conditions:  []string{"con-1"},
			constraints: []element.Constraint{{Key: "con-1"}},
		},
		{
			name:        "duplicate keys",
			conditions:  []string{"con-1"},
			constraints: []element.Constraint{{Key: "con-1"}, {Key: "con-1"}},
			duplicates:  1,
		},
		{
			name:        "three of a kind",
			conditions:  []string{"con-1"},
			constraints: []element.Constraint{{Key: "con-1"}, {Key: "con-1"}, {Key: "con-1"}},
			duplicates:  3,
		},
	}

	v := NewConstraintValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := event.NewCollector("Patient")
			v.Validate("Patient", tt.conditions, tt.constraints, sink)
			assert.Equal(t, tt.without, sink.Count(event.ConstraintWithoutCondition))
			assert.Equal(t, tt.duplicates, sink.Count(event.DuplicateConstraintKeys))
		})
	}
}

func TestConstraintValidator_DuplicateNamesNode(t *testing.T) {
	sink := event.NewCollector("Patient")
	NewConstraintValidator().Validate("Patient.contact", []string{"pat-1"}, []element.Constraint{
		{Key: "pat-1"}, {Key: "pat-1"},
	}, sink)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Node constraints with duplicate keys: 'pat-1' (Patient.contact)", events[0].Message)
}

func TestConstraintValidator_Expressions(t *testing.T) {
	v := NewConstraintValidator(WithExpressionCheck(16))
	sink := event.NewCollector("Patient")

	constraints := []element.Constraint{
		{Key: "pat-1", Expression: "name.exists() or telecom.exists()"},
		{Key: "pat-2", Expression: "name.where("},
		{Key: "pat-3"},
	}
	v.Validate("Patient", []string{"pat-1", "pat-2", "pat-3"}, constraints, sink)
	v.Validate("Patient", []string{"pat-1", "pat-2", "pat-3"}, constraints, sink)

	assert.Equal(t, 2, sink.Count(event.InvalidConstraintExpression))
	for _, e := range sink.Events() {
		require.Error(t, e.Cause)
	}
	stats := v.CacheStats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, uint64(2), stats.Hits)
}

type countingRecorder struct{ hits, misses int }

func (r *countingRecorder) RecordCacheHit()  { r.hits++ }
func (r *countingRecorder) RecordCacheMiss() { r.misses++ }

func TestConstraintValidator_CacheRecorder(t *testing.T) {
	rec := &countingRecorder{}
	v := NewConstraintValidator(WithExpressionCheck(4), WithCacheRecorder(rec))
	constraints := []element.Constraint{{Key: "ext-1", Expression: "extension.exists() != value.exists()"}}

	for i := 0; i < 3; i++ {
		v.Validate("Extension", []string{"ext-1"}, constraints, event.Discard)
	}

	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 2, rec.hits)
}

func TestValidateTree(t *testing.T) {
	tr := testutil.Snapshot(t,
		element.Record{Path: "Patient", Constraints: []element.Constraint{{Key: "dom-2"}}},
		element.Record{Path: "Patient.contact.name", Mappings: []element.Mapping{
			{Identity: "rim", Map: "a"}, {Identity: "rim", Map: "b"},
		}},
	)
	sink := event.NewCollector("Patient")

	ValidateTree(tr, NewMappingValidator(), NewConstraintValidator(), sink)

	assert.Equal(t, 1, sink.Count(event.ConstraintWithoutCondition))
	assert.Equal(t, 1, sink.Count(event.MultipleMappingsSameKey))

	sink.Reset()
	ValidateTree(tr, nil, nil, sink)
	assert.Equal(t, 0, sink.Len())
}
