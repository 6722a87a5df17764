package consistency

import (
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/tree"
)

// ValidateTree runs both validators over every non-dummy node of t. Either validator
// may be nil to skip it.
func ValidateTree[D element.Data](t *tree.Tree[D], mappings *MappingValidator, constraints *ConstraintValidator, sink event.Sink) {
	for n := range t.All() {
		data := n.Data()
		if data.IsDummy() {
			continue
		}
		path := n.Path().String()
		if mappings != nil {
			mappings.Validate(path, data.Mappings(), sink)
		}
		if constraints != nil {
			constraints.Validate(path, data.ConditionIDs(), data.Constraints(), sink)
		}
	}
}
