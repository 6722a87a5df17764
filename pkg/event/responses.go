package event

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Response is what the caller does with an event after a resource completes.
type Response string

// Response values.
const (
	ResponseIgnore Response = "ignore"
	ResponseWarn   Response = "warn"
	ResponseFail   Response = "fail"
)

// Responses maps event types to responses. Types without an entry use Default.
type Responses struct {
	Default Response
	ByType  map[Type]Response
}

// DefaultResponses warns on warning events and ignores informational ones.
func DefaultResponses() *Responses {
	r := &Responses{
		Default: ResponseWarn,
		ByType:  make(map[Type]Response, len(templates)),
	}
	for t, tmpl := range templates {
		if tmpl.Severity == SeverityInformation {
			r.ByType[t] = ResponseIgnore
		} else {
			r.ByType[t] = ResponseWarn
		}
	}
	return r
}

// For returns the response configured for t. When strict is set, anything that is not
// informational fails.
func (r *Responses) For(t Type, strict bool) Response {
	if strict && t.Severity() != SeverityInformation {
		return ResponseFail
	}
	if resp, ok := r.ByType[t]; ok {
		return resp
	}
	return r.Default
}

// Failures returns the events whose response is ResponseFail.
func (r *Responses) Failures(events []Event, strict bool) []Event {
	var out []Event
	for _, e := range events {
		if r.For(e.Type, strict) == ResponseFail {
			out = append(out, e)
		}
	}
	return out
}

// responsesFile is the YAML layout:
//
//	default: warn
//	events:
//	  - type: MISSING_REFERENCED_NODE
//	    response: fail
type responsesFile struct {
	Default Response        `yaml:"default" validate:"omitempty,oneof=ignore warn fail"`
	Events  []responseEntry `yaml:"events" validate:"dive"`
}

type responseEntry struct {
	Type     Type     `yaml:"type" validate:"required,eventtype"`
	Response Response `yaml:"response" validate:"required,oneof=ignore warn fail"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).Known()
	})
	return v
}

// ParseResponses reads a YAML response table. Without a default key the entries are
// applied on top of DefaultResponses; with one, unlisted types all use that default.
func ParseResponses(data []byte) (*Responses, error) {
	var f responsesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse event responses: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid event responses: %w", err)
	}

	r := DefaultResponses()
	if f.Default != "" {
		r = &Responses{Default: f.Default, ByType: make(map[Type]Response, len(f.Events))}
	}
	for _, e := range f.Events {
		r.ByType[e.Type] = e.Response
	}
	return r, nil
}

// LoadResponses reads a YAML response table from path.
func LoadResponses(path string) (*Responses, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event responses %s: %w", path, err)
	}
	return ParseResponses(data)
}
