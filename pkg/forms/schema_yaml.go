package forms

import (
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema is returned when a schema document cannot be turned into rules.
var ErrInvalidSchema = errors.New("invalid schema")

// Rule kinds understood by LoadSchema.
const (
	KindRequired  = "required"
	KindMinLength = "min_length"
	KindEmail     = "email"
	KindPattern   = "pattern"
	KindOptional  = "optional"
)

type schemaDoc struct {
	Steps []stepDoc `yaml:"steps"`
}

type stepDoc struct {
	Rules []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Field   string `yaml:"field"`
	Kind    string `yaml:"kind"`
	Min     int    `yaml:"min"`
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// LoadSchema decodes a YAML schema document:
//
//	steps:
//	  - rules:
//	      - {field: name, kind: required, message: Name is required}
//	      - {field: name, kind: min_length, min: 2, message: Name must be at least 2 characters}
func LoadSchema(r io.Reader) (Schema, error) {
	var doc schemaDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if len(doc.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidSchema)
	}

	schema := make(Schema, 0, len(doc.Steps))
	for i, step := range doc.Steps {
		rules := make(StepSchema, 0, len(step.Rules))
		for j, rd := range step.Rules {
			v, err := rd.validator()
			if err != nil {
				return nil, fmt.Errorf("%w: step %d rule %d: %v", ErrInvalidSchema, i+1, j+1, err)
			}
			rules = append(rules, Rule{Field: rd.Field, Validator: v})
		}
		schema = append(schema, rules)
	}
	return schema, nil
}

func (rd ruleDoc) validator() (Validator, error) {
	if rd.Field == "" {
		return nil, errors.New("field is required")
	}
	switch rd.Kind {
	case KindRequired:
		return Required(rd.Message), nil
	case KindMinLength:
		if rd.Min <= 0 {
			return nil, errors.New("min_length needs a positive min")
		}
		return MinLength(rd.Min, rd.Message), nil
	case KindEmail:
		return Email(rd.Message), nil
	case KindPattern:
		re, err := regexp.Compile(rd.Pattern)
		if err != nil {
			return nil, err
		}
		return PatternValidator{Regexp: re, Msg: rd.Message}, nil
	case KindOptional:
		return Optional(), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", rd.Kind)
	}
}
