package forms

import "fmt"

// Rule binds a validator to a field.
type Rule struct {
	Field     string
	Validator Validator
}

// StepSchema is the ordered rule list owned by one step.
// A field with several rules reports the message of the first one that fails.
type StepSchema []Rule

// Fields returns the field names owned by the step, in rule order.
func (s StepSchema) Fields() []string {
	seen := make(map[string]bool, len(s))
	names := make([]string, 0, len(s))
	for _, r := range s {
		if !seen[r.Field] {
			seen[r.Field] = true
			names = append(names, r.Field)
		}
	}
	return names
}

// Owns reports whether the step validates the field.
func (s StepSchema) Owns(field string) bool {
	for _, r := range s {
		if r.Field == field {
			return true
		}
	}
	return false
}

// Errors maps a field name to a human-readable message.
// Fields that are absent are valid.
type Errors map[string]string

// Has returns true if the field has an error.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ValidateStep evaluates every rule of the step against data.
// Every rule runs; within a field the first failure wins.
func ValidateStep(schema StepSchema, data map[string]any) Errors {
	errs := make(Errors)
	for _, rule := range schema {
		err := rule.Validator.Validate(data[rule.Field])
		if err != nil && !errs.Has(rule.Field) {
			errs[rule.Field] = rule.Validator.Message()
		}
	}
	return errs
}

// Schema is the ordered set of step schemas. Step numbers start at 1.
type Schema []StepSchema

// Steps returns the number of steps.
func (s Schema) Steps() int {
	return len(s)
}

// Step returns the schema of step n.
func (s Schema) Step(n int) (StepSchema, bool) {
	if n < 1 || n > len(s) {
		return nil, false
	}
	return s[n-1], true
}

// Check verifies that every rule names a field of the record.
func (s Schema) Check(fields Fields) error {
	for i, step := range s {
		for _, name := range step.Fields() {
			if _, ok := fields.Get(name); !ok {
				return fmt.Errorf("%w: step %d: unknown field %q", ErrInvalidSchema, i+1, name)
			}
		}
	}
	return nil
}

// SignupSchema returns the three-step contact schema:
// step 1 owns name and email, step 2 phone and address, step 3 preferences and newsletter.
func SignupSchema() Schema {
	return Schema{
		{
			{Field: "name", Validator: Required("Name is required")},
			{Field: "name", Validator: MinLength(2, "Name must be at least 2 characters")},
			{Field: "email", Validator: Required("Email is required")},
			{Field: "email", Validator: Email("Invalid email address")},
		},
		{
			{Field: "phone", Validator: Required("Phone is required")},
			{Field: "phone", Validator: MinLength(10, "Phone must be at least 10 characters")},
			{Field: "address", Validator: Required("Address is required")},
			{Field: "address", Validator: MinLength(5, "Address must be at least 5 characters")},
		},
		{
			{Field: "preferences", Validator: Required("Please select a preference")},
			{Field: "newsletter", Validator: Optional()},
		},
	}
}
