package forms

// FieldType identifies the type of form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// Field describes one entry of the form record.
type Field struct {
	// Name is the field name (used as the key in form data).
	Name string

	// Type is the field type.
	Type FieldType

	// Label is the display label.
	Label string

	// Options are the available options (for select fields).
	Options []SelectOption

	// Default is the initial value. Checkbox fields default to false.
	Default any
}

// SelectOption is one choice of a select field.
type SelectOption struct {
	Value string
	Label string
}

// FieldOption is a function that configures a field.
type FieldOption func(*Field)

// NewField creates a new field. The default value is derived from the type
// unless WithDefault is given.
func NewField(name string, fieldType FieldType, label string, opts ...FieldOption) Field {
	field := Field{
		Name:  name,
		Type:  fieldType,
		Label: label,
	}
	if fieldType == FieldCheckbox {
		field.Default = false
	} else {
		field.Default = ""
	}

	for _, opt := range opts {
		opt(&field)
	}

	return field
}

// WithDefault sets the default value.
func WithDefault(value any) FieldOption {
	return func(f *Field) {
		f.Default = value
	}
}

// WithOptions sets the select options.
func WithOptions(options ...SelectOption) FieldOption {
	return func(f *Field) {
		f.Options = options
	}
}

// Fields is the fixed, ordered set of fields a form owns.
type Fields []Field

// Get retrieves a field by name.
func (fs Fields) Get(name string) (Field, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Initial returns a fresh record with every field at its default.
func (fs Fields) Initial() map[string]any {
	data := make(map[string]any, len(fs))
	for _, f := range fs {
		data[f.Name] = f.Default
	}
	return data
}

// SignupFields returns the contact form record used by the signup wizard.
func SignupFields() Fields {
	return Fields{
		NewField("name", FieldText, "Full name"),
		NewField("email", FieldEmail, "Email"),
		NewField("phone", FieldTel, "Phone"),
		NewField("address", FieldTextarea, "Address"),
		NewField("preferences", FieldSelect, "Preferred contact",
			WithOptions(
				SelectOption{Value: "email", Label: "Email"},
				SelectOption{Value: "phone", Label: "Phone"},
				SelectOption{Value: "mail", Label: "Mail"},
			)),
		NewField("newsletter", FieldCheckbox, "Subscribe to newsletter"),
	}
}
