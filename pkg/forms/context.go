package forms

import (
	"context"
)

type wizardContextKey struct{}

// WithWizard adds a wizard to the context.
func WithWizard(ctx context.Context, w *Wizard) context.Context {
	return context.WithValue(ctx, wizardContextKey{}, w)
}

// WizardFromContext retrieves the wizard from context.
func WizardFromContext(ctx context.Context) (*Wizard, bool) {
	w, ok := ctx.Value(wizardContextKey{}).(*Wizard)
	return w, ok && w != nil
}

// MustWizard retrieves the wizard from context and panics if there is none.
// A surface reaching for the controller outside its owner's scope is a
// programming error.
func MustWizard(ctx context.Context) *Wizard {
	w, ok := WizardFromContext(ctx)
	if !ok {
		panic("forms: MustWizard called outside of a wizard scope; wrap the context with WithWizard")
	}
	return w
}
