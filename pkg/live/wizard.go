package live

import (
	"context"
	"errors"
	"sync"

	"github.com/gabrielmiguelok/golivecatalog/pkg/forms"
	"github.com/gabrielmiguelok/golivecatalog/pkg/logging"
	"github.com/gabrielmiguelok/golivecatalog/pkg/state"
)

// SignupWizardName is the registry name of the signup wizard.
const SignupWizardName = "signup"

// SignupWizard exposes a forms.Wizard to a surface.
//
// Events:
//
//	update_field {name, value}  value is a string, or a bool for checkboxes
//	next_step, prev_step, reset
//	submit
type SignupWizard struct {
	submitter forms.Submitter
	schema    forms.Schema
	drafts    *state.DraftManager
	logger    logging.Logger

	wizard    *forms.Wizard
	sessionID string
	notify    Notify
	cancel    func()

	// last submission outcome: "", "pending", "succeeded" or "failed"
	submitStatus string
	submitError  string
	closed       bool
	mu           sync.Mutex
}

// WizardOption configures a SignupWizard.
type WizardOption func(*SignupWizard)

// WithSubmitter sets the submission action.
func WithSubmitter(s forms.Submitter) WizardOption {
	return func(sw *SignupWizard) {
		sw.submitter = s
	}
}

// WithSchema replaces the built-in signup rules, e.g. with one read by
// forms.LoadSchema. Fields stay the signup fields.
func WithSchema(schema forms.Schema) WizardOption {
	return func(sw *SignupWizard) {
		sw.schema = schema
	}
}

// WithDrafts enables draft save and restore keyed by the "session" param.
func WithDrafts(dm *state.DraftManager) WizardOption {
	return func(sw *SignupWizard) {
		sw.drafts = dm
	}
}

// WithWizardLogger sets the logger.
func WithWizardLogger(l logging.Logger) WizardOption {
	return func(sw *SignupWizard) {
		sw.logger = l
	}
}

// NewSignupWizard returns a factory for signup wizard components.
func NewSignupWizard(opts ...WizardOption) Factory {
	return func() Component {
		sw := &SignupWizard{
			submitter: forms.NewSimulatedSubmitter(forms.DefaultSubmitDelay),
			logger:    logging.NopLogger{},
		}
		for _, opt := range opts {
			opt(sw)
		}
		return sw
	}
}

// Name returns the component name.
func (sw *SignupWizard) Name() string {
	return SignupWizardName
}

// Mount creates the wizard and restores the session draft if one exists.
func (sw *SignupWizard) Mount(ctx context.Context, params Params, notify Notify) error {
	sw.sessionID = params.Get("session")
	sw.notify = notify
	schema := sw.schema
	if schema == nil {
		schema = forms.SignupSchema()
	}
	sw.wizard = forms.NewWizard(forms.SignupFields(), schema,
		forms.WithSubmitter(sw.submitter),
		forms.WithLogger(sw.logger.With(logging.String("session", sw.sessionID))),
	)

	if sw.drafts != nil && sw.sessionID != "" {
		draft, err := sw.drafts.Load(ctx, sw.sessionID)
		switch {
		case err == nil:
			if err := sw.wizard.Restore(draft.State); err != nil {
				sw.logger.Warn("discarding unusable draft", logging.String("session", sw.sessionID), logging.Err(err))
			}
		case !errors.Is(err, state.ErrKeyNotFound):
			sw.logger.Warn("draft load failed", logging.String("session", sw.sessionID), logging.Err(err))
		}
	}

	sw.cancel = sw.wizard.OnChange(sw.changed)
	return nil
}

func (sw *SignupWizard) changed(s forms.State) {
	sw.mu.Lock()
	closed := sw.closed
	sw.mu.Unlock()
	if closed {
		return
	}

	if sw.drafts != nil && sw.sessionID != "" {
		if _, err := sw.drafts.Save(context.Background(), sw.sessionID, s); err != nil {
			sw.logger.Warn("draft save failed", logging.String("session", sw.sessionID), logging.Err(err))
		}
	}
	if sw.notify != nil {
		sw.notify()
	}
}

// HandleEvent dispatches one wizard event.
func (sw *SignupWizard) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	if sw.wizard == nil {
		return ErrNotMounted
	}

	switch event {
	case "update_field":
		name, err := stringArg(payload, "name")
		if err != nil {
			return err
		}
		return sw.wizard.UpdateField(name, payload["value"])

	case "next_step":
		sw.wizard.NextStep()

	case "prev_step":
		sw.wizard.PrevStep()

	case "reset":
		sw.setSubmit("", "")
		sw.wizard.Reset()

	case "submit":
		sub, err := sw.wizard.SubmitForm(ctx)
		if errors.Is(err, forms.ErrInvalidStep) {
			// Errors are already in the view.
			return nil
		}
		if err != nil {
			return err
		}
		sw.setSubmit("pending", "")
		go sw.awaitSubmission(sub)

	default:
		return ErrUnknownEvent
	}

	return nil
}

func (sw *SignupWizard) awaitSubmission(sub *forms.Submission) {
	<-sub.Done()

	sw.mu.Lock()
	if sw.closed {
		sw.mu.Unlock()
		return
	}
	sw.mu.Unlock()

	if err := sub.Err(); err != nil {
		sw.setSubmit("failed", "Submission failed, please try again")
	} else {
		sw.setSubmit("succeeded", "")
		if sw.drafts != nil && sw.sessionID != "" {
			if err := sw.drafts.Delete(context.Background(), sw.sessionID); err != nil {
				sw.logger.Warn("draft delete failed", logging.String("session", sw.sessionID), logging.Err(err))
			}
		}
	}
	if sw.notify != nil {
		sw.notify()
	}
}

func (sw *SignupWizard) setSubmit(status, msg string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.submitStatus = status
	sw.submitError = msg
}

// Wizard returns the owned controller.
func (sw *SignupWizard) Wizard() *forms.Wizard {
	return sw.wizard
}

// View returns the wizard view. Submit and back controls are disabled while
// a submission is in flight.
func (sw *SignupWizard) View() map[string]any {
	if sw.wizard == nil {
		return map[string]any{}
	}
	s := sw.wizard.State()
	steps := sw.wizard.Steps()

	sw.mu.Lock()
	submitStatus, submitError := sw.submitStatus, sw.submitError
	sw.mu.Unlock()

	return map[string]any{
		"fields":        s.Fields,
		"errors":        s.Errors,
		"step":          s.Step,
		"steps":         steps,
		"submitting":    s.Submitting,
		"can_go_back":   s.Step > 1 && !s.Submitting,
		"can_submit":    s.Step == steps && !s.Submitting,
		"submit_status": submitStatus,
		"submit_error":  submitError,
	}
}

// Terminate stops listening and closes the wizard.
func (sw *SignupWizard) Terminate(ctx context.Context) error {
	sw.mu.Lock()
	sw.closed = true
	sw.mu.Unlock()

	if sw.cancel != nil {
		sw.cancel()
	}
	if sw.wizard != nil {
		sw.wizard.Close()
	}
	return nil
}
