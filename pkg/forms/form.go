// Package forms provides the multi-step form controller for golivecatalog:
// a fixed field record, declarative per-step schemas and a step pointer that
// only moves forward when the current step validates.
package forms

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gabrielmiguelok/golivecatalog/pkg/logging"
)

// Common wizard errors.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidValue    = errors.New("invalid value for field type")
	ErrStepOutOfRange  = errors.New("step out of range")
	ErrNotTerminalStep = errors.New("submit is only allowed on the last step")
	ErrSubmitting      = errors.New("submission already in progress")
	ErrInvalidStep     = errors.New("step has validation errors")
	ErrClosed          = errors.New("wizard is closed")
)

// State is a point-in-time copy of the wizard.
type State struct {
	Fields     map[string]any `json:"fields" msgpack:"fields"`
	Errors     Errors         `json:"errors" msgpack:"errors"`
	Step       int            `json:"step" msgpack:"step"`
	Submitting bool           `json:"submitting" msgpack:"submitting"`
}

// Wizard is the multi-step form controller. One Wizard has one owner; the
// display surface holds it by reference and must disable its submit control
// while State().Submitting is true.
type Wizard struct {
	fields    Fields
	schema    Schema
	submitter Submitter
	logger    logging.Logger

	data       map[string]any
	errors     Errors
	step       int
	submitting bool
	closed     bool

	listeners    map[uint64]func(State)
	nextListener uint64

	mu sync.Mutex
}

// Option configures a wizard.
type Option func(*Wizard)

// WithSubmitter sets the terminal submission action.
func WithSubmitter(s Submitter) Option {
	return func(w *Wizard) {
		w.submitter = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Wizard) {
		w.logger = l
	}
}

// NewWizard creates a wizard over the given field record and schema.
// It panics if the schema has no steps or names a field outside the record.
func NewWizard(fields Fields, schema Schema, opts ...Option) *Wizard {
	if schema.Steps() == 0 {
		panic("forms: schema must have at least one step")
	}
	if err := schema.Check(fields); err != nil {
		panic("forms: " + err.Error())
	}

	w := &Wizard{
		fields:    fields,
		schema:    schema,
		submitter: NewSimulatedSubmitter(DefaultSubmitDelay),
		logger:    logging.NopLogger{},
		listeners: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.resetLocked()
	return w
}

// NewSignupWizard creates a wizard with the signup record and schema.
func NewSignupWizard(opts ...Option) *Wizard {
	return NewWizard(SignupFields(), SignupSchema(), opts...)
}

// Steps returns the number of steps.
func (w *Wizard) Steps() int {
	return w.schema.Steps()
}

// Fields returns the field record definition.
func (w *Wizard) Fields() Fields {
	return w.fields
}

// State returns a copy of the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

// UpdateField sets one field and clears its error. Other errors are kept.
func (w *Wizard) UpdateField(name string, value any) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}

	field, ok := w.fields.Get(name)
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if !valueFits(field, value) {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q (%T)", ErrInvalidValue, name, value)
	}

	w.data[name] = value
	delete(w.errors, name)
	w.mu.Unlock()

	w.notify()
	return nil
}

// ValidateStep validates the fields owned by step and replaces the error set
// with the result. An out-of-range step returns false and changes nothing.
func (w *Wizard) ValidateStep(step int) bool {
	ok, _ := w.CheckStep(step)
	return ok
}

// CheckStep is ValidateStep with an explicit error for out-of-range steps.
func (w *Wizard) CheckStep(step int) (bool, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false, ErrClosed
	}
	ok, err := w.validateLocked(step)
	w.mu.Unlock()

	if err == nil {
		w.notify()
	}
	return ok, err
}

// NextStep validates the current step and advances on success.
// It returns whether the current step validated.
func (w *Wizard) NextStep() bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	from := w.step
	ok, _ := w.validateLocked(w.step)
	if ok {
		w.step = min(w.step+1, w.schema.Steps())
	}
	to := w.step
	errCount := len(w.errors)
	w.mu.Unlock()

	w.logger.Debug("wizard next step",
		logging.Int("from", from),
		logging.Int("to", to),
		logging.Int("errors", errCount),
	)
	w.notify()
	return ok
}

// PrevStep moves back one step and clears all errors.
func (w *Wizard) PrevStep() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.step = max(w.step-1, 1)
	w.errors = make(Errors)
	w.mu.Unlock()

	w.notify()
}

// SubmitForm re-validates the terminal step and starts the submission.
// On success the returned Submission completes after the wizard has been
// reset. The wizard does not guard reentrancy beyond the submitting flag.
func (w *Wizard) SubmitForm(ctx context.Context) (*Submission, error) {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return nil, ErrClosed
	case w.submitting:
		w.mu.Unlock()
		return nil, ErrSubmitting
	case w.step != w.schema.Steps():
		w.mu.Unlock()
		return nil, ErrNotTerminalStep
	}

	if ok, _ := w.validateLocked(w.step); !ok {
		w.mu.Unlock()
		w.notify()
		return nil, ErrInvalidStep
	}

	w.submitting = true
	payload := cloneData(w.data)
	sub := newSubmission()
	submitter := w.submitter
	w.mu.Unlock()

	w.logger.Info("wizard submit started", logging.String("submission", sub.ID()))
	w.notify()

	go w.complete(ctx, sub, submitter, payload)
	return sub, nil
}

func (w *Wizard) complete(ctx context.Context, sub *Submission, submitter Submitter, payload map[string]any) {
	err := submitter.Submit(ctx, payload)

	w.mu.Lock()
	if w.closed {
		// Owner is gone; the result is dropped.
		w.mu.Unlock()
		sub.finish(err)
		return
	}
	if err == nil {
		w.resetLocked()
	} else {
		w.submitting = false
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("wizard submit failed",
			logging.String("submission", sub.ID()),
			logging.Err(err),
		)
	} else {
		w.logger.Info("wizard submit completed", logging.String("submission", sub.ID()))
	}

	w.notify()
	sub.finish(err)
}

// Reset restores every field to its default, clears errors and returns to step 1.
func (w *Wizard) Reset() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.resetLocked()
	w.mu.Unlock()

	w.notify()
}

// Restore loads a previously captured snapshot. Unknown fields are ignored and
// the submitting flag is never restored.
func (w *Wizard) Restore(s State) error {
	if s.Step < 1 || s.Step > w.schema.Steps() {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, s.Step)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.data = w.fields.Initial()
	for name, value := range s.Fields {
		if field, ok := w.fields.Get(name); ok && valueFits(field, value) {
			w.data[name] = value
		}
	}
	w.errors = s.Errors.clone()
	w.step = s.Step
	w.submitting = false
	w.mu.Unlock()

	w.notify()
	return nil
}

// Bind updates fields from form-encoded values. Checkbox fields accept
// "on", "true" and "1" as checked.
func (w *Wizard) Bind(values url.Values) error {
	for _, field := range w.fields {
		if !values.Has(field.Name) {
			continue
		}
		raw := values.Get(field.Name)
		var value any = raw
		if field.Type == FieldCheckbox {
			value = raw == "on" || raw == "true" || raw == "1"
		}
		if err := w.UpdateField(field.Name, value); err != nil {
			return err
		}
	}
	return nil
}

// OnChange registers a listener invoked with a fresh State after every
// mutation, including asynchronous submit completion.
func (w *Wizard) OnChange(fn func(State)) (cancel func()) {
	w.mu.Lock()
	id := w.nextListener
	w.nextListener++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// Close tears the wizard down. Pending submissions still complete but no
// longer touch the state, and listeners are dropped.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.listeners = make(map[uint64]func(State))
}

func (w *Wizard) validateLocked(step int) (bool, error) {
	schema, ok := w.schema.Step(step)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrStepOutOfRange, step)
	}
	w.errors = ValidateStep(schema, w.data)
	return len(w.errors) == 0, nil
}

func (w *Wizard) resetLocked() {
	w.data = w.fields.Initial()
	w.errors = make(Errors)
	w.step = 1
	w.submitting = false
}

func (w *Wizard) stateLocked() State {
	return State{
		Fields:     cloneData(w.data),
		Errors:     w.errors.clone(),
		Step:       w.step,
		Submitting: w.submitting,
	}
}

func (w *Wizard) notify() {
	w.mu.Lock()
	if len(w.listeners) == 0 {
		w.mu.Unlock()
		return
	}
	state := w.stateLocked()
	fns := make([]func(State), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func valueFits(field Field, value any) bool {
	switch value.(type) {
	case bool:
		return field.Type == FieldCheckbox
	case string:
		return field.Type != FieldCheckbox
	default:
		return false
	}
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
