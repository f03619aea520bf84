package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

var (
	// ErrClosed is returned for any operation on a submitted or canceled wizard.
	ErrClosed = errors.New("checkout: wizard is closed")
	// ErrNotFinalStep is returned when Submit is called before the address step.
	ErrNotFinalStep = errors.New("checkout: submit is only allowed on the last step")
	// ErrValidation marks a step blocked by invalid fields.
	ErrValidation = errors.New("checkout: validation failed")
	// ErrNoSubmitter is returned when the wizard has nobody to hand the order to.
	ErrNoSubmitter = errors.New("checkout: submitter not configured")
	// ErrSubmitFailed wraps an error returned by the submitter.
	ErrSubmitFailed = errors.New("checkout: order submission failed")
)

// ValidationError carries the field errors of the step that failed.
type ValidationError struct {
	Step   form.Step
	Fields form.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout: step %d has %d invalid field(s)", e.Step, len(e.Fields))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StepValidator checks the data of one step.
type StepValidator interface {
	ValidateStep(step form.Step, data form.Forms) form.FieldErrors
}

// State is the serialisable wizard state.
type State struct {
	Step        form.Step           `json:"step"`
	FieldErrors form.FieldErrors    `json:"fieldErrors"`
	Billing     pricing.BillingMode `json:"billingMode"`
	Snapshot    pricing.Snapshot    `json:"snapshot"`
	Forms       form.Forms          `json:"forms"`
	Closed      bool                `json:"closed"`
}

// NewState opens a fresh wizard on the first step for a plan snapshot.
func NewState(snap pricing.Snapshot, billing pricing.BillingMode) State {
	if !billing.Valid() {
		billing = pricing.Monthly
	}
	return State{
		Step:        form.StepPersonal,
		FieldErrors: form.FieldErrors{},
		Billing:     billing,
		Snapshot:    snap,
	}
}

// Deps are the collaborators a wizard needs.
type Deps struct {
	Engine    pricing.Engine
	Validator StepValidator
	Submitter Submitter
	Now       func() time.Time
	NewID     func() uuid.UUID
}

// Wizard drives the three checkout steps over a State.
type Wizard struct {
	state State
	deps  Deps
}

// NewWizard wraps a state. Out-of-range steps are pulled back into [1, 3].
func NewWizard(state State, deps Deps) *Wizard {
	switch {
	case state.Step < form.StepPersonal:
		state.Step = form.StepPersonal
	case state.Step > form.StepAddress:
		state.Step = form.StepAddress
	}
	if state.FieldErrors == nil {
		state.FieldErrors = form.FieldErrors{}
	}
	if !state.Billing.Valid() {
		state.Billing = pricing.Monthly
	}
	return &Wizard{state: state, deps: deps}
}

// State returns a copy of the current state.
func (w *Wizard) State() State {
	s := w.state
	s.FieldErrors = make(form.FieldErrors, len(w.state.FieldErrors))
	for k, v := range w.state.FieldErrors {
		s.FieldErrors[k] = v
	}
	return s
}

// Step returns the current step.
func (w *Wizard) Step() form.Step { return w.state.Step }

// Closed reports whether the wizard was submitted or canceled.
func (w *Wizard) Closed() bool { return w.state.Closed }

// Plan is the snapshot plan with the wizard's own billing mode.
func (w *Wizard) Plan() pricing.Plan {
	p := w.state.Snapshot.Plan
	p.Billing = w.state.Billing
	return p
}

// Breakdown prices the snapshot plan under the wizard billing mode.
func (w *Wizard) Breakdown() pricing.Breakdown {
	return w.deps.Engine.Compute(w.Plan())
}

// SetBilling switches between monthly and annual billing.
func (w *Wizard) SetBilling(mode pricing.BillingMode) error {
	if w.state.Closed {
		return ErrClosed
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", pricing.ErrUnknownBillingMode, mode)
	}
	w.state.Billing = mode
	return nil
}

// SetPersonal replaces the personal data form.
func (w *Wizard) SetPersonal(info form.PersonalInfo) error {
	if w.state.Closed {
		return ErrClosed
	}
	w.state.Forms.Personal = info
	return nil
}

// SetCompany replaces the company data form.
func (w *Wizard) SetCompany(info form.CompanyInfo) error {
	if w.state.Closed {
		return ErrClosed
	}
	w.state.Forms.Company = info
	return nil
}

// SetAddress replaces the address form.
func (w *Wizard) SetAddress(info form.AddressInfo) error {
	if w.state.Closed {
		return ErrClosed
	}
	w.state.Forms.Address = info
	return nil
}

// Next validates the current step and advances when it is valid. On the last
// step a valid form leaves the wizard where it is.
func (w *Wizard) Next() error {
	if w.state.Closed {
		return ErrClosed
	}
	if err := w.validateCurrent(); err != nil {
		return err
	}
	if w.state.Step < form.StepAddress {
		w.state.Step++
	}
	return nil
}

// Back returns to the previous step and clears field errors.
func (w *Wizard) Back() error {
	if w.state.Closed {
		return ErrClosed
	}
	if w.state.Step > form.StepPersonal {
		w.state.Step--
	}
	w.state.FieldErrors = form.FieldErrors{}
	return nil
}

// Submit builds the order and hands it to the submitter exactly once. The
// wizard closes only when the submitter accepts the order.
func (w *Wizard) Submit(ctx context.Context) (Order, error) {
	if w.state.Closed {
		return Order{}, ErrClosed
	}
	if w.state.Step != form.StepAddress {
		return Order{}, ErrNotFinalStep
	}
	if err := w.validateCurrent(); err != nil {
		return Order{}, err
	}
	if w.deps.Submitter == nil {
		return Order{}, ErrNoSubmitter
	}
	order := w.buildOrder()
	if err := w.deps.Submitter.Submit(ctx, order); err != nil {
		return Order{}, fmt.Errorf("%w: order %s: %w", ErrSubmitFailed, order.ID, err)
	}
	w.state.Closed = true
	return order, nil
}

// Cancel closes the wizard without submitting anything.
func (w *Wizard) Cancel() {
	w.state.Closed = true
}

func (w *Wizard) validateCurrent() error {
	var errs form.FieldErrors
	if w.deps.Validator != nil {
		errs = w.deps.Validator.ValidateStep(w.state.Step, w.state.Forms)
	}
	if len(errs) > 0 {
		w.state.FieldErrors = errs
		return &ValidationError{Step: w.state.Step, Fields: errs}
	}
	w.state.FieldErrors = form.FieldErrors{}
	return nil
}

func (w *Wizard) buildOrder() Order {
	now := time.Now
	if w.deps.Now != nil {
		now = w.deps.Now
	}
	newID := uuid.New
	if w.deps.NewID != nil {
		newID = w.deps.NewID
	}
	return Order{
		ID:          newID(),
		SubmittedAt: now().UTC(),
		Plan:        w.Plan(),
		Pricing:     w.Breakdown(),
		Personal:    w.state.Forms.Personal,
		Company:     w.state.Forms.Company,
		Address:     w.state.Forms.Address,
	}
}
