package forms

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSubmitDelay is the latency of the simulated remote submission.
const DefaultSubmitDelay = 1500 * time.Millisecond

// Submitter performs the terminal remote action with a copy of the field record.
type Submitter interface {
	Submit(ctx context.Context, fields map[string]any) error
}

// SubmitterFunc is an adapter to allow ordinary functions to be used as Submitters.
type SubmitterFunc func(ctx context.Context, fields map[string]any) error

func (f SubmitterFunc) Submit(ctx context.Context, fields map[string]any) error {
	return f(ctx, fields)
}

// SimulatedSubmitter stands in for a remote call by waiting Delay.
type SimulatedSubmitter struct {
	Delay time.Duration
}

// NewSimulatedSubmitter creates a simulated submitter.
func NewSimulatedSubmitter(delay time.Duration) *SimulatedSubmitter {
	return &SimulatedSubmitter{Delay: delay}
}

// Submit waits for the delay or for ctx to end.
func (s *SimulatedSubmitter) Submit(ctx context.Context, fields map[string]any) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submission is the single completion of one SubmitForm call.
type Submission struct {
	id   string
	done chan struct{}
	err  error
}

func newSubmission() *Submission {
	return &Submission{
		id:   uuid.New().String(),
		done: make(chan struct{}),
	}
}

// ID returns the submission identifier.
func (s *Submission) ID() string {
	return s.id
}

// Done is closed once the submission has completed and the wizard state settled.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Err returns the submitter error. It is nil until Done is closed.
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the submission completes or ctx ends.
func (s *Submission) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.err
	}
}

func (s *Submission) finish(err error) {
	s.err = err
	close(s.done)
}
