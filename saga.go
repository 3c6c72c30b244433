package auth

import "context"

// Saga collects compensating actions for a multi-step operation whose writes
// do not share a transaction. On failure the recorded compensations run in
// reverse order; individual compensation failures are logged and swallowed so
// the original error is what the caller sees.
type Saga struct {
	logger Logger
	steps  []sagaStep
}

type sagaStep struct {
	name string
	run  func(ctx context.Context) error
}

// NewSaga creates an empty compensation list.
func NewSaga(logger Logger) *Saga {
	if logger == nil {
		logger = defLogger{}
	}
	return &Saga{logger: logger}
}

// Push records a compensating action for a step that just succeeded.
func (s *Saga) Push(name string, run func(ctx context.Context) error) {
	if run == nil {
		return
	}
	s.steps = append(s.steps, sagaStep{name: name, run: run})
}

// Len returns the number of recorded compensations.
func (s *Saga) Len() int {
	return len(s.steps)
}

// Compensate runs every recorded action in reverse order, best effort.
func (s *Saga) Compensate(ctx context.Context) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.run(ctx); err != nil {
			s.logger.Warn("saga compensation %q failed: %v", step.name, err)
		}
	}
	s.steps = nil
}
