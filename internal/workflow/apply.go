package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/common"
)

// step is one remote side effect. undo is nil when the effect cannot be
// taken back.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// StepError reports a workflow that stopped at a failed step.
//
// When every completed step was undone the remote state is as before the
// workflow and the error matches common.ErrorStepFailed. Otherwise Left
// names the completed steps whose effects remain and the error matches
// common.ErrorInconsistent.
type StepError struct {
	Workflow string
	Step     string
	Err      error

	// Left lists completed steps that are still in effect, latest first.
	Left []string

	// UndoErr holds the failures of compensating actions, if any.
	UndoErr error
}

func (e *StepError) Inconsistent() bool {
	return len(e.Left) > 0
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s failed: %v", e.Workflow, e.Step, e.Err)
	if e.Inconsistent() {
		fmt.Fprintf(&b, "; left in place: %s", strings.Join(e.Left, ", "))
	}
	if e.UndoErr != nil {
		fmt.Fprintf(&b, "; %v", e.UndoErr)
	}
	return b.String()
}

func (e *StepError) Unwrap() []error {
	kind := common.ErrorStepFailed
	if e.Inconsistent() {
		kind = common.ErrorInconsistent
	}
	errs := []error{kind, e.Err}
	if e.UndoErr != nil {
		errs = append(errs, e.UndoErr)
	}
	return errs
}

// apply runs steps in order and stops at the first failure. Completed steps
// are then compensated in reverse order.
func apply(ctx context.Context, workflow string, steps []step) error {
	done := make([]step, 0, len(steps))

	for _, s := range steps {
		err := s.do(ctx)
		if err == nil {
			done = append(done, s)
			continue
		}

		se := &StepError{Workflow: workflow, Step: s.name, Err: err}
		for i := len(done) - 1; i >= 0; i-- {
			d := done[i]
			if d.undo == nil {
				se.Left = append(se.Left, d.name)
				continue
			}
			if uerr := d.undo(ctx); uerr != nil {
				se.Left = append(se.Left, d.name)
				se.UndoErr = errors.Join(se.UndoErr, fmt.Errorf("undo %s: %w", d.name, uerr))
			}
		}
		return se
	}

	return nil
}
