package onboarding

import "fmt"

type Step string

const (
	StepToken     Step = "issue-token"
	StepTemplates Step = "list-templates"
	StepDraft     Step = "create-draft"
	StepPromote   Step = "promote-draft"
	StepRecord    Step = "insert-record"
)

// StepError aborts the sequence at Step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("onboarding step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Notice is the message shown to the user: the underlying one when there is
// one, otherwise a generic message for the phase.
func (e *StepError) Notice() string {
	if e.Err != nil && e.Err.Error() != "" {
		return e.Err.Error()
	}
	switch e.Step {
	case StepToken, StepTemplates:
		return "Failed to initialize onboarding."
	}
	return "Failed to create avatar."
}
