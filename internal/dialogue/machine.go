// Package dialogue implements the guided lead capture flow: one question per
// message, in a fixed order, until the record is complete.
package dialogue

import (
	"strings"

	"github.com/leadbot/crm-assistant/internal/lead"
)

// Step is the position of a user in the guided capture.
type Step string

const (
	StepInitial           Step = "initial"
	StepAwaitingFirstName Step = "awaiting_first_name"
	StepAwaitingLastName  Step = "awaiting_last_name"
	StepAwaitingEmail     Step = "awaiting_email"
	StepAwaitingPhone     Step = "awaiting_phone"
	StepAwaitingCompany   Step = "awaiting_company"
)

// Prompts sent after each transition.
const (
	PromptFirstName = "Okay, let's create a new lead. What is the lead's **First Name**?"
	PromptLastName  = "Got it. What is their **Last Name**?"
	PromptEmail     = "And their **Email Address** (or type 'skip')?"
	PromptPhone     = "What is their **Phone Number** (or type 'skip')?"
	PromptCompany   = "What is their **Company** (or type 'skip')?"
	PromptSubmit    = "Thanks! Attempting to add this lead to CRM..."
)

const skipWord = "skip"

// State is one user's conversation position plus the fields gathered so far.
type State struct {
	Step    Step        `json:"step"`
	Partial lead.Record `json:"partial"`
}

// Initial returns the idle state.
func Initial() State {
	return State{Step: StepInitial}
}

// Active reports whether a guided capture is in progress.
func (s State) Active() bool {
	return s.Step != StepInitial && s.Step != ""
}

// Transition is the outcome of consuming one message.
type Transition struct {
	Next   State
	Prompt string

	// Complete is set once the company answer has been consumed; Record then
	// holds the gathered fields.
	Complete bool
	Record   lead.Record
}

// Start begins a new capture, discarding any partial data.
func Start() Transition {
	return Transition{
		Next:   State{Step: StepAwaitingFirstName},
		Prompt: PromptFirstName,
	}
}

// Advance stores text into the field the current step asks for and moves to
// the next step. Any text is accepted. Advancing the initial state is a no-op;
// callers handle idle messages themselves.
func Advance(s State, text string) Transition {
	next := s

	switch s.Step {
	case StepAwaitingFirstName:
		next.Partial.FirstName = text
		next.Step = StepAwaitingLastName
		return Transition{Next: next, Prompt: PromptLastName}

	case StepAwaitingLastName:
		next.Partial.LastName = text
		next.Step = StepAwaitingEmail
		return Transition{Next: next, Prompt: PromptEmail}

	case StepAwaitingEmail:
		if !isSkip(text) {
			next.Partial.Email = text
		}
		next.Step = StepAwaitingPhone
		return Transition{Next: next, Prompt: PromptPhone}

	case StepAwaitingPhone:
		if !isSkip(text) {
			next.Partial.Phone = text
		}
		next.Step = StepAwaitingCompany
		return Transition{Next: next, Prompt: PromptCompany}

	case StepAwaitingCompany:
		rec := next.Partial
		if !isSkip(text) {
			rec.Company = text
		}
		return Transition{
			Next:     Initial(),
			Prompt:   PromptSubmit,
			Complete: true,
			Record:   rec,
		}

	default:
		return Transition{Next: Initial()}
	}
}

func isSkip(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), skipWord)
}
