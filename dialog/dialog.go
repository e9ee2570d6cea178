// Package dialog drives the passwordless sign-in dialog: a small state
// machine stepping email -> code -> profile -> success, with snapshot
// persistence so an attempt survives the user leaving to read their code.
package dialog

import (
	"github.com/jrsteele09/go-passwordless/passwordless"
)

// Step is the dialog's visible step. The zero value means the dialog is
// closed.
type Step string

const (
	StepClosed  Step = ""
	StepEmail   Step = "email"
	StepCode    Step = "code"
	StepProfile Step = "profile"
	StepSuccess Step = "success"
)

// StatusTone classifies a status banner.
type StatusTone string

const (
	ToneInfo    StatusTone = "info"
	ToneSuccess StatusTone = "success"
	ToneError   StatusTone = "error"
)

// StatusMessage is the inline banner shown above the active step. Provider
// failures are converted to one of these at the handler boundary; they never
// propagate further.
type StatusMessage struct {
	Tone StatusTone `json:"tone"`
	Text string     `json:"text"`
}

// State is a point-in-time view of the dialog, safe to hand to renderers.
type State struct {
	IsOpen          bool                      `json:"isOpen"`
	Step            Step                      `json:"step"`
	Email           string                    `json:"email,omitempty"`
	Code            string                    `json:"code,omitempty"`
	Phone           string                    `json:"phone,omitempty"`
	Session         *passwordless.AuthSession `json:"session,omitempty"`
	SelectedMethod  passwordless.Method       `json:"selectedMethod,omitempty"`
	ProfilePhone    string                    `json:"profilePhone,omitempty"`
	ProfileLocation string                    `json:"profileLocation,omitempty"`
	Status          *StatusMessage            `json:"status,omitempty"`

	// Derived, never persisted.
	Loading            bool  `json:"loading"`
	ResendSecondsLeft  int   `json:"resendSecondsLeft"`
	ExpectedCodeLength int   `json:"expectedCodeLength"`
	AllowedCodeLengths []int `json:"allowedCodeLengths"`
}

// CodeSubmittable reports whether the typed code's length exactly matches one
// of the allowed lengths.
func (s State) CodeSubmittable() bool {
	for _, length := range s.AllowedCodeLengths {
		if len(s.Code) == length {
			return true
		}
	}
	return false
}
