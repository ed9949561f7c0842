// Package wizard models the three-step registration flow as an explicit
// state machine: form, payment, receipt upload, done.
package wizard

import (
	"errors"
	"fmt"
	"time"
)

type Step int

const (
	StepForm Step = iota + 1
	StepPayment
	StepReceipt
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepForm:
		return "form"
	case StepPayment:
		return "payment"
	case StepReceipt:
		return "receipt"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var ErrInvalidTransition = errors.New("invalid wizard transition")

// Form is what the visitor entered on step one. Phone is the local ten-digit
// number, kept without the dialing prefix for display.
type Form struct {
	Name       string `json:"name" validate:"notblank"`
	Year       string `json:"year" validate:"required,year"`
	RollNumber string `json:"roll_number" validate:"notblank"`
	Phone      string `json:"phone" validate:"required,phone10"`
}

type Session struct {
	ID             string    `json:"session_id"`
	Step           Step      `json:"-"`
	Form           Form      `json:"form"`
	DocumentID     string    `json:"-"`
	RegistrationID string    `json:"registration_id,omitempty"`
	ReceiptURL     string    `json:"receipt_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Session) transition(from, to Step, at time.Time) error {
	if s.Step != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, s.Step)
	}
	s.Step = to
	s.UpdatedAt = at
	return nil
}

// Submitted records the created registration and moves form -> payment.
func (s *Session) Submitted(form Form, documentID, registrationID string, at time.Time) error {
	if err := s.transition(StepForm, StepPayment, at); err != nil {
		return err
	}
	s.Form = form
	s.DocumentID = documentID
	s.RegistrationID = registrationID
	return nil
}

// Paid moves payment -> receipt. Payment completion is never observed; the
// visitor asserts it or opens the payment link.
func (s *Session) Paid(at time.Time) error {
	return s.transition(StepPayment, StepReceipt, at)
}

// Completed moves receipt -> done after the receipt has been attached.
func (s *Session) Completed(receiptURL string, at time.Time) error {
	if err := s.transition(StepReceipt, StepDone, at); err != nil {
		return err
	}
	s.ReceiptURL = receiptURL
	return nil
}
