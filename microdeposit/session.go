// Package microdeposit tracks bank account verification by microdeposits.
// An intent paid with a bank account that could not be verified instantly
// waits in verify_with_microdeposits until the customer reports the deposits
// seen on their statement, often days later.
package microdeposit

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mark3labs/paymentsheet-go"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted sessions.
	ErrSessionNotFound = errors.New("microdeposit: session not found")

	// ErrSessionExpired is returned once a session can no longer be verified.
	ErrSessionExpired = errors.New("microdeposit: session expired")

	// ErrSessionCompleted is returned when verifying an already verified session.
	ErrSessionCompleted = errors.New("microdeposit: session already completed")

	// ErrNotArrived is returned before the deposits are expected to arrive.
	ErrNotArrived = errors.New("microdeposit: deposits have not arrived yet")

	// ErrVerificationInProgress is returned while another verification of the session runs.
	ErrVerificationInProgress = errors.New("microdeposit: verification in progress")

	// ErrVerificationFailed is returned when the amounts or code did not match.
	ErrVerificationFailed = errors.New("microdeposit: verification failed")

	// ErrInvalidAmounts is returned for malformed amount pairs.
	ErrInvalidAmounts = errors.New("microdeposit: invalid amounts")

	// ErrInvalidDescriptorCode is returned for malformed descriptor codes.
	ErrInvalidDescriptorCode = errors.New("microdeposit: invalid descriptor code")

	// ErrNotMicrodepositAction is returned when the intent is not waiting on microdeposits.
	ErrNotMicrodepositAction = errors.New("microdeposit: intent is not awaiting microdeposit verification")
)

// descriptorCodeRegex matches statement descriptor codes ("SM" and four alphanumerics)
var descriptorCodeRegex = regexp.MustCompile(`^SM[A-Z0-9]{4}$`)

// Status is the lifecycle state of a verification session.
type Status string

const (
	// StatusPending means the deposits are still on their way.
	StatusPending Status = "pending"
	// StatusActive means the customer can verify.
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Session is one microdeposit verification of an intent.
type Session struct {
	ID           string
	ClientSecret string
	IntentID     string
	IntentKind   paymentsheet.IntentKind

	HostedVerificationURL string

	// MicrodepositType is "amounts" or "descriptor_code".
	MicrodepositType string

	CreatedAt time.Time
	ArrivesAt time.Time
	ExpiresAt time.Time

	AttemptsRemaining int
	Status            Status

	verifying bool
}

// refresh moves time-driven transitions forward.
func (s *Session) refresh(now time.Time) {
	switch s.Status {
	case StatusPending, StatusActive:
		if !now.Before(s.ExpiresAt) || s.AttemptsRemaining <= 0 {
			s.Status = StatusExpired
			return
		}
		if !now.Before(s.ArrivesAt) {
			s.Status = StatusActive
		}
	}
}

// usesDescriptorCode reports whether the customer verifies with a code
// instead of two amounts.
func (s *Session) usesDescriptorCode() bool {
	return s.MicrodepositType == "descriptor_code"
}

// ValidateAmounts checks an amount pair: exactly two amounts of 0 to 99 cents.
func ValidateAmounts(amounts []int64) error {
	if len(amounts) != 2 {
		return fmt.Errorf("%w: expected exactly 2 amounts, got %d", ErrInvalidAmounts, len(amounts))
	}
	for i, amount := range amounts {
		if amount < 0 || amount > 99 {
			return fmt.Errorf("%w: amount %d must be between 0 and 99 cents, got %d", ErrInvalidAmounts, i, amount)
		}
	}
	return nil
}

// ValidateDescriptorCode checks a statement descriptor code such as "SM11AA".
func ValidateDescriptorCode(code string) error {
	if !descriptorCodeRegex.MatchString(code) {
		return fmt.Errorf("%w: %q (expected SM followed by 4 letters or digits)", ErrInvalidDescriptorCode, code)
	}
	return nil
}
