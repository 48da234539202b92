package paymentsheet

import (
	"fmt"
	"time"
)

// TimeoutConfig bounds the network and token-fetch suspension points of a
// confirmation. The merchant confirm handler and next action handlers are
// deliberately unbounded: they wait on the customer or the merchant backend
// and end only through context cancellation.
type TimeoutConfig struct {
	// ConfirmTimeout bounds a single confirm call.
	ConfirmTimeout time.Duration

	// RetrieveTimeout bounds a single intent retrieval.
	RetrieveTimeout time.Duration

	// PassiveCaptchaTimeout bounds the passive captcha token fetch.
	PassiveCaptchaTimeout time.Duration

	// AttestationTimeout bounds the device attestation assertion.
	AttestationTimeout time.Duration
}

// DefaultTimeouts are the timeouts used when none are configured.
var DefaultTimeouts = TimeoutConfig{
	ConfirmTimeout:        60 * time.Second,
	RetrieveTimeout:       10 * time.Second,
	PassiveCaptchaTimeout: 6 * time.Second,
	AttestationTimeout:    2 * time.Second,
}

// Validate checks that every timeout is positive.
func (c TimeoutConfig) Validate() error {
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("%w: confirm timeout must be positive, got %v", ErrInvalidTimeout, c.ConfirmTimeout)
	}
	if c.RetrieveTimeout <= 0 {
		return fmt.Errorf("%w: retrieve timeout must be positive, got %v", ErrInvalidTimeout, c.RetrieveTimeout)
	}
	if c.PassiveCaptchaTimeout <= 0 {
		return fmt.Errorf("%w: passive captcha timeout must be positive, got %v", ErrInvalidTimeout, c.PassiveCaptchaTimeout)
	}
	if c.AttestationTimeout <= 0 {
		return fmt.Errorf("%w: attestation timeout must be positive, got %v", ErrInvalidTimeout, c.AttestationTimeout)
	}
	return nil
}

// WithConfirmTimeout returns a copy with ConfirmTimeout replaced.
func (c TimeoutConfig) WithConfirmTimeout(d time.Duration) TimeoutConfig {
	c.ConfirmTimeout = d
	return c
}

// WithRetrieveTimeout returns a copy with RetrieveTimeout replaced.
func (c TimeoutConfig) WithRetrieveTimeout(d time.Duration) TimeoutConfig {
	c.RetrieveTimeout = d
	return c
}

// WithPassiveCaptchaTimeout returns a copy with PassiveCaptchaTimeout replaced.
func (c TimeoutConfig) WithPassiveCaptchaTimeout(d time.Duration) TimeoutConfig {
	c.PassiveCaptchaTimeout = d
	return c
}

// WithAttestationTimeout returns a copy with AttestationTimeout replaced.
func (c TimeoutConfig) WithAttestationTimeout(d time.Duration) TimeoutConfig {
	c.AttestationTimeout = d
	return c
}
