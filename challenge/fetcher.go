// Package challenge collects the fraud signals sent with a confirmation: a
// passive captcha token and a device attestation assertion. Both are fetched
// concurrently, each under its own deadline, and a signal that is late or
// fails is simply left out.
package challenge

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/paymentsheet-go"
)

// TokenProvider produces one signal token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Fetcher runs the configured providers before each confirmation.
// A nil provider is skipped.
type Fetcher struct {
	passiveCaptcha     TokenProvider
	attestation        TokenProvider
	captchaTimeout     time.Duration
	attestationTimeout time.Duration
	logger             *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeouts takes the token fetch timeouts from a TimeoutConfig.
func WithTimeouts(timeouts paymentsheet.TimeoutConfig) Option {
	return func(f *Fetcher) {
		f.captchaTimeout = timeouts.PassiveCaptchaTimeout
		f.attestationTimeout = timeouts.AttestationTimeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with the default timeouts.
func NewFetcher(passiveCaptcha, attestation TokenProvider, opts ...Option) *Fetcher {
	f := &Fetcher{
		passiveCaptcha:     passiveCaptcha,
		attestation:        attestation,
		captchaTimeout:     paymentsheet.DefaultTimeouts.PassiveCaptchaTimeout,
		attestationTimeout: paymentsheet.DefaultTimeouts.AttestationTimeout,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch runs both providers concurrently and returns whatever arrived in
// time. It returns after at most the longer of the two timeouts, or earlier
// when ctx is done. The result is nil when no signal was collected.
func (f *Fetcher) Fetch(ctx context.Context) *paymentsheet.RadarOptions {
	var captcha, attestation string

	// The group is only a join. Each branch records its own token and never
	// fails, so one provider timing out never cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		captcha = f.fetch(ctx, "passive_captcha", f.passiveCaptcha, f.captchaTimeout)
		return nil
	})
	g.Go(func() error {
		attestation = f.fetch(ctx, "device_attestation", f.attestation, f.attestationTimeout)
		return nil
	})
	_ = g.Wait()

	opts := &paymentsheet.RadarOptions{PassiveCaptchaToken: captcha, DeviceAttestation: attestation}
	if opts.IsEmpty() {
		return nil
	}
	return opts
}

type tokenResult struct {
	token string
	err   error
}

// fetch bounds a single provider. Providers that ignore ctx are abandoned
// when the deadline passes; their late result is discarded.
func (f *Fetcher) fetch(ctx context.Context, name string, provider TokenProvider, timeout time.Duration) string {
	if provider == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan tokenResult, 1)
	go func() {
		token, err := provider.Token(ctx)
		done <- tokenResult{token: token, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			f.logger.Warn("token fetch failed", "signal", name, "error", r.err)
			return ""
		}
		return r.token
	case <-ctx.Done():
		f.logger.Warn("token fetch timed out", "signal", name, "timeout", timeout)
		return ""
	}
}
