package microdeposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/stripeapi"
)

// API error codes that count as a failed verification attempt.
const (
	codeAmountsMismatch    = "payment_method_microdeposit_verification_amounts_mismatch"
	codeDescriptorMismatch = "payment_method_microdeposit_verification_descriptor_code_mismatch"
	codeAttemptsExceeded   = "payment_method_microdeposit_verification_attempts_exceeded"
	codeTimeout            = "payment_method_microdeposit_verification_timeout"
)

// Verifier submits a verification to the payments API.
// *stripeapi.Client implements it.
type Verifier interface {
	VerifyMicrodeposits(ctx context.Context, clientSecret string, v stripeapi.MicrodepositVerification) (*paymentsheet.IntentStatusResponse, error)
}

// Config holds configuration for the session store.
type Config struct {
	// Capacity is the number of sessions kept; the least recently used is evicted.
	Capacity int

	// TTL is how long a session stays verifiable after the deposits arrive.
	TTL time.Duration

	// MaxAttempts is the number of verification attempts per session.
	MaxAttempts int
}

// DefaultConfig mirrors the payments API limits: ten attempts within ten days.
var DefaultConfig = Config{
	Capacity:    1024,
	TTL:         10 * 24 * time.Hour,
	MaxAttempts: 10,
}

// Manager creates and verifies sessions. It is safe for concurrent use.
type Manager struct {
	verifier Verifier
	config   Config
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager. Zero config fields take their defaults.
func NewManager(verifier Verifier, config Config, opts ...ManagerOption) (*Manager, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig.Capacity
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig.TTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig.MaxAttempts
	}

	sessions, err := lru.New[string, *Session](config.Capacity)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		verifier: verifier,
		config:   config,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start opens a session for an intent waiting on microdeposit verification.
func (m *Manager) Start(intent *paymentsheet.IntentStatusResponse) (*Session, error) {
	if intent == nil || intent.NextAction == nil || intent.NextAction.Type != paymentsheet.NextActionVerifyWithMicrodeposits {
		return nil, ErrNotMicrodepositAction
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("%w: intent has no client secret", paymentsheet.ErrInvalidClientSecret)
	}

	now := m.now()
	arrives := now
	if intent.NextAction.MicrodepositArrivalDate > 0 {
		arrives = time.Unix(intent.NextAction.MicrodepositArrivalDate, 0)
	}

	session := &Session{
		ID:                    "mds_" + uuid.NewString(),
		ClientSecret:          intent.ClientSecret,
		IntentID:              intent.ID,
		IntentKind:            intent.Kind,
		HostedVerificationURL: intent.NextAction.HostedVerificationURL,
		MicrodepositType:      intent.NextAction.MicrodepositType,
		CreatedAt:             now,
		ArrivesAt:             arrives,
		ExpiresAt:             arrives.Add(m.config.TTL),
		AttemptsRemaining:     m.config.MaxAttempts,
		Status:                StatusPending,
	}
	session.refresh(now)

	m.mu.Lock()
	m.sessions.Add(session.ID, session)
	m.mu.Unlock()

	m.logger.Info("microdeposit session started",
		"session", session.ID,
		"intent", session.IntentID,
		"arrives_at", session.ArrivesAt)

	snapshot := *session
	return &snapshot, nil
}

// Get returns a snapshot of a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.refresh(m.now())
	snapshot := *session
	return &snapshot, nil
}

// VerifyAmounts verifies a session with the two deposit amounts in cents.
func (m *Manager) VerifyAmounts(ctx context.Context, id string, amounts []int64) (*Session, error) {
	if err := ValidateAmounts(amounts); err != nil {
		return nil, err
	}
	return m.verify(ctx, id, stripeapi.MicrodepositVerification{Amounts: amounts})
}

// VerifyDescriptorCode verifies a session with the statement descriptor code.
func (m *Manager) VerifyDescriptorCode(ctx context.Context, id, code string) (*Session, error) {
	if err := ValidateDescriptorCode(code); err != nil {
		return nil, err
	}
	return m.verify(ctx, id, stripeapi.MicrodepositVerification{DescriptorCode: code})
}

func (m *Manager) verify(ctx context.Context, id string, v stripeapi.MicrodepositVerification) (*Session, error) {
	session, err := m.begin(id, v)
	if err != nil {
		return nil, err
	}

	resp, err := m.verifier.VerifyMicrodeposits(ctx, session.ClientSecret, v)

	m.mu.Lock()
	defer m.mu.Unlock()
	session.verifying = false

	if err != nil {
		var apiErr *paymentsheet.APIError
		if !errors.As(err, &apiErr) {
			// Transport failures do not use up an attempt.
			return nil, err
		}
		switch apiErr.Code {
		case codeAmountsMismatch, codeDescriptorMismatch:
			session.AttemptsRemaining--
			session.refresh(m.now())
			m.logger.Warn("microdeposit verification failed",
				"session", session.ID,
				"attempts_remaining", session.AttemptsRemaining)
			snapshot := *session
			return &snapshot, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
		case codeAttemptsExceeded, codeTimeout:
			session.AttemptsRemaining = 0
			session.Status = StatusExpired
			snapshot := *session
			return &snapshot, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		default:
			return nil, err
		}
	}

	if resp.Status == paymentsheet.IntentStatusRequiresAction {
		return nil, fmt.Errorf("%w: intent still requires action", paymentsheet.ErrUnexpectedStatus)
	}

	session.Status = StatusCompleted
	m.logger.Info("microdeposit verification completed", "session", session.ID, "intent_status", resp.Status)
	snapshot := *session
	return &snapshot, nil
}

// begin checks that the session can be verified now and marks it busy.
func (m *Manager) begin(id string, v stripeapi.MicrodepositVerification) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.refresh(m.now())

	switch session.Status {
	case StatusCompleted:
		return nil, ErrSessionCompleted
	case StatusExpired:
		return nil, ErrSessionExpired
	case StatusPending:
		return nil, fmt.Errorf("%w: expected at %s", ErrNotArrived, session.ArrivesAt.Format(time.RFC3339))
	}
	if session.verifying {
		return nil, ErrVerificationInProgress
	}
	if session.usesDescriptorCode() && v.DescriptorCode == "" {
		return nil, fmt.Errorf("%w: this session is verified with a descriptor code", ErrInvalidDescriptorCode)
	}

	session.verifying = true
	return session, nil
}
