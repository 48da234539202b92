package paymentsheet

import "time"

// MandateAcceptanceType is how the customer accepted a mandate.
type MandateAcceptanceType string

const (
	MandateAcceptanceOnline  MandateAcceptanceType = "online"
	MandateAcceptanceOffline MandateAcceptanceType = "offline"
)

// MandateData is the customer acceptance record attached to a confirmation.
type MandateData struct {
	CustomerAcceptance CustomerAcceptance `json:"customer_acceptance"`
}

// CustomerAcceptance records when and where a mandate was accepted.
type CustomerAcceptance struct {
	Type MandateAcceptanceType `json:"type"`

	// AcceptedAt is a unix timestamp; zero lets the API use the request time.
	AcceptedAt int64             `json:"accepted_at,omitempty"`
	Online     *OnlineAcceptance `json:"online,omitempty"`
}

// OnlineAcceptance identifies the client that accepted an online mandate.
type OnlineAcceptance struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// InferFromClient asks the API to take IP and user agent from the
	// confirming request itself. Only valid for client-side confirmation.
	InferFromClient bool `json:"infer_from_client,omitempty"`
}

// MandateContext is the ambient information a synthesized mandate is built from.
type MandateContext struct {
	AcceptedAt time.Time
	IPAddress  string
	UserAgent  string
}

// MandateContextProvider supplies the mandate context at build time.
type MandateContextProvider func() MandateContext

// DefaultMandateContext timestamps the acceptance and leaves client
// identification to the API.
func DefaultMandateContext() MandateContext {
	return MandateContext{AcceptedAt: time.Now()}
}

// RequiresMandate returns the mandate data to attach to a confirmation.
//
// Explicit mandate data is passed through unchanged. Otherwise a mandate is
// synthesized only for payment method types that need one when saving, and
// only when the effective SFU actually saves. It must be called again
// whenever the effective SFU changes.
func RequiresMandate(paymentMethodType PaymentMethodType, effectiveSFU SetupFutureUsage, explicit *MandateData, provider MandateContextProvider) *MandateData {
	if explicit != nil {
		return explicit
	}

	cfg, ok := LookupPaymentMethod(paymentMethodType)
	if !ok || !cfg.RequiresMandateWhenSaving {
		return nil
	}

	if !effectiveSFU.Saves() {
		return nil
	}

	if provider == nil {
		provider = DefaultMandateContext
	}
	mc := provider()

	online := &OnlineAcceptance{
		IPAddress: mc.IPAddress,
		UserAgent: mc.UserAgent,
	}
	if mc.IPAddress == "" && mc.UserAgent == "" {
		online.InferFromClient = true
	}

	var acceptedAt int64
	if !mc.AcceptedAt.IsZero() {
		acceptedAt = mc.AcceptedAt.Unix()
	}

	return &MandateData{
		CustomerAcceptance: CustomerAcceptance{
			Type:       MandateAcceptanceOnline,
			AcceptedAt: acceptedAt,
			Online:     online,
		},
	}
}
