package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v74"

	"github.com/mark3labs/paymentsheet-go"
)

type clientInfoKey struct{}

type clientInfo struct {
	ipAddress string
	userAgent string
}

// WithClientInfo records the customer's IP address and user agent. Mandates
// synthesized for server-side confirmation are accepted on their behalf.
func WithClientInfo(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{ipAddress: ipAddress, userAgent: userAgent})
}

// RemoteIP returns the host part of r.RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// mandateContext builds the mandate context from the client info in ctx.
func mandateContext(ctx context.Context, now func() time.Time) paymentsheet.MandateContextProvider {
	return func() paymentsheet.MandateContext {
		info, _ := ctx.Value(clientInfoKey{}).(clientInfo)
		return paymentsheet.MandateContext{
			AcceptedAt: now(),
			IPAddress:  info.ipAddress,
			UserAgent:  info.userAgent,
		}
	}
}

func paymentIntentMandate(m *paymentsheet.MandateData) *stripe.PaymentIntentMandateDataParams {
	acceptance := &stripe.PaymentIntentMandateDataCustomerAcceptanceParams{
		Type: stripe.String(string(m.CustomerAcceptance.Type)),
	}
	if m.CustomerAcceptance.AcceptedAt != 0 {
		acceptance.AcceptedAt = stripe.Int64(m.CustomerAcceptance.AcceptedAt)
	}
	if online := m.CustomerAcceptance.Online; online != nil {
		acceptance.Online = &stripe.PaymentIntentMandateDataCustomerAcceptanceOnlineParams{
			IPAddress: optionalString(online.IPAddress),
			UserAgent: optionalString(online.UserAgent),
		}
	}
	return &stripe.PaymentIntentMandateDataParams{CustomerAcceptance: acceptance}
}

func setupIntentMandate(m *paymentsheet.MandateData) *stripe.SetupIntentMandateDataParams {
	acceptance := &stripe.SetupIntentMandateDataCustomerAcceptanceParams{
		Type: stripe.MandateCustomerAcceptanceType(m.CustomerAcceptance.Type),
	}
	if m.CustomerAcceptance.AcceptedAt != 0 {
		acceptance.AcceptedAt = stripe.Int64(m.CustomerAcceptance.AcceptedAt)
	}
	if online := m.CustomerAcceptance.Online; online != nil {
		acceptance.Online = &stripe.SetupIntentMandateDataCustomerAcceptanceOnlineParams{
			IPAddress: optionalString(online.IPAddress),
			UserAgent: optionalString(online.UserAgent),
		}
	}
	return &stripe.SetupIntentMandateDataParams{CustomerAcceptance: acceptance}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}
