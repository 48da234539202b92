package paymentsheet

import (
	"errors"
	"testing"
)

func TestIntentKindFromClientSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		want    IntentKind
		wantID  string
		wantErr bool
	}{
		{name: "payment intent", secret: "pi_3Nabc_secret_xyz", want: IntentKindPayment, wantID: "pi_3Nabc"},
		{name: "setup intent", secret: "seti_1Nabc_secret_xyz", want: IntentKindSetup, wantID: "seti_1Nabc"},
		{name: "missing secret marker", secret: "pi_3Nabc", wantErr: true},
		{name: "unknown prefix", secret: "cs_123_secret_abc", wantErr: true},
		{name: "empty", secret: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntentKindFromClientSecret(tt.secret)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidClientSecret) {
					t.Errorf("expected ErrInvalidClientSecret, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("kind = %s, want %s", got, tt.want)
			}
			id, err := IntentIDFromClientSecret(tt.secret)
			if err != nil || id != tt.wantID {
				t.Errorf("IntentIDFromClientSecret() = %q, %v; want %q", id, err, tt.wantID)
			}
		})
	}
}

func TestIntentStatus(t *testing.T) {
	tests := []struct {
		status            IntentStatus
		successful        bool
		needsConfirmation bool
	}{
		{IntentStatusSucceeded, true, false},
		{IntentStatusProcessing, true, false},
		{IntentStatusRequiresCapture, true, false},
		{IntentStatusRequiresAction, false, false},
		{IntentStatusRequiresConfirmation, false, true},
		{IntentStatusRequiresPaymentMethod, false, true},
		{IntentStatusCanceled, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsSuccessful(); got != tt.successful {
				t.Errorf("IsSuccessful() = %v, want %v", got, tt.successful)
			}
			if got := tt.status.NeedsConfirmation(); got != tt.needsConfirmation {
				t.Errorf("NeedsConfirmation() = %v, want %v", got, tt.needsConfirmation)
			}
		})
	}
}

func TestSetupFutureUsage(t *testing.T) {
	tests := []struct {
		value SetupFutureUsage
		isSet bool
		saves bool
		valid bool
	}{
		{"", false, false, true},
		{SetupFutureUsageNone, true, false, true},
		{SetupFutureUsageOnSession, true, true, true},
		{SetupFutureUsageOffSession, true, true, true},
		{SetupFutureUsage("sometimes"), true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			if tt.value.IsSet() != tt.isSet {
				t.Errorf("IsSet() = %v", tt.value.IsSet())
			}
			if tt.value.Saves() != tt.saves {
				t.Errorf("Saves() = %v", tt.value.Saves())
			}
			if tt.value.Valid() != tt.valid {
				t.Errorf("Valid() = %v", tt.value.Valid())
			}
		})
	}
}

func TestConfirmTypeFor(t *testing.T) {
	pm := PaymentMethodReference{ID: "pm_123", Type: PaymentMethodTypeCard}

	tests := []struct {
		name     string
		option   PaymentOption
		wantType PaymentMethodType
		wantErr  error
		check    func(t *testing.T, ct ConfirmPaymentMethodType)
	}{
		{
			name:     "saved",
			option:   &SavedOption{PaymentMethod: pm},
			wantType: PaymentMethodTypeCard,
			check: func(t *testing.T, ct ConfirmPaymentMethodType) {
				if s, ok := ct.(*SavedConfirmType); !ok || s.PaymentMethod.ID != "pm_123" {
					t.Errorf("got %#v", ct)
				}
			},
		},
		{
			name:     "new keeps checkbox state",
			option:   &NewOption{Params: PaymentMethodParams{Type: PaymentMethodTypeSEPADebit}, ShouldSave: true},
			wantType: PaymentMethodTypeSEPADebit,
			check: func(t *testing.T, ct ConfirmPaymentMethodType) {
				if n, ok := ct.(*NewConfirmType); !ok || !n.ShouldSave {
					t.Errorf("got %#v", ct)
				}
			},
		},
		{
			name:     "wallet confirms as saved",
			option:   &WalletOption{Wallet: WalletTypeApplePay, PaymentMethod: pm},
			wantType: PaymentMethodTypeCard,
			check: func(t *testing.T, ct ConfirmPaymentMethodType) {
				if _, ok := ct.(*SavedConfirmType); !ok {
					t.Errorf("got %T, want *SavedConfirmType", ct)
				}
			},
		},
		{
			name:    "external",
			option:  &ExternalOption{Type: "external_venmo"},
			wantErr: ErrExternalPaymentMethod,
		},
		{
			name:    "nil",
			option:  nil,
			wantErr: ErrInvalidPaymentOption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := ConfirmTypeFor(tt.option)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ct.PaymentMethodType() != tt.wantType {
				t.Errorf("PaymentMethodType() = %s, want %s", ct.PaymentMethodType(), tt.wantType)
			}
			tt.check(t, ct)
		})
	}
}

func TestParsePaymentMethodType(t *testing.T) {
	for _, known := range []string{"card", "us_bank_account", "sepa_debit", "paypal", "klarna"} {
		if _, err := ParsePaymentMethodType(known); err != nil {
			t.Errorf("ParsePaymentMethodType(%q) error = %v", known, err)
		}
	}

	_, err := ParsePaymentMethodType("carrier_pigeon")
	if !errors.Is(err, ErrUnknownPaymentMethodType) {
		t.Errorf("expected ErrUnknownPaymentMethodType, got %v", err)
	}
}

func TestLookupPaymentMethod(t *testing.T) {
	card, ok := LookupPaymentMethod(PaymentMethodTypeCard)
	if !ok {
		t.Fatal("card should be known")
	}
	if card.RequiresMandateWhenSaving {
		t.Error("card should not require a mandate")
	}

	paypal, ok := LookupPaymentMethod(PaymentMethodTypePayPal)
	if !ok || !paypal.RequiresMandateWhenSaving || !paypal.RequiresRedirect {
		t.Errorf("paypal config = %+v", paypal)
	}
}
