package paymentsheet

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestParamsBuilder_NewWithSaveChecked(t *testing.T) {
	builder := NewParamsBuilder(&Configuration{}, nil)
	params, err := builder.Build(BuildRequest{
		ConfirmType: &NewConfirmType{
			Params:     PaymentMethodParams{Type: PaymentMethodTypeCard, Card: &CardParams{Token: "tok_visa"}},
			ShouldSave: true,
		},
		IntentConfiguration: &IntentConfiguration{Mode: &PaymentMode{Amount: 1000, Currency: "usd"}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if params.SetupFutureUsage != SetupFutureUsageOffSession {
		t.Errorf("SetupFutureUsage = %q, want off_session", params.SetupFutureUsage)
	}
}

func TestParamsBuilder_NoSFUAnywhereOmitsField(t *testing.T) {
	builder := NewParamsBuilder(&Configuration{}, nil)
	params, err := builder.Build(BuildRequest{
		ConfirmType: &NewConfirmType{
			Params: PaymentMethodParams{Type: PaymentMethodTypeCard, Card: &CardParams{Token: "tok_visa"}},
		},
		IntentConfiguration: &IntentConfiguration{Mode: &PaymentMode{Amount: 1000, Currency: "usd"}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if params.SetupFutureUsage.IsSet() {
		t.Errorf("SetupFutureUsage = %q, want absent", params.SetupFutureUsage)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "setup_future_usage") {
		t.Errorf("serialized params contain setup_future_usage: %s", raw)
	}
}

func TestParamsBuilder_NoneIsSerialized(t *testing.T) {
	config := &IntentConfiguration{Mode: &PaymentMode{
		Amount:           1000,
		Currency:         "usd",
		SetupFutureUsage: SetupFutureUsageOffSession,
		PaymentMethodOptions: &PaymentMethodOptionsConfig{
			SetupFutureUsageValues: map[PaymentMethodType]SetupFutureUsage{PaymentMethodTypeCard: SetupFutureUsageNone},
		},
	}}

	params, err := NewParamsBuilder(nil, nil).Build(BuildRequest{
		ConfirmType:         &SavedConfirmType{PaymentMethod: PaymentMethodReference{ID: "pm_card", Type: PaymentMethodTypeCard}},
		IntentConfiguration: config,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	raw, _ := json.Marshal(params)
	if !strings.Contains(string(raw), `"setup_future_usage":"none"`) {
		t.Errorf("expected explicit none in %s", raw)
	}
}

func TestParamsBuilder_Exclusivity(t *testing.T) {
	confirmTypes := []ConfirmPaymentMethodType{
		&SavedConfirmType{PaymentMethod: PaymentMethodReference{ID: "pm_1", Type: PaymentMethodTypeCard}},
		&SavedConfirmType{PaymentMethod: PaymentMethodReference{ID: "pm_2", Type: PaymentMethodTypeSEPADebit}},
		&NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}},
		&NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeUSBankAccount}, ShouldSave: true},
	}
	configs := []*IntentConfiguration{
		nil,
		{Mode: &PaymentMode{Amount: 100, Currency: "usd", SetupFutureUsage: SetupFutureUsageOnSession}},
		{Mode: &SetupMode{SetupFutureUsage: SetupFutureUsageOffSession}},
	}

	builder := NewParamsBuilder(&Configuration{ReturnURL: "myapp://return"}, nil)
	for _, ct := range confirmTypes {
		for _, cfg := range configs {
			params, err := builder.Build(BuildRequest{ConfirmType: ct, IntentConfiguration: cfg})
			if err != nil {
				t.Fatalf("Build(%T) error = %v", ct, err)
			}
			if err := params.Validate(); err != nil {
				t.Errorf("Build(%T) produced invalid params: %v", ct, err)
			}
		}
	}
}

func TestParamsBuilder(t *testing.T) {
	shipping := &ShippingDetails{Name: "Jane Doe", Address: Address{Line1: "1 Main St", Country: "US"}}
	session := &ElementsSession{ConfigID: "cfg_123", AutomaticPaymentMethods: true}

	tests := []struct {
		name    string
		config  *Configuration
		req     BuildRequest
		wantErr error
		check   func(t *testing.T, p *ConfirmationTokenParams)
	}{
		{
			name:   "saved copies options and attribution",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType: &SavedConfirmType{
					PaymentMethod:             PaymentMethodReference{ID: "pm_123", Type: PaymentMethodTypeCard},
					PaymentMethodOptions:      &PaymentMethodOptions{Card: &CardOptions{CVCToken: "cvctok_1"}},
					ClientAttributionMetadata: &ClientAttributionMetadata{ElementsSessionConfigID: "explicit"},
				},
				ElementsSession: session,
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.PaymentMethod != "pm_123" || p.PaymentMethodData != nil {
					t.Errorf("PaymentMethod = %q, PaymentMethodData = %v", p.PaymentMethod, p.PaymentMethodData)
				}
				if p.PaymentMethodOptions == nil || p.PaymentMethodOptions.Card.CVCToken != "cvctok_1" {
					t.Errorf("PaymentMethodOptions = %+v", p.PaymentMethodOptions)
				}
				if p.ClientAttributionMetadata.ElementsSessionConfigID != "explicit" {
					t.Errorf("attribution was overwritten: %+v", p.ClientAttributionMetadata)
				}
			},
		},
		{
			name:   "attribution derived from session",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType:     &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}},
				ElementsSession: session,
				Deferred:        true,
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				cam := p.ClientAttributionMetadata
				if cam == nil {
					t.Fatal("expected attribution metadata")
				}
				if cam.ElementsSessionConfigID != "cfg_123" || cam.PaymentIntentCreationFlow != "deferred" || cam.PaymentMethodSelectionFlow != "automatic" {
					t.Errorf("attribution = %+v", cam)
				}
			},
		},
		{
			name:   "shipping only when configured",
			config: &Configuration{Shipping: shipping, ReturnURL: "myapp://return"},
			req: BuildRequest{
				ConfirmType: &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}},
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.Shipping == nil || p.Shipping.Name != "Jane Doe" {
					t.Errorf("Shipping = %+v", p.Shipping)
				}
				if p.Shipping == shipping {
					t.Error("shipping should be copied")
				}
				if p.ReturnURL != "myapp://return" {
					t.Errorf("ReturnURL = %q", p.ReturnURL)
				}
			},
		},
		{
			name:   "no shipping when not configured",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType: &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}},
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.Shipping != nil {
					t.Errorf("Shipping = %+v, want nil", p.Shipping)
				}
			},
		},
		{
			name:   "set as default when allowed and requested",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType:                     &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}, ShouldSetAsDefaultPaymentMethod: boolPtr(true)},
				AllowsSetAsDefaultPaymentMethod: true,
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.SetAsDefaultPaymentMethod == nil || !*p.SetAsDefaultPaymentMethod {
					t.Errorf("SetAsDefaultPaymentMethod = %v", p.SetAsDefaultPaymentMethod)
				}
			},
		},
		{
			name:   "set as default false is omitted",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType:                     &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}, ShouldSetAsDefaultPaymentMethod: boolPtr(false)},
				AllowsSetAsDefaultPaymentMethod: true,
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.SetAsDefaultPaymentMethod != nil {
					t.Errorf("SetAsDefaultPaymentMethod = %v, want nil", *p.SetAsDefaultPaymentMethod)
				}
			},
		},
		{
			name:   "set as default not allowed is omitted",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType: &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeCard}, ShouldSetAsDefaultPaymentMethod: boolPtr(true)},
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.SetAsDefaultPaymentMethod != nil {
					t.Error("SetAsDefaultPaymentMethod should be omitted when not allowed")
				}
			},
		},
		{
			name:   "radar options copied",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType:  &SavedConfirmType{PaymentMethod: PaymentMethodReference{ID: "pm_1", Type: PaymentMethodTypeCard}},
				RadarOptions: &RadarOptions{PassiveCaptchaToken: "hc_token"},
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.RadarOptions == nil || p.RadarOptions.PassiveCaptchaToken != "hc_token" {
					t.Errorf("RadarOptions = %+v", p.RadarOptions)
				}
			},
		},
		{
			name:   "empty radar options omitted",
			config: &Configuration{},
			req: BuildRequest{
				ConfirmType:  &SavedConfirmType{PaymentMethod: PaymentMethodReference{ID: "pm_1", Type: PaymentMethodTypeCard}},
				RadarOptions: &RadarOptions{},
			},
			check: func(t *testing.T, p *ConfirmationTokenParams) {
				if p.RadarOptions != nil {
					t.Errorf("RadarOptions = %+v, want nil", p.RadarOptions)
				}
			},
		},
		{
			name:    "saved without id",
			config:  &Configuration{},
			req:     BuildRequest{ConfirmType: &SavedConfirmType{PaymentMethod: PaymentMethodReference{Type: PaymentMethodTypeCard}}},
			wantErr: ErrInvalidParams,
		},
		{
			name:    "nil confirm type",
			config:  &Configuration{},
			req:     BuildRequest{},
			wantErr: ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := NewParamsBuilder(tt.config, nil).Build(tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			tt.check(t, params)
		})
	}
}

func TestParamsBuilder_MandateRecomputedPerBuild(t *testing.T) {
	calls := 0
	builder := NewParamsBuilder(&Configuration{}, func() MandateContext {
		calls++
		return MandateContext{}
	})
	ct := &NewConfirmType{Params: PaymentMethodParams{Type: PaymentMethodTypeSEPADebit}}

	withSave := &IntentConfiguration{Mode: &PaymentMode{Amount: 100, Currency: "eur", SetupFutureUsage: SetupFutureUsageOffSession}}
	withoutSave := &IntentConfiguration{Mode: &PaymentMode{Amount: 100, Currency: "eur"}}

	p1, _ := builder.Build(BuildRequest{ConfirmType: ct, IntentConfiguration: withSave})
	p2, _ := builder.Build(BuildRequest{ConfirmType: ct, IntentConfiguration: withoutSave})

	if p1.MandateData == nil {
		t.Error("expected mandate when saving")
	}
	if p2.MandateData != nil {
		t.Error("expected no mandate when not saving")
	}
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestConfirmationTokenParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  ConfirmationTokenParams
		wantErr bool
	}{
		{"reference only", ConfirmationTokenParams{PaymentMethod: "pm_1"}, false},
		{"data only", ConfirmationTokenParams{PaymentMethodData: &PaymentMethodParams{Type: PaymentMethodTypeCard}}, false},
		{"both", ConfirmationTokenParams{PaymentMethod: "pm_1", PaymentMethodData: &PaymentMethodParams{Type: PaymentMethodTypeCard}}, true},
		{"neither", ConfirmationTokenParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParamsBuilder_CreatedPaymentMethodIsReferenced(t *testing.T) {
	builder := NewParamsBuilder(&Configuration{}, nil)
	params, err := builder.Build(BuildRequest{
		ConfirmType: &NewConfirmType{
			Params:     PaymentMethodParams{Type: PaymentMethodTypeCard, Card: &CardParams{Token: "tok_visa"}},
			ShouldSave: true,
		},
		IntentConfiguration:  &IntentConfiguration{Mode: &PaymentMode{Amount: 1000, Currency: "usd"}},
		Deferred:             true,
		CreatedPaymentMethod: &PaymentMethodReference{ID: "pm_created", Type: PaymentMethodTypeCard},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if params.PaymentMethod != "pm_created" {
		t.Errorf("PaymentMethod = %q, want pm_created", params.PaymentMethod)
	}
	if params.PaymentMethodData != nil {
		t.Error("PaymentMethodData should be omitted once a payment method was created")
	}
	if params.SetupFutureUsage != SetupFutureUsageOffSession {
		t.Errorf("SetupFutureUsage = %q, want off_session from the checkbox", params.SetupFutureUsage)
	}
}
