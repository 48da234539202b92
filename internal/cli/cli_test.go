package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/paymentsheet-go"
	httpps "github.com/mark3labs/paymentsheet-go/http"
	"github.com/mark3labs/paymentsheet-go/microdeposit"
)

// fakeAPI answers payments API calls by path and records the API keys it saw.
type fakeAPI struct {
	mu     sync.Mutex
	keys   []string
	paths  []string
	routes map[string]string
}

func newFakeAPI(t *testing.T, routes map[string]string) (*httptest.Server, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{routes: routes}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.keys = append(api.keys, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		api.paths = append(api.paths, r.Method+" "+r.URL.Path)
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"no such route"}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, api
}

func (f *fakeAPI) seen() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...), append([]string(nil), f.paths...)
}

const succeededIntent = `{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","status":"succeeded","amount":1000,"currency":"usd"}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfirm_ExistingPaymentIntent(t *testing.T) {
	server, api := newFakeAPI(t, map[string]string{
		"POST /v1/payment_intents/pi_123/confirm": succeededIntent,
	})

	out, err := execute(t, "confirm",
		"--publishable-key", "pk_test_123",
		"--api-base-url", server.URL,
		"--client-secret", "pi_123_secret_abc",
		"--payment-method", "pm_card_visa",
	)
	require.NoError(t, err)

	var result confirmOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "completed", result.Result)
	assert.Equal(t, "pi_123", result.IntentID)
	assert.Equal(t, "succeeded", result.IntentStatus)
	assert.Empty(t, result.Error)

	_, paths := api.seen()
	assert.Equal(t, []string{"POST /v1/payment_intents/pi_123/confirm"}, paths)
}

func TestConfirm_DeclinedCardFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"generic_decline","message":"Your card was declined."}}`))
	}))
	t.Cleanup(server.Close)

	out, err := execute(t, "confirm",
		"--publishable-key", "pk_test_123",
		"--api-base-url", server.URL,
		"--client-secret", "pi_123_secret_abc",
		"--payment-method", "pm_card_chargeDeclined",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation failed")

	var result confirmOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "failed", result.Result)
	assert.NotEmpty(t, result.Error)
}

func TestConfirm_InvalidInvocations(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing publishable key",
			args:    []string{"confirm", "--client-secret", "pi_123_secret_abc", "--payment-method", "pm_1"},
			wantErr: "publishable key is required",
		},
		{
			name:    "no payment method",
			args:    []string{"confirm", "--publishable-key", "pk_test_123", "--client-secret", "pi_123_secret_abc"},
			wantErr: "exactly one of",
		},
		{
			name:    "no intent",
			args:    []string{"confirm", "--publishable-key", "pk_test_123", "--payment-method", "pm_1"},
			wantErr: "--client-secret or --backend-url",
		},
		{
			name:    "malformed client secret",
			args:    []string{"confirm", "--publishable-key", "pk_test_123", "--client-secret", "cs_123", "--payment-method", "pm_1"},
			wantErr: "client secret",
		},
		{
			name: "unknown deferred mode",
			args: []string{"confirm", "--publishable-key", "pk_test_123", "--backend-url", "http://127.0.0.1:1",
				"--mode", "subscription", "--payment-method", "pm_1"},
			wantErr: "unknown mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAYMENTSHEET_PUBLISHABLE_KEY", "")
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfirm_DeferredThroughMerchantBackend(t *testing.T) {
	requests := make(chan httpps.CreateIntentRequest, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req httpps.CreateIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		requests <- req
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clientSecret":"pi_123_secret_abc","intentId":"pi_123","status":"requires_confirmation"}`))
	}))
	t.Cleanup(backend.Close)

	server, api := newFakeAPI(t, map[string]string{
		"GET /v1/payment_intents/pi_123": `{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc",` +
			`"status":"requires_confirmation","amount":1000,"currency":"usd"}`,
		"POST /v1/payment_intents/pi_123/confirm": succeededIntent,
	})

	out, err := execute(t, "confirm",
		"--publishable-key", "pk_test_123",
		"--api-base-url", server.URL,
		"--backend-url", backend.URL,
		"--mode", "payment",
		"--amount", "1000",
		"--currency", "usd",
		"--payment-method", "pm_card_visa",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"result": "completed"`)

	created := <-requests
	assert.Equal(t, "pm_card_visa", created.PaymentMethodID)
	assert.Equal(t, int64(1000), created.Amount)

	_, paths := api.seen()
	assert.Contains(t, paths, "POST /v1/payment_intents/pi_123/confirm")
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "paymentsheet.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("publishable-key: pk_from_file\n"), 0o600))

	tests := []struct {
		name    string
		env     string
		args    []string
		wantKey string
	}{
		{
			name:    "environment",
			env:     "pk_from_env",
			wantKey: "pk_from_env",
		},
		{
			name:    "flag wins over environment",
			env:     "pk_from_env",
			args:    []string{"--publishable-key", "pk_from_flag"},
			wantKey: "pk_from_flag",
		},
		{
			name:    "config file",
			args:    []string{"--config", configFile},
			wantKey: "pk_from_file",
		},
		{
			name:    "environment wins over config file",
			env:     "pk_from_env",
			args:    []string{"--config", configFile},
			wantKey: "pk_from_env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAYMENTSHEET_PUBLISHABLE_KEY", tt.env)
			if tt.env == "" {
				require.NoError(t, os.Unsetenv("PAYMENTSHEET_PUBLISHABLE_KEY"))
			}
			server, api := newFakeAPI(t, map[string]string{
				"POST /v1/payment_intents/pi_123/confirm": succeededIntent,
			})

			args := append([]string{"confirm",
				"--api-base-url", server.URL,
				"--client-secret", "pi_123_secret_abc",
				"--payment-method", "pm_card_visa",
			}, tt.args...)
			_, err := execute(t, args...)
			require.NoError(t, err)

			keys, _ := api.seen()
			require.Len(t, keys, 1)
			assert.Equal(t, tt.wantKey, keys[0])
		})
	}
}

func TestPaymentOptionFromFlags(t *testing.T) {
	billing := &paymentsheet.BillingDetails{Name: "Jenny Rosen"}

	tests := []struct {
		name          string
		paymentMethod string
		pmType        string
		cardToken     string
		bankAccount   string
		billing       *paymentsheet.BillingDetails
		save          bool
		want          paymentsheet.PaymentOption
		wantErr       string
	}{
		{
			name:          "saved payment method",
			paymentMethod: "pm_1",
			pmType:        "card",
			want: &paymentsheet.SavedOption{
				PaymentMethod: paymentsheet.PaymentMethodReference{ID: "pm_1", Type: paymentsheet.PaymentMethodTypeCard},
			},
		},
		{
			name:      "card token",
			cardToken: "tok_visa",
			billing:   &paymentsheet.BillingDetails{},
			save:      true,
			want: &paymentsheet.NewOption{
				Params: paymentsheet.PaymentMethodParams{
					Type: paymentsheet.PaymentMethodTypeCard,
					Card: &paymentsheet.CardParams{Token: "tok_visa"},
				},
				ShouldSave: true,
			},
		},
		{
			name:        "bank account",
			bankAccount: "110000000:000123456789",
			billing:     billing,
			want: &paymentsheet.NewOption{
				Params: paymentsheet.PaymentMethodParams{
					Type:           paymentsheet.PaymentMethodTypeUSBankAccount,
					BillingDetails: billing,
					USBankAccount: &paymentsheet.USBankAccountParams{
						AccountHolderType: "individual",
						RoutingNumber:     "110000000",
						AccountNumber:     "000123456789",
					},
				},
				PaymentMethodOptions: &paymentsheet.PaymentMethodOptions{
					USBankAccount: &paymentsheet.USBankAccountOptions{VerificationMethod: "microdeposits"},
				},
			},
		},
		{
			name:    "nothing given",
			wantErr: "exactly one of",
		},
		{
			name:          "two sources",
			paymentMethod: "pm_1",
			cardToken:     "tok_visa",
			wantErr:       "exactly one of",
		},
		{
			name:          "unknown saved type",
			paymentMethod: "pm_1",
			pmType:        "carrier_pigeon",
			wantErr:       "carrier_pigeon",
		},
		{
			name:        "malformed bank account",
			bankAccount: "110000000",
			billing:     billing,
			wantErr:     "ROUTING:ACCOUNT",
		},
		{
			name:        "bank account without name",
			bankAccount: "110000000:000123456789",
			wantErr:     "--name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paymentOptionFromFlags(tt.paymentMethod, tt.pmType, tt.cardToken, tt.bankAccount, tt.billing, tt.save)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmounts(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{in: "32,45", want: []int64{32, 45}},
		{in: " 1 , 0 ", want: []int64{1, 0}},
		{in: "32", wantErr: true},
		{in: "32,45,1", wantErr: true},
		{in: "32,abc", wantErr: true},
		{in: "100,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmounts(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, microdeposit.ErrInvalidAmounts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyMicrodeposits(t *testing.T) {
	arrived := time.Now().Add(-time.Hour).Unix()
	server, api := newFakeAPI(t, map[string]string{
		"GET /v1/payment_intents/pi_123": fmt.Sprintf(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc",`+
			`"status":"requires_action","amount":1000,"currency":"usd","next_action":{"type":"verify_with_microdeposits",`+
			`"verify_with_microdeposits":{"arrival_date":%d,"hosted_verification_url":"https://payments.example/verify","microdeposit_type":"amounts"}}}`, arrived),
		"POST /v1/payment_intents/pi_123/verify_microdeposits": `{"id":"pi_123","object":"payment_intent","status":"processing","amount":1000,"currency":"usd"}`,
	})

	out, err := execute(t, "verify-microdeposits",
		"--publishable-key", "pk_test_123",
		"--api-base-url", server.URL,
		"--client-secret", "pi_123_secret_abc",
		"--amounts", "32,45",
	)
	require.NoError(t, err)

	var session microdeposit.Session
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Equal(t, microdeposit.StatusCompleted, session.Status)
	assert.Equal(t, "pi_123", session.IntentID)

	_, paths := api.seen()
	assert.Equal(t, []string{
		"GET /v1/payment_intents/pi_123",
		"POST /v1/payment_intents/pi_123/verify_microdeposits",
	}, paths)
}

func TestVerifyMicrodeposits_InvalidInvocations(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing client secret",
			args:    []string{"--amounts", "32,45"},
			wantErr: "--client-secret is required",
		},
		{
			name:    "neither amounts nor code",
			args:    []string{"--client-secret", "pi_123_secret_abc"},
			wantErr: "exactly one of",
		},
		{
			name:    "both amounts and code",
			args:    []string{"--client-secret", "pi_123_secret_abc", "--amounts", "32,45", "--descriptor-code", "SM11AA"},
			wantErr: "exactly one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"verify-microdeposits", "--publishable-key", "pk_test_123"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := httpps.NewHandler(httpps.IntentCreatorFunc(nil), httpps.WithHandlerLogger(logger))

	for _, kind := range []string{routerStd, routerChi, routerGin} {
		t.Run(kind, func(t *testing.T) {
			router, err := buildRouter(kind, handler, logger)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, httpps.IntentsPath, strings.NewReader(`{"mode":"payment"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body httpps.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "validation_error", body.Code)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := buildRouter("echo", handler, logger)
		assert.ErrorContains(t, err, "unknown router")
	})
}
