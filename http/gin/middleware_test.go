package gin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mark3labs/paymentsheet-go"
	httpps "github.com/mark3labs/paymentsheet-go/http"
)

func init() {
	// Disable Gin debug mode for cleaner test output
	gin.SetMode(gin.TestMode)
}

const validBody = `{"paymentMethodId":"pm_1","mode":"payment","amount":100,"currency":"usd"}`

func newHandler(creator httpps.IntentCreatorFunc) *httpps.Handler {
	return httpps.NewHandler(creator, httpps.WithHandlerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func succeeding(ctx context.Context, req *httpps.CreateIntentRequest, mode paymentsheet.Mode) (*httpps.CreateIntentResponse, error) {
	return &httpps.CreateIntentResponse{ClientSecret: "pi_1_secret_abc", IntentID: "pi_1"}, nil
}

// TestRegister_CreatesIntent tests that a valid request returns the client secret
func TestRegister_CreatesIntent(t *testing.T) {
	r := gin.New()
	Register(r, newHandler(succeeding))

	req := httptest.NewRequest("POST", httpps.IntentsPath, strings.NewReader(validBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp httpps.CreateIntentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ClientSecret != "pi_1_secret_abc" {
		t.Errorf("Expected pi_1_secret_abc, got %q", resp.ClientSecret)
	}
}

// TestRegister_RouterGroupSupport tests registration on a route group
func TestRegister_RouterGroupSupport(t *testing.T) {
	r := gin.New()
	api := r.Group("/api")
	Register(api, newHandler(succeeding))

	req := httptest.NewRequest("POST", "/api"+httpps.IntentsPath, strings.NewReader(validBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

// TestNewIntentHandler_AbortOnFailure tests that later handlers do not run after a failure
func TestNewIntentHandler_AbortOnFailure(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		creator    httpps.IntentCreatorFunc
		wantStatus int
	}{
		{
			name:       "invalid request",
			body:       `{"mode":"payment"}`,
			creator:    succeeding,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "creator failure",
			body: validBody,
			creator: func(ctx context.Context, req *httpps.CreateIntentRequest, mode paymentsheet.Mode) (*httpps.CreateIntentResponse, error) {
				return nil, errors.New("upstream unavailable")
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			r := gin.New()
			r.POST(httpps.IntentsPath, NewIntentHandler(newHandler(tt.creator)), func(c *gin.Context) {
				nextCalled = true
			})

			req := httptest.NewRequest("POST", httpps.IntentsPath, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if nextCalled {
				t.Error("Next handler should not be called after failure")
			}
		})
	}
}

// TestNewIntentHandler_IntentAccessible tests that later handlers can read the created intent
func TestNewIntentHandler_IntentAccessible(t *testing.T) {
	var got *httpps.CreateIntentResponse
	r := gin.New()
	r.POST(httpps.IntentsPath, NewIntentHandler(newHandler(succeeding)), func(c *gin.Context) {
		if v, exists := c.Get("paymentsheet_intent"); exists {
			got, _ = v.(*httpps.CreateIntentResponse)
		}
	})

	req := httptest.NewRequest("POST", httpps.IntentsPath, strings.NewReader(validBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got == nil || got.IntentID != "pi_1" {
		t.Errorf("Expected created intent in context, got %+v", got)
	}
}
