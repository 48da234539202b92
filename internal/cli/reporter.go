package cli

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mark3labs/paymentsheet-go"
)

// reporter sends failures to Sentry. Without a DSN every method is a no-op.
type reporter struct {
	enabled bool
}

func newReporter(dsn string, debug bool) (*reporter, error) {
	if dsn == "" {
		return &reporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Debug:   debug,
		Release: "paymentsheet@" + version,
	}); err != nil {
		return nil, err
	}
	return &reporter{enabled: true}, nil
}

// CaptureError reports err with tags.
func (r *reporter) CaptureError(err error, tags map[string]string) {
	if !r.enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTags(tags)

		var paymentErr *paymentsheet.PaymentError
		if errors.As(err, &paymentErr) {
			scope.SetTag("error_code", string(paymentErr.Code))
		}
		var apiErr *paymentsheet.APIError
		if errors.As(err, &apiErr) {
			scope.SetTag("api_code", apiErr.Code)
			scope.SetExtra("request_id", apiErr.RequestID)
		}

		sentry.CaptureException(err)
	})
}

// CaptureResult reports a failed confirmation. Completed and canceled
// confirmations are not reported.
func (r *reporter) CaptureResult(result paymentsheet.Result, tags map[string]string) {
	if result.Status != paymentsheet.ResultFailed {
		return
	}
	if result.Intent != nil {
		tags["intent"] = result.Intent.ID
		tags["intent_status"] = string(result.Intent.Status)
	}
	r.CaptureError(result.Err, tags)
}

// Flush waits for queued events to be sent.
func (r *reporter) Flush() {
	if r.enabled {
		sentry.Flush(2 * time.Second)
	}
}
