package paymentsheet

import "context"

// ResultStatus is the terminal outcome of a confirmation.
type ResultStatus int

const (
	ResultCompleted ResultStatus = iota + 1
	ResultCanceled
	ResultFailed
)

func (s ResultStatus) String() string {
	switch s {
	case ResultCompleted:
		return "completed"
	case ResultCanceled:
		return "canceled"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what a confirmation ends with. Err is set only for ResultFailed.
type Result struct {
	Status ResultStatus
	Err    error

	// Intent is the last intent status seen, when there was one.
	Intent *IntentStatusResponse
}

// Completed returns a successful result.
func Completed(intent *IntentStatusResponse) Result {
	return Result{Status: ResultCompleted, Intent: intent}
}

// Canceled returns a canceled result.
func Canceled(intent *IntentStatusResponse) Result {
	return Result{Status: ResultCanceled, Intent: intent}
}

// Failed returns a failed result carrying err.
func Failed(err error, intent *IntentStatusResponse) Result {
	return Result{Status: ResultFailed, Err: err, Intent: intent}
}

// ExternalPaymentMethodConfirmHandler confirms payment methods the payments
// API does not process. Its result is used verbatim as the terminal result.
type ExternalPaymentMethodConfirmHandler func(ctx context.Context, paymentMethodType string, billingDetails *BillingDetails) Result
