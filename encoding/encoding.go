// Package encoding converts confirmation payloads to the wire formats of the
// payments API (bracketed form encoding) and the merchant backend (JSON).
package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/stripe/stripe-go/v74/form"

	"github.com/mark3labs/paymentsheet-go"
)

// EncodeConfirmParams converts params into the form body of a confirm call.
//
// Field names follow the JSON tags of the params types, nested with brackets
// ("payment_method_data[card][token]"). Absent fields are omitted. Setup
// intents do not accept setup_future_usage, so it is dropped for them.
func EncodeConfirmParams(kind paymentsheet.IntentKind, params *paymentsheet.ConfirmationTokenParams) (*form.Values, error) {
	if params == nil {
		return nil, fmt.Errorf("params cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tree, err := toTree(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode confirm params: %w", err)
	}
	if kind == paymentsheet.IntentKindSetup {
		delete(tree, "setup_future_usage")
	}

	values := &form.Values{}
	appendTree(values, "", tree)
	return values, nil
}

// EncodePaymentMethodParams converts inline payment method details into the
// form body of a payment method creation call.
func EncodePaymentMethodParams(params *paymentsheet.PaymentMethodParams) (*form.Values, error) {
	if params == nil {
		return nil, fmt.Errorf("payment method params cannot be nil")
	}
	if params.Type == "" {
		return nil, fmt.Errorf("payment method type cannot be empty")
	}

	tree, err := toTree(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment method params: %w", err)
	}

	values := &form.Values{}
	appendTree(values, "", tree)
	return values, nil
}

// EncodeJSON marshals a merchant backend payload.
func EncodeJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// DecodeJSON unmarshals a merchant backend payload into v.
func DecodeJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// toTree round-trips v through JSON so the JSON tags and omitempty rules
// decide which fields reach the wire.
func toTree(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree map[string]interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func appendTree(values *form.Values, prefix string, node interface{}) {
	switch n := node.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendTree(values, childKey(prefix, k), n[k])
		}
	case []interface{}:
		for i, item := range n {
			appendTree(values, childKey(prefix, strconv.Itoa(i)), item)
		}
	case string:
		values.Add(prefix, n)
	case json.Number:
		values.Add(prefix, n.String())
	case bool:
		values.Add(prefix, strconv.FormatBool(n))
	case nil:
		// null fields carry no value
	}
}

func childKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "[" + key + "]"
}
