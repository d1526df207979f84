package webhook

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformed marks a callback body the provider cannot fix by retrying:
// unparsable JSON, or an external reference that is not an order reference.
var ErrMalformed = errors.New("malformed payment notification")

const orderRefPrefix = "order_"

// Notification is the validated result of parsing a provider callback.
type Notification struct {
	OrderID   string
	InvoiceID string
}

// invoiceBody mirrors the provider's invoice event. The invoice may arrive
// at the top level or nested under "data", and field naming varies between
// snake_case and camelCase across event versions.
type invoiceBody struct {
	Data          *invoiceBody `json:"data"`
	ID            string       `json:"id"`
	InvoiceID     string       `json:"invoice_id"`
	ExternalID    string       `json:"external_id"`
	ExternalIDAlt string       `json:"externalId"`
	Status        string       `json:"status"`
}

// Parse extracts the order reference and provider invoice id from a raw
// callback body. The invoice id may be absent; the order reference must be
// present and shaped "order_<id>".
func Parse(raw []byte) (Notification, error) {
	if len(raw) == 0 {
		return Notification{}, ErrMalformed
	}
	var body invoiceBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Notification{}, ErrMalformed
	}

	invoice := &body
	if body.Data != nil {
		invoice = body.Data
	}

	external := invoice.ExternalID
	if external == "" {
		external = invoice.ExternalIDAlt
	}
	orderID, ok := strings.CutPrefix(external, orderRefPrefix)
	if !ok || orderID == "" {
		return Notification{}, ErrMalformed
	}

	invoiceID := invoice.ID
	if invoiceID == "" {
		invoiceID = invoice.InvoiceID
	}

	return Notification{OrderID: orderID, InvoiceID: invoiceID}, nil
}
