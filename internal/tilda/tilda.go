// Package tilda turns Tilda "order paid" webhooks into paid orders.
//
// Tilda posts either JSON or form data, and depending on the form settings the
// payment block arrives as a nested object, a JSON string, or flattened
// "payment.*" keys. Normalize accepts all of them.
package tilda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net/url"
	"sort"
	"strings"

	"ticket-gate/internal/status"
	"ticket-gate/models"

	"github.com/shopspring/decimal"
)

type Payload map[string]any

// Decode parses a webhook body. JSON and form bodies are chosen by content
// type; anything else is tried as JSON first, then as a form.
func Decode(body []byte, contentType string) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Payload{}, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/json":
		return decodeJSON(body)
	case "application/x-www-form-urlencoded":
		return decodeForm(body)
	}

	if p, err := decodeJSON(body); err == nil {
		return p, nil
	}
	return decodeForm(body)
}

func decodeJSON(body []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding json body: %w", status.ErrMalformed)
	}
	if p == nil {
		return nil, fmt.Errorf("json body is not an object: %w", status.ErrMalformed)
	}
	return p, nil
}

func decodeForm(body []byte) (Payload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decoding form body: %w", status.ErrMalformed)
	}

	p := make(Payload, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p, nil
}

// IsTestProbe reports whether Tilda is checking the webhook URL.
func (p Payload) IsTestProbe() bool {
	return text(p["test"]) == "test"
}

// Payment returns the payment block whether it was sent as an object or as a
// JSON string.
func (p Payload) Payment() Payload {
	switch v := p["payment"].(type) {
	case Payload:
		return v
	case map[string]any:
		return Payload(v)
	case string:
		if nested, err := decodeJSON([]byte(v)); err == nil {
			return nested
		}
	}
	return Payload{}
}

// Normalize extracts the paid order. The event and ticket type are left
// empty when the payload has none so the issuer applies its defaults.
func (p Payload) Normalize() (models.PaidOrder, error) {
	payment := p.Payment()

	orderID := firstNonEmpty(
		payment["orderid"],
		payment["order_id"],
		p["payment.orderid"],
		p["payment.order_id"],
		p["orderid"],
		p["order_id"],
		p["OrderId"],
		p["paymentid"],
		payment["systranid"],
	)
	if orderID == "" {
		return models.PaidOrder{}, status.Wrap(status.CodeNoOrderID, "normalize", status.ErrInvalidInput)
	}

	email := strings.ToLower(firstNonEmpty(p["Email"], p["email"]))
	if email == "" {
		return models.PaidOrder{}, status.Wrap(status.CodeNoEmail, "normalize", status.ErrInvalidInput)
	}

	quantity, err := p.quantity(payment)
	if err != nil {
		return models.PaidOrder{}, status.Wrap(status.CodeInvalidInput, "normalize", err)
	}

	return models.PaidOrder{
		OrderID:    orderID,
		Email:      email,
		Name:       firstNonEmpty(p["Name"], p["name"]),
		TicketType: firstNonEmpty(p["ticket_type"]),
		Quantity:   quantity,
		Amount:     amount(firstNonEmpty(payment["amount"], p["payment.amount"], p["amount"])),
	}, nil
}

// maxQuantity bounds the ticket count a single webhook can name.
var maxQuantity = decimal.NewFromInt(math.MaxInt32)

// quantity sums product quantities, falling back to tickets_qty or quantity.
// An order naming no usable quantity is one ticket.
func (p Payload) quantity(payment Payload) (int, error) {
	products := list(payment["products"])
	if len(products) == 0 {
		products = list(p["products"])
	}

	n := decimal.Zero
	if len(products) > 0 {
		for _, item := range products {
			if product, ok := item.(map[string]any); ok {
				n = n.Add(count(product["quantity"]))
			}
		}
	} else {
		n = count(firstNonEmpty(p["tickets_qty"], p["quantity"]))
	}

	if n.GreaterThan(maxQuantity) {
		return 0, fmt.Errorf("quantity %s: %w", n, status.ErrInvalidInput)
	}
	if n.LessThan(decimal.NewFromInt(1)) {
		return 1, nil
	}
	return int(n.IntPart()), nil
}

// Echo describes a raw webhook for debugging Tilda form settings.
type Echo struct {
	ContentType string   `json:"contentType"`
	Keys        []string `json:"keys"`
	PaymentKeys []string `json:"paymentKeys"`
	Sample      Payload  `json:"sample"`
}

func Describe(body []byte, contentType string) Echo {
	e := Echo{
		ContentType: strings.ToLower(contentType),
		Keys:        []string{},
		PaymentKeys: []string{},
	}

	p, err := Decode(body, contentType)
	if err != nil {
		return e
	}
	if payment := p.Payment(); len(payment) > 0 {
		p["payment"] = payment
		e.PaymentKeys = keys(payment)
	}
	e.Keys = keys(p)
	e.Sample = p
	return e
}

func keys(p Payload) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func firstNonEmpty(values ...any) string {
	for _, v := range values {
		if s := text(v); s != "" {
			return s
		}
	}
	return ""
}

// list accepts an array or a JSON-encoded array.
func list(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		var out []any
		dec := json.NewDecoder(strings.NewReader(t))
		dec.UseNumber()
		if err := dec.Decode(&out); err == nil {
			return out
		}
	}
	return nil
}

func count(v any) decimal.Decimal {
	d, err := decimal.NewFromString(text(v))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Truncate(0)
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero
	}
	return d
}
