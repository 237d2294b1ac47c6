package tilda

import (
	"testing"

	"ticket-gate/internal/status"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		key         string
		want        any
	}{
		{"JSON", `{"email":"a@b.com"}`, "application/json", "email", "a@b.com"},
		{"JSON with charset", `{"email":"a@b.com"}`, "application/json; charset=utf-8", "email", "a@b.com"},
		{"Form", "email=a%40b.com&name=Ann", "application/x-www-form-urlencoded", "email", "a@b.com"},
		{"Unknown type JSON", `{"email":"a@b.com"}`, "text/plain", "email", "a@b.com"},
		{"Unknown type form", "email=a%40b.com", "", "email", "a@b.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body), tt.contentType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p[tt.key])
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"email":`), "application/json")
	assert.ErrorIs(t, err, status.ErrMalformed)

	_, err = Decode([]byte(`[1,2]`), "application/json")
	assert.ErrorIs(t, err, status.ErrMalformed)

	_, err = Decode([]byte(`null`), "application/json")
	assert.ErrorIs(t, err, status.ErrMalformed)

	p, err := Decode(nil, "application/json")
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestNormalize_OrderIDAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"Payment object", `{"email":"a@b.com","payment":{"orderid":"1001"}}`, "1001"},
		{"Payment order_id", `{"email":"a@b.com","payment":{"order_id":"1002"}}`, "1002"},
		{"Payment JSON string", `{"email":"a@b.com","payment":"{\"orderid\":\"1003\"}"}`, "1003"},
		{"Flat payment key", `{"email":"a@b.com","payment.orderid":"1004"}`, "1004"},
		{"Top level orderid", `{"email":"a@b.com","orderid":"1005"}`, "1005"},
		{"OrderId", `{"email":"a@b.com","OrderId":"1006"}`, "1006"},
		{"Payment id", `{"email":"a@b.com","paymentid":"1007"}`, "1007"},
		{"Systranid", `{"email":"a@b.com","payment":{"systranid":"1008"}}`, "1008"},
		{"Numeric", `{"email":"a@b.com","payment":{"orderid":1009}}`, "1009"},
		{"Payment wins", `{"email":"a@b.com","orderid":"x","payment":{"orderid":"1010"}}`, "1010"},
		{"Blank skipped", `{"email":"a@b.com","payment":{"orderid":"  "},"order_id":"1011"}`, "1011"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body), "application/json")
			require.NoError(t, err)

			order, err := p.Normalize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, order.OrderID)
		})
	}
}

func TestNormalize_Form(t *testing.T) {
	body := "Email=Ann%40Example.COM&Name=Ann&payment=%7B%22orderid%22%3A%22777%22%2C%22amount%22%3A%22300.50%22%2C%22products%22%3A%5B%7B%22quantity%22%3A2%7D%2C%7B%22quantity%22%3A%221%22%7D%5D%7D"

	p, err := Decode([]byte(body), "application/x-www-form-urlencoded")
	require.NoError(t, err)

	order, err := p.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "777", order.OrderID)
	assert.Equal(t, "ann@example.com", order.Email)
	assert.Equal(t, "Ann", order.Name)
	assert.Equal(t, 3, order.Quantity)
	assert.True(t, decimal.RequireFromString("300.5").Equal(order.Amount))
	assert.Empty(t, order.EventID)
	assert.Empty(t, order.TicketType)
}

func TestNormalize_Quantity(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"Products", `{"payment":{"products":[{"quantity":2},{"quantity":3}]}}`, 5},
		{"Products string", `{"payment":{"products":"[{\"quantity\":\"4\"}]"}}`, 4},
		{"Top level products", `{"products":[{"quantity":2}]}`, 2},
		{"Products without quantity", `{"payment":{"products":[{"name":"x"}]}}`, 1},
		{"Tickets qty", `{"tickets_qty":"3"}`, 3},
		{"Quantity", `{"quantity":2}`, 2},
		{"Garbage", `{"quantity":"many"}`, 1},
		{"Negative", `{"quantity":-4}`, 1},
		{"Nothing", `{}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body), "application/json")
			require.NoError(t, err)
			p["email"] = "a@b.com"
			p["orderid"] = "1"

			order, err := p.Normalize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, order.Quantity)
		})
	}
}

func TestNormalize_QuantityTooLarge(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Products overflow int", `{"payment":{"products":[{"quantity":9223372036854775807},{"quantity":2}]}}`},
		{"Single huge product", `{"products":[{"quantity":"100000000000000000000"}]}`},
		{"Tickets qty", `{"tickets_qty":"2147483648"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body), "application/json")
			require.NoError(t, err)
			p["email"] = "a@b.com"
			p["orderid"] = "1"

			_, err = p.Normalize()
			require.Error(t, err)
			assert.ErrorIs(t, err, status.ErrInvalidInput)
			assert.Equal(t, status.CodeInvalidInput, status.CodeOf(err))
		})
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	_, err := Payload{"email": "a@b.com"}.Normalize()
	assert.Equal(t, status.CodeNoOrderID, status.CodeOf(err))

	_, err = Payload{"orderid": "1", "email": "  "}.Normalize()
	assert.Equal(t, status.CodeNoEmail, status.CodeOf(err))
}

func TestNormalize_TicketType(t *testing.T) {
	order, err := Payload{"orderid": "1", "email": "a@b.com", "ticket_type": "VIP"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "VIP", order.TicketType)
}

func TestIsTestProbe(t *testing.T) {
	assert.True(t, Payload{"test": "test"}.IsTestProbe())
	assert.False(t, Payload{"test": "yes"}.IsTestProbe())
	assert.False(t, Payload{}.IsTestProbe())
}

func TestDescribe(t *testing.T) {
	body := "name=Ann&payment=%7B%22orderid%22%3A%2242%22%7D"

	e := Describe([]byte(body), "Application/X-WWW-Form-Urlencoded")
	assert.Equal(t, "application/x-www-form-urlencoded", e.ContentType)
	assert.Equal(t, []string{"name", "payment"}, e.Keys)
	assert.Equal(t, []string{"orderid"}, e.PaymentKeys)
	assert.Equal(t, "42", e.Sample.Payment()["orderid"])
}

func TestDescribe_Unparseable(t *testing.T) {
	e := Describe([]byte(`{"a":`), "application/json")
	assert.Empty(t, e.Keys)
	assert.Nil(t, e.Sample)
}
