package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"ticket-gate/models"
)

var ticketTemplate = template.Must(template.New("ticket").Parse(`
<p>Hello{{if .Name}}, {{.Name}}{{end}}!</p>
<p>Thank you for buying a ticket to <strong>{{.EventName}}</strong>.</p>
<p><strong>Order number:</strong> {{.OrderID}}<br>
   <strong>Ticket type:</strong> {{.TicketType}}</p>
<p>Show the QR code at the entrance or read out the backup code:</p>
<p><code style="word-break:break-all">{{.Token}}</code></p>
<p><img src="cid:{{.ImageName}}" alt="QR" width="300" height="300"/></p>
`))

// Ticket is the data shown in a ticket email.
type Ticket struct {
	To         string
	Name       string
	EventName  string
	OrderID    string
	TicketID   string
	TicketType string
	Token      string
	QR         []byte
}

func (t Ticket) imageName() string {
	return fmt.Sprintf("ticket-%s.png", t.TicketID)
}

// TicketMessage builds the email carrying one ticket, with the QR image
// attached inline.
func TicketMessage(t Ticket) (models.Message, error) {
	var body bytes.Buffer
	err := ticketTemplate.Execute(&body, struct {
		Ticket
		ImageName string
	}{t, t.imageName()})
	if err != nil {
		return models.Message{}, fmt.Errorf("rendering ticket email: %w", err)
	}

	return models.Message{
		To:      t.To,
		Subject: fmt.Sprintf("Your ticket: %s", t.EventName),
		HTML:    body.String(),
		Attachments: []models.Attachment{{
			Filename: t.imageName(),
			Content:  t.QR,
			Inline:   true,
		}},
	}, nil
}
