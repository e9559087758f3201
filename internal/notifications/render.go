package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type content struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

var contents = map[Type]content{
	TypeRegistrationConfirmed: {
		html: htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>You're registered</h2>
<p>Your seat for <strong>{{.event_name}}</strong> is confirmed.</p>
<p>Starts: {{.starts_at}}</p>
<p>Paid: {{printf "%.2f" .final_price}} {{.currency}}</p>
<p>Registration: {{.registration_id}}</p>`)),
		text: texttemplate.Must(texttemplate.New("text").Parse(`Your seat for {{.event_name}} is confirmed.
Starts: {{.starts_at}}
Paid: {{printf "%.2f" .final_price}} {{.currency}}
Registration: {{.registration_id}}
`)),
	},
	TypeRefundIssued: {
		html: htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>Refund issued</h2>
<p>We refunded <strong>{{printf "%.2f" .amount}} {{.currency}}</strong> for payment {{.payment_id}}.</p>
<p>Reason: {{.reason}}</p>
<p>Refund reference: {{.refund_id}}</p>`)),
		text: texttemplate.Must(texttemplate.New("text").Parse(`We refunded {{printf "%.2f" .amount}} {{.currency}} for payment {{.payment_id}}.
Reason: {{.reason}}
Refund reference: {{.refund_id}}
`)),
	},
}

// Render produces the HTML and text bodies of msg
func Render(msg *Message) (htmlBody, textBody string, err error) {
	c, ok := contents[msg.Type]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %q", msg.Type)
	}

	var h, t bytes.Buffer
	if err := c.html.Execute(&h, msg.Data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := c.text.Execute(&t, msg.Data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return h.String(), t.String(), nil
}
