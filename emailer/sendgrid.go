package emailer

import (
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendgridApiMail struct {
	apiKey   string
	fromName string
	from     string
}

func NewSendgridApiMail(apiKey, fromName, from string) *SendgridApiMail {
	ans := SendgridApiMail{apiKey: apiKey, fromName: fromName, from: from}
	return &ans
}

// buildV3Mail converts a Message into a SendGrid v3 request body
func (o *SendgridApiMail) buildV3Mail(msg Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()

	m.SetFrom(mail.NewEmail(o.fromName, o.from))
	m.AddContent(mail.NewContent("text/html", msg.Content))

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail(msg.ToName, msg.To))
	personalization.Subject = msg.Subject
	m.AddPersonalizations(personalization)

	toAdd := make([]*mail.Attachment, 0, len(msg.Attachments))
	for i := range msg.Attachments {
		var att mail.Attachment
		mimeType := msg.Attachments[i].MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		att.SetContent(base64.StdEncoding.EncodeToString(msg.Attachments[i].Data))
		att.SetType(mimeType)
		att.SetFilename(msg.Attachments[i].Name)
		att.SetDisposition("attachment")
		toAdd = append(toAdd, &att)
	}
	if len(toAdd) > 0 {
		m.AddAttachment(toAdd...)
	}
	return m
}

func (o *SendgridApiMail) Send(msg Message) error {
	request := sendgrid.GetRequest(o.apiKey, "/v3/mail/send", "https://api.sendgrid.com")
	request.Method = "POST"
	request.Body = mail.GetRequestBody(o.buildV3Mail(msg))
	response, err := sendgrid.API(request)
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded with status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
