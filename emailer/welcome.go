package emailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/util"
)

// WelcomeTemplate is the mail template rendered for new registrations
const WelcomeTemplate = "register.html"

// QRCodeAttachment is the file name of the profile QR code attached to the welcome mail
const QRCodeAttachment = "profile-qr.png"

// Welcome sends the registration mail for newly created monsters
type Welcome struct {
	queue   *Queue
	tmpl    *template.Template
	toName  string
	to      string
	subject string
	baseURL string
}

// NewWelcome parses the welcome template from the mail template file system
func NewWelcome(queue *Queue, tmplDir fs.FS, to, toName, subject, baseURL string) (*Welcome, error) {
	tmplString, err := util.StringFromEmbedFile(tmplDir, WelcomeTemplate)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("register").Parse(tmplString)
	if err != nil {
		return nil, fmt.Errorf("cannot parse welcome template: %w", err)
	}
	return &Welcome{queue: queue, tmpl: tmpl, to: to, toName: toName, subject: subject, baseURL: baseURL}, nil
}

// Compose renders the welcome message for a monster
func (w *Welcome) Compose(m model.Monster) (Message, error) {
	var buf bytes.Buffer
	err := w.tmpl.Execute(&buf, map[string]interface{}{
		"model":      m,
		"profileURL": util.ProfileURL(w.baseURL, m.ID),
	})
	if err != nil {
		return Message{}, fmt.Errorf("cannot render welcome mail: %w", err)
	}
	msg := Message{
		ToName:  w.toName,
		To:      w.to,
		Subject: w.subject,
		Content: buf.String(),
	}

	qr, err := util.ProfileQRCodePNG(w.baseURL, m.ID)
	if err != nil {
		log.Warn("Sending welcome mail without QR code: ", err)
		return msg, nil
	}
	msg.Attachments = append(msg.Attachments, Attachment{Name: QRCodeAttachment, Data: qr, MimeType: "image/png"})
	return msg, nil
}

// NotifyRegistered queues the welcome mail. Delivery happens in the background.
func (w *Welcome) NotifyRegistered(ctx context.Context, m model.Monster) error {
	msg, err := w.Compose(m)
	if err != nil {
		return err
	}
	return w.queue.Enqueue(msg)
}
