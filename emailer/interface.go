package emailer

type Attachment struct {
	Name     string
	Data     []byte
	MimeType string
}

// Message is one outgoing e-mail with an html body
type Message struct {
	ToName      string
	To          string
	Subject     string
	Content     string
	Attachments []Attachment
}

type Emailer interface {
	Send(msg Message) error
}
