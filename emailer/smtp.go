package emailer

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
)

type SmtpMail struct {
	hostname   string
	port       int
	username   string
	password   string
	authType   mail.AuthType
	encryption mail.Encryption
	noTLSCheck bool
	fromName   string
	from       string
}

func authType(authType string) mail.AuthType {
	switch strings.ToUpper(authType) {
	case "PLAIN":
		return mail.AuthPlain
	case "LOGIN":
		return mail.AuthLogin
	default:
		return mail.AuthNone
	}
}

func encryptionType(encryptionType string) mail.Encryption {
	switch strings.ToUpper(encryptionType) {
	case "NONE":
		return mail.EncryptionNone
	case "SSL":
		return mail.EncryptionSSL
	case "SSLTLS":
		return mail.EncryptionSSLTLS
	case "TLS":
		return mail.EncryptionTLS
	default:
		return mail.EncryptionSTARTTLS
	}
}

func NewSmtpMail(hostname string, port int, username string, password string, noTLSCheck bool, auth string, fromName, from string, encryption string) *SmtpMail {
	ans := SmtpMail{hostname: hostname, port: port, username: username, password: password, noTLSCheck: noTLSCheck, fromName: fromName, from: from, authType: authType(auth), encryption: encryptionType(encryption)}
	return &ans
}

func addressField(address string, name string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

// composeMSG builds the go-simple-mail message shared by the smtp and file transports
func composeMSG(fromName, from string, msg Message) (*mail.Email, error) {
	email := mail.NewMSG()
	email.SetFrom(addressField(from, fromName)).
		AddTo(addressField(msg.To, msg.ToName)).
		SetSubject(msg.Subject).
		SetBody(mail.TextHTML, msg.Content)

	for _, v := range msg.Attachments {
		email.Attach(&mail.File{Name: v.Name, Data: v.Data, MimeType: v.MimeType})
	}
	if email.Error != nil {
		return nil, fmt.Errorf("cannot compose email: %w", email.Error)
	}
	return email, nil
}

func (o *SmtpMail) Send(msg Message) error {
	server := mail.NewSMTPClient()

	server.Host = o.hostname
	server.Port = o.port
	server.Authentication = o.authType
	server.Username = o.username
	server.Password = o.password
	server.Encryption = o.encryption
	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	if o.noTLSCheck {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	email, err := composeMSG(o.fromName, o.from, msg)
	if err != nil {
		return err
	}

	smtpClient, err := server.Connect()
	if err != nil {
		return err
	}

	return email.Send(smtpClient)
}
