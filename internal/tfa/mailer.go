// Out-of-band email delivery for registration codes, through a Gmail SMTP
// relay. No third-party mail library appears anywhere in the retrieval
// pack, so delivery goes through net/smtp.
package tfa

import (
	"encoding/json"
	"fmt"
	"net/smtp"
	"os"
)

// Mailer delivers a registration code to its recipient out-of-band.
type Mailer interface {
	SendCode(to string, code uint32) error
}

// emailCredentials is the {email, password} shape read from the relay
// credentials file.
type emailCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SMTPMailer delivers codes through an SMTP relay, defaulting to Gmail's
// (smtp.gmail.com).
type SMTPMailer struct {
	relay string
	from  string
	creds emailCredentials
}

// NewSMTPMailer loads relay credentials from credentialsPath, a JSON file
// shaped like {"email": "...", "password": "..."}.
func NewSMTPMailer(relay, from, credentialsPath string) (*SMTPMailer, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("tfa: read email credentials: %w", err)
	}
	var creds emailCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("tfa: parse email credentials: %w", err)
	}
	return &SMTPMailer{relay: relay, from: from, creds: creds}, nil
}

// SendCode emails to its current registration code.
func (m *SMTPMailer) SendCode(to string, code uint32) error {
	auth := smtp.PlainAuth("", m.creds.Email, m.creds.Password, m.relay)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your 2FA Code\r\n\r\nYour 2FA code is: %d\r\n",
		m.from, to, code)
	return smtp.SendMail(m.relay+":587", auth, m.creds.Email, []string{to}, []byte(msg))
}
