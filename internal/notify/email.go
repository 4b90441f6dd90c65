package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailSink delivers notifications over SMTP.
type EmailSink struct {
	to       string
	host     string
	port     int
	username string
	password string
}

var _ Sink = (*EmailSink)(nil)

func NewEmailSink(to, host string, port int, username, password string) *EmailSink {
	return &EmailSink{to: to, host: host, port: port, username: username, password: password}
}

func (e *EmailSink) Name() string {
	return "email"
}

func (e *EmailSink) Emit(notification Notification) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.username)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", notification.Urgency, notification.Title))
	m.SetBody("text/plain", fmt.Sprintf("%s\n\n%s", notification.Body, notification.URL))

	d := gomail.NewDialer(e.host, e.port, e.username, e.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
