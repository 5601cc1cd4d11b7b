// Package service contains collaborators around the waitlist core, mail
// delivery and the periodic stats snapshot
package service

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers a verification link to a signup. Delivery is an
// external collaborator, the waitlist service itself never sends mail
type Mailer interface {
	SendVerificationMail(sendTo, link string) error
}

// NewMailer returns the SMTP mailer when mail.enabled is set and the
// log-only mailer otherwise
func NewMailer() Mailer {
	if viper.GetBool("mail.enabled") {
		return &smtpMailer{
			host:     viper.GetString("mail.host"),
			port:     viper.GetInt("mail.port"),
			from:     viper.GetString("mail.sender_address"),
			password: viper.GetString("mail.password"),
		}
	}

	return &logMailer{}
}

type smtpMailer struct {
	host     string
	port     int
	from     string
	password string
}

func (s *smtpMailer) SendVerificationMail(sendTo, link string) error {
	if sendTo == s.from {
		return errors.New("invalid email address")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", sendTo)
	m.SetHeader("Subject", "Confirm your spot on the Skygen waitlist")
	m.SetBody("text/html", fmt.Sprintf(
		"Click <a href='%v'>here</a> to verify your email and see your waitlist position.<br><br>This link will expire in 24 hours", link))

	d := gomail.NewDialer(s.host, s.port, s.from, s.password)

	return d.DialAndSend(m)
}

// logMailer stands in for delivery during development. The link lands in
// the log instead of an inbox
type logMailer struct{}

func (*logMailer) SendVerificationMail(sendTo, link string) error {
	zap.L().Info("Mail delivery disabled, logging verification link",
		zap.String("send_to", sendTo),
		zap.String("link", link),
	)

	return nil
}
