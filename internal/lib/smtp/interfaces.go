// Package smtp доставляет письма уведомлений через SMTP-сервер из конфига:
// без пользователя как локальный relay, с пользователем через STARTTLS и PLAIN.
package smtp

import "io"

// Client — команды SMTP-сессии, нужные для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает SMTP-сессию и сообщает адрес отправителя.
type Dialer interface {
	Connect() (Client, error)
	GetSMTPUser() string
}

var (
	_ Dialer = (*Transport)(nil)
	_ Client = (*smtpClientWrapper)(nil)
)
