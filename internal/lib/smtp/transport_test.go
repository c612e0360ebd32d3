package smtp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coin-planner/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer имитирует SMTP relay без TLS и аутентификации и собирает команды.
func fakeServer(t *testing.T) (string, int, <-chan []string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		r := bufio.NewReader(conn)
		w := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		var cmds []string
		w("220 fake ESMTP")
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				out <- cmds
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if inData {
				if line == "." {
					inData = false
					w("250 OK")
				}
				continue
			}
			cmds = append(cmds, strings.SplitN(line, " ", 2)[0])
			switch {
			case strings.HasPrefix(line, "EHLO"):
				w("250 fake")
			case strings.HasPrefix(line, "DATA"):
				inData = true
				w("354 go ahead")
			case strings.HasPrefix(line, "QUIT"):
				w("221 bye")
				out <- cmds
				return
			default:
				w("250 OK")
			}
		}
	}()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, out
}

func TestTransport_ConnectWithoutAuth(t *testing.T) {
	host, port, cmds := fakeServer(t)
	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port, SMTPFrom: "planner@example.com"}, newNoopLogger())

	assert.Equal(t, "planner@example.com", tr.GetSMTPUser())

	client, err := tr.Connect()
	require.NoError(t, err)
	require.NoError(t, client.Mail(tr.GetSMTPUser()))
	require.NoError(t, client.Rcpt("user@example.com"))
	w, err := client.Data()
	require.NoError(t, err)
	_, err = w.Write([]byte("Subject: hi\r\n\r\nbody\r\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, client.Quit())

	assert.Equal(t, []string{"EHLO", "MAIL", "RCPT", "DATA", "QUIT"}, <-cmds)
}

func TestTransport_StartTLSRequiredForAuth(t *testing.T) {
	host, port, _ := fakeServer(t)
	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port, SMTPUser: "u", SMTPPassword: "p"}, newNoopLogger())

	_, err := tr.Connect()
	assert.Error(t, err)
	assert.Equal(t, "u", tr.GetSMTPUser())
}

func TestTransport_DialError(t *testing.T) {
	tr := NewTransport(config.SMTP{SMTPHost: "127.0.0.1", SMTPPort: 1}, newNoopLogger())
	_, err := tr.Connect()
	assert.Error(t, err)
}
