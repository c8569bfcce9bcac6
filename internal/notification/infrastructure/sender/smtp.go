package sender

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/wyfcoding/pantry/internal/notification/domain"
	"github.com/wyfcoding/pantry/pkg/logger"
)

// sendMailFunc 与 smtp.SendMail 签名一致
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender 通过 SMTP 发送邮件
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	from     string
	sendMail sendMailFunc
}

// NewSMTPSender 创建 SMTP 发送器，username 为空时不做认证
func NewSMTPSender(host string, port int, username, password, from string) domain.Sender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		auth:     auth,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// Send 发送纯文本邮件
func (s *SMTPSender) Send(ctx context.Context, target, subject, content string) error {
	to, err := mail.ParseAddress(target)
	if err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", target, err)
	}
	from, err := mail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("invalid sender address %q: %w", s.from, err)
	}
	if strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("subject must be a single line")
	}

	msg := buildMessage(from.String(), to.String(), subject, content, time.Now())

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sendMail(s.addr, s.auth, from.Address, []string{to.Address}, msg); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", to.Address, err)
	}

	logger.Debug(ctx, "Email sent", "target", to.Address, "subject", subject)
	return nil
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
