package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// SMTPConfig 描述发信服务器
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SendFunc 与 smtp.SendMail 签名一致，测试时可替换
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender 通过 SMTP 发送纯文本邮件
type SMTPSender struct {
	cfg  SMTPConfig
	send SendFunc
}

// NewSMTPSender 创建 SMTPSender。From 为空时使用 Username。
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host cannot be empty")
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP sender address cannot be empty")
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}, nil
}

// WithSendFunc 替换底层发送函数
func (s *SMTPSender) WithSendFunc(fn SendFunc) *SMTPSender {
	s.send = fn
	return s
}

// Send 发送一封邮件。smtp.SendMail 本身不支持 context，只在发送前检查取消。
func (s *SMTPSender) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	msg := buildMessage(s.cfg.From, recipient, subject, body)
	if err := s.send(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("smtp: send to %s: %w", recipient, err)
	}
	logrus.WithFields(logrus.Fields{"recipient": recipient, "subject": subject}).Info("Email sent")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body + "\r\n")
	return []byte(b.String())
}

// VerificationMessage 返回验证码邮件的主题和正文
func VerificationMessage(code string) (subject, body string) {
	subject = "[Photory] Email verification code"
	body = "Your Photory verification code is " + code + ".\r\n" +
		"Enter it in the app to finish signing up. The code expires in a few minutes."
	return subject, body
}
