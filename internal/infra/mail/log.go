package mail

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender 只把邮件写入日志，用于没有配置 SMTP 的开发环境
type LogSender struct{}

func (LogSender) Send(_ context.Context, recipient, subject, body string) error {
	logrus.WithFields(logrus.Fields{
		"recipient": recipient,
		"subject":   subject,
	}).Infof("Email not sent (SMTP disabled): %s", body)
	return nil
}
