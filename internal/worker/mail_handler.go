package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/infra/mail"
	"github.com/Kaleub/kaleub-back/internal/tasks"
)

// MailSender 是发送邮件的最小接口，由 mail.SMTPSender 实现
type MailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// VerificationEmailHandler 处理验证码邮件任务
type VerificationEmailHandler struct {
	sender MailSender
}

// NewVerificationEmailHandler 创建 Handler 实例
func NewVerificationEmailHandler(sender MailSender) *VerificationEmailHandler {
	return &VerificationEmailHandler{sender: sender}
}

// ProcessTask 实现 asynq.Handler 接口。payload 无效时不再重试。
func (h *VerificationEmailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
	logCtx.Debug("Processing verification email task...")

	payload, err := tasks.ParseVerificationEmailPayload(t.Payload())
	if err != nil {
		logCtx.WithError(err).Error("Invalid verification email payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("email", payload.Email)

	subject, body := mail.VerificationMessage(payload.Code)
	if err := h.sender.Send(ctx, payload.Email, subject, body); err != nil {
		logCtx.WithError(err).Warn("Failed to send verification email, will retry")
		return fmt.Errorf("failed to send verification email to %s: %w", payload.Email, err)
	}

	logCtx.Info("Verification email task processed successfully")
	return nil
}
