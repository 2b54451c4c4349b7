package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Enqueuer 是 asynq.Client 中用到的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskMailer 把验证码邮件投递到任务队列，由 worker 异步发送。
// 入队失败会同步返回，调用方可以据此提示用户重试。
type TaskMailer struct {
	client   Enqueuer
	maxRetry int
	timeout  time.Duration
}

// NewTaskMailer 创建 TaskMailer
func NewTaskMailer(client Enqueuer) *TaskMailer {
	if client == nil {
		panic("asynq client cannot be nil for TaskMailer")
	}
	return &TaskMailer{client: client, maxRetry: 5, timeout: 30 * time.Second}
}

// SendVerificationCode 入队一封验证码邮件
func (m *TaskMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	payload, err := NewVerificationEmailPayload(email, code)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeVerificationEmail, payload)
	info, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue("critical"),
		asynq.MaxRetry(m.maxRetry),
		asynq.Timeout(m.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue verification email for %s: %w", email, err)
	}
	logrus.WithFields(logrus.Fields{"email": email, "task_id": info.ID, "queue": info.Queue}).
		Debug("Verification email task enqueued")
	return nil
}
