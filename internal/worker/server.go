package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑
type WorkerServer struct {
	server     *asynq.Server
	log        *logrus.Entry
	mailer     MailSender
	reconciler ParticipantsReconciler
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, mailer MailSender, reconciler ParticipantsReconciler, logger *logrus.Logger) *WorkerServer {
	if mailer == nil {
		panic("MailSender cannot be nil for WorkerServer")
	}
	if reconciler == nil {
		panic("ParticipantsReconciler cannot be nil for WorkerServer")
	}
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				queue, _ := asynq.GetQueueName(ctx)
				taskID, _ := asynq.GetTaskID(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"queue":     queue,
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:     server,
		log:        logEntry,
		mailer:     mailer,
		reconciler: reconciler,
	}
}

// NewServeMux 注册全部任务处理器
func NewServeMux(mailer MailSender, reconciler ParticipantsReconciler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeVerificationEmail, NewVerificationEmailHandler(mailer).ProcessTask)
	mux.HandleFunc(tasks.TypeRoomReconcile, NewRoomReconcileHandler(reconciler).ProcessTask)
	return mux
}

// Start 运行 Worker Server，应在单独的 goroutine 中调用
func (ws *WorkerServer) Start() {
	mux := NewServeMux(ws.mailer, ws.reconciler)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown 优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
