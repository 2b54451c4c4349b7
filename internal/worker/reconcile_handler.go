package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// ParticipantsReconciler 修正房间人数，由 service.RoomService 实现
type ParticipantsReconciler interface {
	ReconcileParticipantsCounts(ctx context.Context) (int64, error)
}

// RoomReconcileHandler 处理周期性的房间人数修正任务
type RoomReconcileHandler struct {
	reconciler ParticipantsReconciler
	timeout    time.Duration
}

// NewRoomReconcileHandler 创建 Handler 实例
func NewRoomReconcileHandler(reconciler ParticipantsReconciler) *RoomReconcileHandler {
	return &RoomReconcileHandler{reconciler: reconciler, timeout: time.Minute}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})
	logCtx.Debug("Processing periodic room reconcile task...")

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	fixed, err := h.reconciler.ReconcileParticipantsCounts(runCtx)
	if err != nil {
		logCtx.WithError(err).Error("Room reconcile failed")
		return fmt.Errorf("room reconcile: %w", err)
	}

	logCtx.WithField("rooms_fixed", fixed).Info("Periodic room reconcile task completed")
	return nil
}
