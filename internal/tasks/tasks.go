package tasks

import (
	"encoding/json"
	"fmt"
)

// 定义任务类型常量
const (
	TypeVerificationEmail = "email:verification" // 发送注册验证码邮件
	TypeRoomReconcile     = "room:reconcile"     // 周期性修正房间参与人数
)

// VerificationEmailPayload 定义了验证码邮件任务的数据结构
type VerificationEmailPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// NewVerificationEmailPayload 序列化验证码邮件任务的 payload
func NewVerificationEmailPayload(email, code string) ([]byte, error) {
	payloadBytes, err := json.Marshal(VerificationEmailPayload{Email: email, Code: code})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification email payload: %w", err)
	}
	return payloadBytes, nil
}

// ParseVerificationEmailPayload 反序列化并校验 payload
func ParseVerificationEmailPayload(data []byte) (VerificationEmailPayload, error) {
	var payload VerificationEmailPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal verification email payload: %w", err)
	}
	if payload.Email == "" || payload.Code == "" {
		return payload, fmt.Errorf("verification email payload requires email and code")
	}
	return payload, nil
}

// RoomReconcilePayload 是周期任务的 payload，目前没有参数
type RoomReconcilePayload struct{}

// NewRoomReconcilePayload 序列化周期性修正任务的 payload
func NewRoomReconcilePayload() ([]byte, error) {
	return json.Marshal(RoomReconcilePayload{})
}
