package domain

import "time"

// FeedEventType 描述推送给房间在线成员的事件类型。
type FeedEventType string

const (
	FeedCreated  FeedEventType = "feed.created"
	FeedModified FeedEventType = "feed.modified"
	FeedDeleted  FeedEventType = "feed.deleted"

	// ParticipantLeft 表示 UserID 离开了房间，收到后 Hub 会断开该用户在此房间的连接
	ParticipantLeft FeedEventType = "participant.left"
)

// FeedEvent 通过 Redis 频道广播，再由 Hub 推送到 WebSocket 客户端。
type FeedEvent struct {
	Type       FeedEventType `json:"type"`
	RoomID     uint          `json:"roomId"`
	FeedID     uint          `json:"feedId"`
	UserID     uint          `json:"userId"`
	OccurredAt time.Time     `json:"occurredAt"`
}
