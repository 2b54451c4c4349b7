package domain

import "time"

// Participation 记录某个用户当前属于某个房间。
// (user_id, room_id) 组合唯一，用户离开房间时直接删除该行。
type Participation struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:uq_participations_user_room,priority:1"`
	RoomID    uint      `gorm:"not null;uniqueIndex:uq_participations_user_room,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
