package domain

import "time"

// MaxParticipants 是单个房间允许的最大参与人数。
const MaxParticipants = 8

// RoomStatus 表示房间状态。
type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "active"
	RoomStatusDisabled RoomStatus = "disabled"
)

// Room 表示一个带密码的共享相册。
// OwnerID 在创建时确定，之后不会转移。
type Room struct {
	ID                uint       `gorm:"primaryKey"`
	Code              string     `gorm:"type:varchar(16);uniqueIndex:idx_rooms_code;not null"` // 加入房间用的随机码
	OwnerID           uint       `gorm:"index;not null"`
	Title             string     `gorm:"type:varchar(100);not null"`
	Password          string     `gorm:"type:varchar(255);not null"` // bcrypt 哈希
	ParticipantsCount int        `gorm:"not null;default:1"`
	Status            RoomStatus `gorm:"type:varchar(16);not null;default:active;index"`
	CreatedAt         time.Time  `gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`
}

// IsActive 房间是否仍接受加入和发帖。
func (r *Room) IsActive() bool {
	return r.Status == RoomStatusActive
}

// IsOwnedBy 判断给定用户是否为房主。
func (r *Room) IsOwnedBy(userID uint) bool {
	return r.OwnerID == userID
}

// IsFull 房间人数是否已达上限。
func (r *Room) IsFull() bool {
	return r.ParticipantsCount >= MaxParticipants
}
