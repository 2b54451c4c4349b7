package dto

import (
	"time"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

type CreateRoomRequest struct {
	Title    string `json:"title" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=4,max=72"`
}

type JoinRoomRequest struct {
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RoomIDRequest 用于离开和停用房间
type RoomIDRequest struct {
	RoomID uint `json:"roomId" binding:"required"`
}

type ModifyRoomPasswordRequest struct {
	RoomID         uint   `json:"roomId" binding:"required"`
	BeforePassword string `json:"beforePassword" binding:"required"`
	AfterPassword  string `json:"afterPassword" binding:"required,min=4,max=72"`
}

// RoomResponse 是对外展示的房间信息，不含密码哈希
type RoomResponse struct {
	ID                uint      `json:"id"`
	Code              string    `json:"code"`
	OwnerID           uint      `json:"ownerId"`
	Title             string    `json:"title"`
	ParticipantsCount int       `json:"participantsCount"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
}

func NewRoomResponse(r *domain.Room) RoomResponse {
	return RoomResponse{
		ID:                r.ID,
		Code:              r.Code,
		OwnerID:           r.OwnerID,
		Title:             r.Title,
		ParticipantsCount: r.ParticipantsCount,
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
	}
}

func NewRoomResponses(rooms []domain.Room) []RoomResponse {
	out := make([]RoomResponse, len(rooms))
	for i := range rooms {
		out[i] = NewRoomResponse(&rooms[i])
	}
	return out
}

// RoomDetailResponse 附带当前成员列表
type RoomDetailResponse struct {
	RoomResponse
	Participants []UserResponse `json:"participants"`
}

func NewRoomDetailResponse(room *domain.Room, participants []domain.User) RoomDetailResponse {
	users := make([]UserResponse, len(participants))
	for i := range participants {
		users[i] = NewUserResponse(&participants[i])
	}
	return RoomDetailResponse{RoomResponse: NewRoomResponse(room), Participants: users}
}
