package dto

import (
	"time"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// CreateFeedForm 是 multipart 表单中的文本字段，图片通过 images 字段上传
type CreateFeedForm struct {
	RoomID  uint   `form:"roomId" binding:"required"`
	Title   string `form:"title" binding:"required,max=100"`
	Content string `form:"content" binding:"max=2000"`
}

type ModifyFeedRequest struct {
	FeedID  uint   `json:"feedId" binding:"required"`
	Title   string `json:"title" binding:"required,max=100"`
	Content string `json:"content" binding:"max=2000"`
}

type DeleteFeedRequest struct {
	FeedID uint `json:"feedId" binding:"required"`
}

// FeedResponse 中的 Images 已经转换为访问地址
type FeedResponse struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"roomId"`
	UserID    uint      `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewFeedResponse(f *domain.Feed, imageURLs []string) FeedResponse {
	if imageURLs == nil {
		imageURLs = []string{}
	}
	return FeedResponse{
		ID:        f.ID,
		RoomID:    f.RoomID,
		UserID:    f.UserID,
		Title:     f.Title,
		Content:   f.Content,
		Images:    imageURLs,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// FeedPageResponse 是一页动态
type FeedPageResponse struct {
	Feeds []FeedResponse `json:"feeds"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}
