package http

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/dto"
	"github.com/Kaleub/kaleub-back/internal/service"
)

// maxFeedImages 是一条动态最多携带的图片数
const maxFeedImages = 10

// FeedHandler 封装了房间动态相关的 HTTP 处理逻辑
type FeedHandler struct {
	feedService *service.FeedService
}

// NewFeedHandler 创建 FeedHandler 实例
func NewFeedHandler(feedService *service.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// CreateFeed 处理 POST /v1/feed (multipart/form-data)
func (h *FeedHandler) CreateFeed(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var form dto.CreateFeedForm
	if err := c.ShouldBind(&form); err != nil {
		bindError(c, "CreateFeed", err)
		return
	}
	mf, err := c.MultipartForm()
	if err != nil {
		bindError(c, "CreateFeed", err)
		return
	}
	headers := mf.File["images"]
	if len(headers) > maxFeedImages {
		ErrorResponse(c, http.StatusBadRequest, "Too many images")
		return
	}

	images := make([]service.ImageUpload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			logrus.WithError(err).WithField("filename", fh.Filename).Error("Handler.CreateFeed: Failed to open uploaded file")
			ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded image")
			return
		}
		files = append(files, f)
		images = append(images, service.ImageUpload{Filename: fh.Filename, Content: f})
	}

	feed, err := h.feedService.CreateFeed(c.Request.Context(), email, images, form.RoomID, form.Title, form.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondFeed(c, http.StatusCreated, "Feed created successfully", feed)
}

// GetFeed 处理 GET /v1/feed/:feedId
func (h *FeedHandler) GetFeed(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	feedID, ok := uintParam(c, "feedId")
	if !ok {
		return
	}
	feed, err := h.feedService.GetFeed(c.Request.Context(), email, feedID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondFeed(c, http.StatusOK, "OK", feed)
}

// ModifyFeed 处理 PUT /v1/feed
func (h *FeedHandler) ModifyFeed(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.ModifyFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "ModifyFeed", err)
		return
	}
	feed, err := h.feedService.ModifyFeed(c.Request.Context(), email, req.FeedID, req.Title, req.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondFeed(c, http.StatusOK, "Feed modified successfully", feed)
}

// DeleteFeed 处理 DELETE /v1/feed
func (h *FeedHandler) DeleteFeed(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.DeleteFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "DeleteFeed", err)
		return
	}
	if err := h.feedService.DeleteFeed(c.Request.Context(), email, req.FeedID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Feed deleted successfully", nil)
}

// respondFeed 把图片 key 转成访问地址后写出动态
func (h *FeedHandler) respondFeed(c *gin.Context, code int, message string, feed *domain.Feed) {
	urls, err := h.feedService.ImageURLs(feed)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, code, message, dto.NewFeedResponse(feed, urls))
}
