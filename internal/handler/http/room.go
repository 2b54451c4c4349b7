package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/dto"
	"github.com/Kaleub/kaleub-back/internal/service"
)

// RoomHandler 封装了房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
	feedService *service.FeedService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, feedService *service.FeedService) *RoomHandler {
	return &RoomHandler{roomService: roomService, feedService: feedService}
}

// CreateRoom 处理 POST /v1/room
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "CreateRoom", err)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), email, req.Title, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": room.ID, "code": room.Code}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, "Room created successfully", dto.NewRoomResponse(room))
}

// ListRooms 处理 GET /v1/room
func (h *RoomHandler) ListRooms(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	rooms, err := h.roomService.ListRooms(c.Request.Context(), email)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "OK", dto.NewRoomResponses(rooms))
}

// GetRoom 处理 GET /v1/room/:roomId
func (h *RoomHandler) GetRoom(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	detail, err := h.roomService.GetRoom(c.Request.Context(), email, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "OK", dto.NewRoomDetailResponse(detail.Room, detail.Participants))
}

// JoinRoom 处理 POST /v1/room/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "JoinRoom", err)
		return
	}
	room, err := h.roomService.JoinRoom(c.Request.Context(), email, req.Code, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Joined room successfully", dto.NewRoomResponse(room))
}

// LeaveRoom 处理 POST /v1/room/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.RoomIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "LeaveRoom", err)
		return
	}
	if err := h.roomService.LeaveRoom(c.Request.Context(), email, req.RoomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Left room successfully", nil)
}

// DisableRoom 处理 POST /v1/room/disable
func (h *RoomHandler) DisableRoom(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.RoomIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "DisableRoom", err)
		return
	}
	if err := h.roomService.DisableRoom(c.Request.Context(), email, req.RoomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Room disabled successfully", nil)
}

// ModifyRoomPassword 处理 PUT /v1/room/password
func (h *RoomHandler) ModifyRoomPassword(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req dto.ModifyRoomPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "ModifyRoomPassword", err)
		return
	}
	err := h.roomService.ModifyRoomPassword(c.Request.Context(), email, req.RoomID, req.BeforePassword, req.AfterPassword)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Room password modified successfully", nil)
}

// ListFeeds 处理 GET /v1/room/:roomId/feeds?page=&size=
func (h *RoomHandler) ListFeeds(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "roomId")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.Query("size"))
	page, size = service.NormalizePage(page, size)

	feeds, total, err := h.feedService.ListRoomFeeds(c.Request.Context(), email, roomID, page, size)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.FeedPageResponse{Feeds: make([]dto.FeedResponse, 0, len(feeds)), Total: total, Page: page, Size: size}
	for i := range feeds {
		urls, err := h.feedService.ImageURLs(&feeds[i])
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		resp.Feeds = append(resp.Feeds, dto.NewFeedResponse(&feeds[i], urls))
	}
	SuccessResponse(c, http.StatusOK, "OK", resp)
}

// uintParam 解析路径中的 ID，格式错误时写出 400
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		logrus.WithField(name, raw).Warn("Invalid ID in path")
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(v), true
}
