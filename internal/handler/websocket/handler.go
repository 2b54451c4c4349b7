package websocket

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	httpHandler "github.com/Kaleub/kaleub-back/internal/handler/http"
	"github.com/Kaleub/kaleub-back/internal/hub"
	"github.com/Kaleub/kaleub-back/internal/middleware"
	"github.com/Kaleub/kaleub-back/internal/service"
)

// WebSocketHandler 负责把房间成员的连接升级为动态推送通道
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigins 为空或包含 "*" 时允许任意来源。
func NewWebSocketHandler(hub *hub.Hub, roomService *service.RoomService, allowedOrigins []string) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 || allowed["*"] {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         hub,
		roomService: roomService,
	}
}

// HandleConnection 处理 /ws/rooms/:roomId 的升级请求
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	email, ok := middleware.CurrentEmail(c)
	if !ok {
		logrus.Warn("WS Handler: Email not found in context")
		httpHandler.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	logCtx := logrus.WithField("email", email)

	roomIDStr := c.Param("roomId")
	roomID64, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil {
		logCtx.WithError(err).Warnf("WS Handler: Invalid room ID format: %s", roomIDStr)
		httpHandler.ErrorResponse(c, http.StatusBadRequest, "Invalid room ID format")
		return
	}
	roomID := uint(roomID64)
	logCtx = logCtx.WithField("room_id", roomID)

	// 升级前校验成员身份，此时还可以返回普通 HTTP 错误
	user, err := h.roomService.EnsureParticipant(c.Request.Context(), email, roomID)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Connection rejected")
		httpHandler.HandleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写出了 HTTP 错误
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx = logCtx.WithField("user_id", user.ID)

	client := hub.NewClient(h.hub, conn, roomID, user.ID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: hub.MessageRegister, RoomID: roomID, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client connected to feed stream")
}
