package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 客户端只需要发送控制帧，较小的上限即可
	maxMessageSize = 512

	feedEventChannel = "feed-events"
)

// Hub 内部消息类型
const (
	MessageRegister   = "register"
	MessageUnregister = "unregister"
	MessageEvent      = "event"
)

// HubMessage 是在 Hub 内部通道传递的消息
type HubMessage struct {
	Type    string  // register / unregister / event
	RoomID  uint    // 房间 ID
	Client  *Client // 仅用于 register/unregister
	RawData []byte  // 仅用于 event，已序列化的 FeedEvent
	// EvictUserID 非零时，广播后断开该用户在 RoomID 中的全部连接
	EvictUserID uint
}

// eventMessage 把已解码的事件包装成 Hub 消息
func eventMessage(event domain.FeedEvent, data []byte) HubMessage {
	msg := HubMessage{Type: MessageEvent, RoomID: event.RoomID, RawData: data}
	if event.Type == domain.ParticipantLeft {
		msg.EvictUserID = event.UserID
	}
	return msg
}

// Hub 维护各房间的在线客户端，并把动态事件推送给它们。
// 配置了 Redis 时，事件先发布到 Redis 频道，再由每个实例的订阅协程分发，
// 因此多实例部署下所有在线成员都能收到；未配置时只在本进程内广播。
type Hub struct {
	messageChan chan HubMessage

	// map[roomID]map[*Client]bool
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	redisClient *redis.Client
	channel     string

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewHub 创建 Hub 实例，redisClient 可以为 nil
func NewHub(redisClient *redis.Client, keyPrefix string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[uint]map[*Client]bool),
		redisClient: redisClient,
		channel:     keyPrefix + feedEventChannel,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run 启动 Hub 的主事件循环，应在单独的 goroutine 中运行。
// StopAllSubscriptions 被调用后退出，并关闭所有客户端。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	if h.redisClient != nil {
		go h.subscribe()
	}

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case MessageRegister:
				h.registerClient(msg.Client)
			case MessageUnregister:
				h.unregisterClient(msg.Client)
			case MessageEvent:
				h.broadcast(msg.RoomID, msg.RawData)
				if msg.EvictUserID != 0 {
					h.evictUser(msg.RoomID, msg.EvictUserID)
				}
			default:
				log.Warnf("Hub: Received unknown message type: %s in room %d", msg.Type, msg.RoomID)
			}
		}
	}
}

// PublishFeedEvent 发布一条动态事件
func (h *Hub) PublishFeedEvent(ctx context.Context, event domain.FeedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}
	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, h.channel, data).Err(); err != nil {
			return fmt.Errorf("failed to publish feed event to redis channel %s: %w", h.channel, err)
		}
		return nil
	}
	if !h.QueueMessage(eventMessage(event, data)) {
		return fmt.Errorf("hub queue full, feed event for room %d dropped", event.RoomID)
	}
	return nil
}

// QueueMessage 非阻塞地把消息放入 Hub 的处理队列，队列已满时返回 false
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// StopAllSubscriptions 停止 Redis 订阅和主循环，可重复调用
func (h *Hub) StopAllSubscriptions() {
	h.stopOnce.Do(func() {
		logrus.WithField("component", "hub").Info("Stopping hub subscriptions")
		h.cancel()
	})
}

// ClientCount 返回房间当前的在线连接数
func (h *Hub) ClientCount(roomID uint) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}

// subscribe 订阅 Redis 频道并把事件转入主循环
func (h *Hub) subscribe() {
	log := logrus.WithFields(logrus.Fields{"component": "hub", "channel": h.channel})
	pubsub := h.redisClient.Subscribe(h.ctx, h.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(h.ctx); err != nil {
		if h.ctx.Err() == nil {
			log.WithError(err).Error("Failed to subscribe to feed event channel")
		}
		return
	}
	log.Info("Subscribed to feed event channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			log.Info("Feed event subscription stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn("Feed event subscription channel closed")
				return
			}
			var event domain.FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WithError(err).Warn("Discarding malformed feed event")
				continue
			}
			h.QueueMessage(eventMessage(event, []byte(msg.Payload)))
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": client.RoomID(),
		"user_id": client.UserID(),
		"action":  "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.RoomID()]; !ok {
		h.rooms[client.RoomID()] = make(map[*Client]bool)
	}
	h.rooms[client.RoomID()][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": client.UserID(),
		"action":  "unregisterClient",
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	roomClients, ok := h.rooms[roomID]
	if !ok {
		logCtx.Debug("Room not found during client unregister")
		return
	}
	if _, ok := roomClients[client]; !ok {
		// 离开房间时已被 evictUser 移除
		logCtx.Debug("Client not found in room during unregister")
		return
	}
	delete(roomClients, client)
	// 只有 Hub 主循环会关闭 send
	close(client.send)
	if len(roomClients) == 0 {
		delete(h.rooms, roomID)
		logCtx.Debug("Room empty, removed from Hub")
	}
	logCtx.Info("Client unregistered from Hub")
}

// evictUser 断开离开房间的用户在该房间的连接。
// 客户端随后发出的 unregister 会因找不到客户端而被忽略。
func (h *Hub) evictUser(roomID, userID uint) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	roomClients := h.rooms[roomID]
	evicted := 0
	for client := range roomClients {
		if client.UserID() != userID {
			continue
		}
		delete(roomClients, client)
		close(client.send)
		evicted++
	}
	if len(roomClients) == 0 {
		delete(h.rooms, roomID)
	}
	if evicted > 0 {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": userID,
			"evicted": evicted,
		}).Info("Disconnected clients of user who left the room")
	}
}

// broadcast 将消息发送给房间内的全部客户端，慢客户端会被跳过
func (h *Hub) broadcast(roomID uint, message []byte) {
	h.roomsMu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		recipients = append(recipients, client)
	}
	h.roomsMu.RUnlock()

	if len(recipients) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"message_size":    len(message),
		"recipient_count": len(recipients),
	})
	logCtx.Debug("Broadcasting feed event to clients")

	for _, client := range recipients {
		select {
		case client.send <- message:
		default:
			logCtx.WithField("receiver_user_id", client.UserID()).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID, roomClients := range h.rooms {
		for client := range roomClients {
			close(client.send)
		}
		delete(h.rooms, roomID)
	}
}
