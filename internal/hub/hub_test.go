package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// newTestClient 创建不带连接的客户端，只用于验证 Hub 的分发逻辑
func newTestClient(h *Hub, roomID, userID uint) *Client {
	return &Client{hub: h, roomID: roomID, userID: userID, send: make(chan []byte, 8)}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil, "test:")
	go h.Run()
	t.Cleanup(h.StopAllSubscriptions)
	return h
}

func register(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	require.True(t, h.QueueMessage(HubMessage{Type: MessageRegister, RoomID: c.RoomID(), Client: c}))
	require.Eventually(t, func() bool {
		h.roomsMu.RLock()
		defer h.roomsMu.RUnlock()
		return h.rooms[c.RoomID()][c]
	}, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) domain.FeedEvent {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send 通道不应被关闭")
		var event domain.FeedEvent
		require.NoError(t, json.Unmarshal(msg, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed event")
		return domain.FeedEvent{}
	}
}

func TestHub_PublishFeedEvent_OnlyReachesRoom(t *testing.T) {
	h := startHub(t)
	inRoom := newTestClient(h, 1, 10)
	otherRoom := newTestClient(h, 2, 20)
	register(t, h, inRoom)
	register(t, h, otherRoom)

	err := h.PublishFeedEvent(context.Background(), domain.FeedEvent{Type: domain.FeedCreated, RoomID: 1, FeedID: 5, UserID: 10})
	require.NoError(t, err)

	event := receive(t, inRoom)
	assert.Equal(t, domain.FeedCreated, event.Type)
	assert.Equal(t, uint(5), event.FeedID)

	select {
	case <-otherRoom.send:
		t.Fatal("其他房间不应收到事件")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	c := newTestClient(h, 1, 10)
	register(t, h, c)

	require.True(t, h.QueueMessage(HubMessage{Type: MessageUnregister, RoomID: 1, Client: c}))

	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "注销后 send 通道应被关闭")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send channel to close")
	}
	assert.Eventually(t, func() bool { return h.ClientCount(1) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesAllClients(t *testing.T) {
	h := NewHub(nil, "test:")
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	c := newTestClient(h, 3, 30)
	register(t, h, c)

	h.StopAllSubscriptions()
	h.StopAllSubscriptions()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_ParticipantLeftDisconnectsOnlyThatUser(t *testing.T) {
	h := startHub(t)
	leaver := newTestClient(h, 1, 10)
	leaverOtherRoom := newTestClient(h, 2, 10)
	stayer := newTestClient(h, 1, 11)
	register(t, h, leaver)
	register(t, h, leaverOtherRoom)
	register(t, h, stayer)

	err := h.PublishFeedEvent(context.Background(), domain.FeedEvent{Type: domain.ParticipantLeft, RoomID: 1, UserID: 10})
	require.NoError(t, err)

	event := receive(t, stayer)
	assert.Equal(t, domain.ParticipantLeft, event.Type)
	assert.Equal(t, uint(10), event.UserID)

	// 离开者先收到事件，随后 send 被关闭
	assert.Equal(t, domain.ParticipantLeft, receive(t, leaver).Type)
	select {
	case _, ok := <-leaver.send:
		assert.False(t, ok, "离开房间后连接应被断开")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for leaver to be disconnected")
	}
	assert.Eventually(t, func() bool { return h.ClientCount(1) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.ClientCount(2), "其他房间的连接不受影响")

	// 离开者之后不会再收到本房间的动态
	require.NoError(t, h.PublishFeedEvent(context.Background(), domain.FeedEvent{Type: domain.FeedCreated, RoomID: 1, FeedID: 7, UserID: 11}))
	assert.Equal(t, uint(7), receive(t, stayer).FeedID)

	// 客户端读循环退出时发送的 unregister 被安全忽略
	require.True(t, h.QueueMessage(HubMessage{Type: MessageUnregister, RoomID: 1, Client: leaver}))
	require.NoError(t, h.PublishFeedEvent(context.Background(), domain.FeedEvent{Type: domain.FeedDeleted, RoomID: 1, FeedID: 7}))
	assert.Equal(t, domain.FeedDeleted, receive(t, stayer).Type)
}
