package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
	"github.com/Kaleub/kaleub-back/internal/service"
)

// memoryBlobStore 是内存中的 BlobStore，failAfter 次写入后开始失败
type memoryBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	puts      int
	failAfter int
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: make(map[string][]byte), failAfter: -1}
}

func (s *memoryBlobStore) Put(_ context.Context, filename string, content io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && s.puts >= s.failAfter {
		return "", errors.New("disk full")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.puts++
	key := fmt.Sprintf("%d-%s", s.puts, filename)
	s.blobs[key] = data
	return key, nil
}

func (s *memoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return repository.ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *memoryBlobStore) URL(key string) string {
	return "http://cdn.test/" + key
}

func (s *memoryBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// recordingPublisher 记录发布的动态事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.FeedEvent
}

func (p *recordingPublisher) PublishFeedEvent(_ context.Context, event domain.FeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.FeedEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.FeedEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type feedFixture struct {
	env       *testEnv
	rooms     *service.RoomService
	feeds     *service.FeedService
	blobs     *memoryBlobStore
	publisher *recordingPublisher
	owner     *domain.User
	member    *domain.User
	stranger  *domain.User
	room      *domain.Room
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &feedFixture{
		env:       env,
		blobs:     newMemoryBlobStore(),
		publisher: &recordingPublisher{},
	}
	f.rooms = service.NewRoomService(env.userRepo, env.roomRepo, env.participationRepo, env.txManager)
	f.feeds = service.NewFeedService(env.userRepo, env.roomRepo, env.participationRepo, env.feedRepo, f.blobs, f.publisher)

	ctx := context.Background()
	f.owner, f.room = createRoom(t, f.rooms, env)
	f.member = env.createUser(t, userEmail(1))
	f.stranger = env.createUser(t, userEmail(2))
	_, err := f.rooms.JoinRoom(ctx, f.member.Email, f.room.Code, roomPassword)
	require.NoError(t, err)
	return f
}

func images(names ...string) []service.ImageUpload {
	out := make([]service.ImageUpload, len(names))
	for i, name := range names {
		out[i] = service.ImageUpload{Filename: name, Content: strings.NewReader("bytes of " + name)}
	}
	return out
}

func TestFeedService_CreateFeed(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	feed, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg", "b.png"), f.room.ID, "Beach", "sunny day")

	require.NoError(t, err)
	assert.NotZero(t, feed.ID)
	assert.Equal(t, f.member.ID, feed.UserID)
	keys, err := feed.ImageKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"1-a.jpg", "2-b.png"}, keys, "图片顺序应与上传顺序一致")

	urls, err := f.feeds.ImageURLs(feed)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/1-a.jpg", urls[0])
	assert.Equal(t, []domain.FeedEventType{domain.FeedCreated}, f.publisher.types())
}

func TestFeedService_CreateFeed_Rejections(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	_, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg"), 9999, "t", "c")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	_, err = f.feeds.CreateFeed(ctx, f.stranger.Email, images("a.jpg"), f.room.ID, "t", "c")
	assert.ErrorIs(t, err, service.ErrNotParticipant)
	assert.Zero(t, f.blobs.count(), "非成员发布不应写入图片")

	_, err = f.feeds.CreateFeed(ctx, f.member.Email, nil, f.room.ID, "t", "c")
	assert.ErrorIs(t, err, service.ErrInvalidFeed)

	assert.Empty(t, f.publisher.types())
}

func TestFeedService_CreateFeed_StorageFailureDiscardsBlobs(t *testing.T) {
	f := newFeedFixture(t)
	f.blobs.failAfter = 1

	_, err := f.feeds.CreateFeed(context.Background(), f.member.Email, images("a.jpg", "b.jpg"), f.room.ID, "t", "c")

	assert.ErrorIs(t, err, service.ErrInternalServer)
	assert.Zero(t, f.blobs.count(), "已写入的图片应被清理")
	_, total, err := f.env.feedRepo.FindByRoom(context.Background(), f.room.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestFeedService_GetFeed(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	created, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg"), f.room.ID, "t", "c")
	require.NoError(t, err)

	got, err := f.feeds.GetFeed(ctx, f.owner.Email, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)

	_, err = f.feeds.GetFeed(ctx, f.stranger.Email, created.ID)
	assert.ErrorIs(t, err, service.ErrNotParticipant)

	_, err = f.feeds.GetFeed(ctx, f.owner.Email, 9999)
	assert.ErrorIs(t, err, service.ErrFeedNotFound)
}

func TestFeedService_ModifyFeed(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	created, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg"), f.room.ID, "t", "c")
	require.NoError(t, err)

	_, err = f.feeds.ModifyFeed(ctx, f.owner.Email, created.ID, "hijack", "x")
	assert.ErrorIs(t, err, service.ErrNotAuthor, "房主不能修改他人的动态")

	updated, err := f.feeds.ModifyFeed(ctx, f.member.Email, created.ID, "new title", "new content")
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)

	reloaded, err := f.feeds.GetFeed(ctx, f.member.Email, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new content", reloaded.Content)
	keys, err := reloaded.ImageKeys()
	require.NoError(t, err)
	assert.Len(t, keys, 1, "修改不应影响图片")
	assert.Equal(t, []domain.FeedEventType{domain.FeedCreated, domain.FeedModified}, f.publisher.types())
}

func TestFeedService_DeleteFeed(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	created, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg", "b.jpg"), f.room.ID, "t", "c")
	require.NoError(t, err)

	assert.ErrorIs(t, f.feeds.DeleteFeed(ctx, f.owner.Email, created.ID), service.ErrNotAuthor)
	assert.Equal(t, 2, f.blobs.count())

	require.NoError(t, f.feeds.DeleteFeed(ctx, f.member.Email, created.ID))
	assert.Zero(t, f.blobs.count(), "删除动态应同时删除图片")

	_, err = f.feeds.GetFeed(ctx, f.member.Email, created.ID)
	assert.ErrorIs(t, err, service.ErrFeedNotFound)
	assert.ErrorIs(t, f.feeds.DeleteFeed(ctx, f.member.Email, created.ID), service.ErrFeedNotFound)
}

func TestFeedService_AuthorWhoLeftCannotModifyOrDelete(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	created, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg"), f.room.ID, "t", "c")
	require.NoError(t, err)
	require.NoError(t, f.rooms.LeaveRoom(ctx, f.member.Email, f.room.ID))

	_, err = f.feeds.ModifyFeed(ctx, f.member.Email, created.ID, "after leave", "x")
	assert.ErrorIs(t, err, service.ErrNotParticipant)
	assert.ErrorIs(t, f.feeds.DeleteFeed(ctx, f.member.Email, created.ID), service.ErrNotParticipant)

	got, err := f.feeds.GetFeed(ctx, f.owner.Email, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title, "离开后的修改不应生效")
	assert.Equal(t, 1, f.blobs.count(), "离开后的删除不应删除图片")
	assert.Equal(t, []domain.FeedEventType{domain.FeedCreated}, f.publisher.types())
}

func TestFeedService_DisabledRoomIsReadOnly(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	created, err := f.feeds.CreateFeed(ctx, f.owner.Email, images("a.jpg"), f.room.ID, "t", "c")
	require.NoError(t, err)
	require.NoError(t, f.rooms.LeaveRoom(ctx, f.member.Email, f.room.ID))
	require.NoError(t, f.rooms.DisableRoom(ctx, f.owner.Email, f.room.ID))

	_, err = f.feeds.CreateFeed(ctx, f.owner.Email, images("b.jpg"), f.room.ID, "t", "c")
	assert.ErrorIs(t, err, service.ErrRoomDisabled)

	_, err = f.feeds.ModifyFeed(ctx, f.owner.Email, created.ID, "x", "y")
	assert.ErrorIs(t, err, service.ErrRoomDisabled)

	feeds, total, err := f.feeds.ListRoomFeeds(ctx, f.owner.Email, f.room.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, feeds, 1)

	assert.NoError(t, f.feeds.DeleteFeed(ctx, f.owner.Email, created.ID), "作者仍可删除动态")
}

func TestFeedService_ListRoomFeeds_Pagination(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.feeds.CreateFeed(ctx, f.member.Email, images("a.jpg"), f.room.ID, fmt.Sprintf("feed %d", i), "c")
		require.NoError(t, err)
	}

	page1, total, err := f.feeds.ListRoomFeeds(ctx, f.owner.Email, f.room.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "feed 4", page1[0].Title, "最新的动态排在最前")

	page3, _, err := f.feeds.ListRoomFeeds(ctx, f.owner.Email, f.room.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "feed 0", page3[0].Title)

	beyond, total, err := f.feeds.ListRoomFeeds(ctx, f.owner.Email, f.room.ID, math.MaxInt/2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, beyond, "超大的页码应返回空页而不是第一页")

	_, _, err = f.feeds.ListRoomFeeds(ctx, f.stranger.Email, f.room.ID, 1, 2)
	assert.ErrorIs(t, err, service.ErrNotParticipant)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name             string
		page, size       int
		wantPage, wantSz int
	}{
		{"defaults", 0, 0, 1, 20},
		{"negative page", -3, 10, 1, 10},
		{"size capped", 2, 1000, 2, 100},
		{"page capped", math.MaxInt, 20, math.MaxInt / 20, 20},
		{"large page from query", 92233720368547760, 100, math.MaxInt / 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := service.NormalizePage(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSz, size)
			assert.Positive(t, (page-1)*size+1, "偏移量不能溢出")
		})
	}
}
