package service

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

const (
	defaultFeedPageSize = 20
	maxFeedPageSize     = 100
)

// ImageUpload 是待保存的一张图片
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// FeedEventPublisher 把动态变更推送给房间内的在线成员
type FeedEventPublisher interface {
	PublishFeedEvent(ctx context.Context, event domain.FeedEvent) error
}

// FeedService 负责房间内照片动态的业务规则。
type FeedService struct {
	userRepo          repository.UserRepository
	roomRepo          repository.RoomRepository
	participationRepo repository.ParticipationRepository
	feedRepo          repository.FeedRepository
	blobStore         repository.BlobStore
	publisher         FeedEventPublisher // 可以为 nil
}

// NewFeedService 创建 FeedService 实例。publisher 可以为 nil。
func NewFeedService(
	userRepo repository.UserRepository,
	roomRepo repository.RoomRepository,
	participationRepo repository.ParticipationRepository,
	feedRepo repository.FeedRepository,
	blobStore repository.BlobStore,
	publisher FeedEventPublisher,
) *FeedService {
	if userRepo == nil || roomRepo == nil || participationRepo == nil || feedRepo == nil || blobStore == nil {
		panic("repositories and BlobStore cannot be nil for FeedService")
	}
	return &FeedService{
		userRepo:          userRepo,
		roomRepo:          roomRepo,
		participationRepo: participationRepo,
		feedRepo:          feedRepo,
		blobStore:         blobStore,
		publisher:         publisher,
	}
}

// CreateFeed 保存图片并在房间内发布一条动态。
// 任一步骤失败时会删除已经写入的图片。
func (s *FeedService) CreateFeed(ctx context.Context, userEmail string, images []ImageUpload, roomID uint, title, content string) (*domain.Feed, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "CreateFeed"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.WithField("user_id", user.ID)

	room, err := findRoom(ctx, s.roomRepo, roomID, logCtx)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, room.ID, logCtx); err != nil {
		return nil, err
	}
	if !room.IsActive() {
		logCtx.Warn("Create feed failed: room is disabled")
		return nil, ErrRoomDisabled
	}
	if len(images) == 0 {
		logCtx.Warn("Create feed failed: no images")
		return nil, ErrInvalidFeed
	}

	keys := make([]string, 0, len(images))
	for _, img := range images {
		key, err := s.blobStore.Put(ctx, img.Filename, img.Content)
		if err != nil {
			logCtx.WithError(err).WithField("filename", img.Filename).Error("Failed to store feed image")
			s.discardBlobs(keys, logCtx)
			return nil, ErrInternalServer
		}
		keys = append(keys, key)
	}

	feed := &domain.Feed{
		RoomID:  room.ID,
		UserID:  user.ID,
		Title:   title,
		Content: content,
	}
	if err := feed.SetImageKeys(keys); err != nil {
		logCtx.WithError(err).Error("Failed to encode feed images")
		s.discardBlobs(keys, logCtx)
		return nil, ErrInternalServer
	}
	if err := s.feedRepo.Create(ctx, feed); err != nil {
		logCtx.WithError(err).Error("Failed to save feed")
		s.discardBlobs(keys, logCtx)
		return nil, ErrInternalServer
	}

	logCtx.WithFields(logrus.Fields{"feed_id": feed.ID, "images": len(keys)}).Info("Feed created successfully")
	s.publish(ctx, domain.FeedCreated, feed, logCtx)
	return feed, nil
}

// GetFeed 返回一条动态，仅房间成员可见。已停用房间的动态仍然可读。
func (s *FeedService) GetFeed(ctx context.Context, userEmail string, feedID uint) (*domain.Feed, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "feed_id": feedID, "operation": "GetFeed"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	feed, err := s.findFeed(ctx, feedID, logCtx)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, feed.RoomID, logCtx); err != nil {
		return nil, err
	}
	return feed, nil
}

// ModifyFeed 由仍在房间内的作者修改标题和内容。已停用房间的动态不能再修改。
func (s *FeedService) ModifyFeed(ctx context.Context, userEmail string, feedID uint, title, content string) (*domain.Feed, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "feed_id": feedID, "operation": "ModifyFeed"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	feed, err := s.findFeed(ctx, feedID, logCtx)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, feed.RoomID, logCtx); err != nil {
		return nil, err
	}
	if !feed.IsAuthoredBy(user.ID) {
		logCtx.Warn("Modify feed failed: not author")
		return nil, ErrNotAuthor
	}
	room, err := findRoom(ctx, s.roomRepo, feed.RoomID, logCtx)
	if err != nil {
		return nil, err
	}
	if !room.IsActive() {
		logCtx.Warn("Modify feed failed: room is disabled")
		return nil, ErrRoomDisabled
	}

	feed.Title = title
	feed.Content = content
	if err := s.feedRepo.Update(ctx, feed); err != nil {
		logCtx.WithError(err).Error("Failed to update feed")
		return nil, ErrInternalServer
	}

	logCtx.Info("Feed modified successfully")
	s.publish(ctx, domain.FeedModified, feed, logCtx)
	return feed, nil
}

// DeleteFeed 由仍在房间内的作者删除动态，图片尽力删除。
func (s *FeedService) DeleteFeed(ctx context.Context, userEmail string, feedID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "feed_id": feedID, "operation": "DeleteFeed"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return err
	}
	feed, err := s.findFeed(ctx, feedID, logCtx)
	if err != nil {
		return err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, feed.RoomID, logCtx); err != nil {
		return err
	}
	if !feed.IsAuthoredBy(user.ID) {
		logCtx.Warn("Delete feed failed: not author")
		return ErrNotAuthor
	}

	if err := s.feedRepo.Delete(ctx, feed.ID); err != nil {
		if errors.Is(err, repository.ErrFeedNotFound) {
			logCtx.Warn("Delete feed failed: already deleted")
			return ErrFeedNotFound
		}
		logCtx.WithError(err).Error("Failed to delete feed")
		return ErrInternalServer
	}

	keys, err := feed.ImageKeys()
	if err != nil {
		logCtx.WithError(err).Warn("Failed to decode images of deleted feed, blobs left behind")
	} else {
		s.discardBlobs(keys, logCtx)
	}

	logCtx.Info("Feed deleted successfully")
	s.publish(ctx, domain.FeedDeleted, feed, logCtx)
	return nil
}

// ListRoomFeeds 分页返回房间动态（最新的在前）和总数。page 从 1 开始。
func (s *FeedService) ListRoomFeeds(ctx context.Context, userEmail string, roomID uint, page, size int) ([]domain.Feed, int64, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "ListRoomFeeds"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, 0, err
	}
	if _, err := findRoom(ctx, s.roomRepo, roomID, logCtx); err != nil {
		return nil, 0, err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, roomID, logCtx); err != nil {
		return nil, 0, err
	}

	page, size = NormalizePage(page, size)
	feeds, total, err := s.feedRepo.FindByRoom(ctx, roomID, (page-1)*size, size)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list feeds")
		return nil, 0, ErrInternalServer
	}
	return feeds, total, nil
}

// NormalizePage 把分页参数规范到有效范围。
// page 的上限保证 (page-1)*size 不会溢出，超出范围的页返回空结果。
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultFeedPageSize
	}
	if size > maxFeedPageSize {
		size = maxFeedPageSize
	}
	if maxPage := math.MaxInt / size; page > maxPage {
		page = maxPage
	}
	return page, size
}

// ImageURLs 把动态的图片 key 转成访问地址
func (s *FeedService) ImageURLs(feed *domain.Feed) ([]string, error) {
	keys, err := feed.ImageKeys()
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(keys))
	for i, key := range keys {
		urls[i] = s.blobStore.URL(key)
	}
	return urls, nil
}

// --- 私有辅助函数 ---

func (s *FeedService) findFeed(ctx context.Context, feedID uint, logCtx *logrus.Entry) (*domain.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		if errors.Is(err, repository.ErrFeedNotFound) {
			logCtx.Warn("Feed not found")
			return nil, ErrFeedNotFound
		}
		logCtx.WithError(err).Error("Failed to load feed")
		return nil, ErrInternalServer
	}
	return feed, nil
}

// discardBlobs 删除图片，使用独立的 context 以免请求取消后留下孤儿文件
func (s *FeedService) discardBlobs(keys []string, logCtx *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.blobStore.Delete(ctx, key); err != nil && !errors.Is(err, repository.ErrBlobNotFound) {
			logCtx.WithError(err).WithField("blob_key", key).Warn("Failed to delete feed image")
		}
	}
}

func (s *FeedService) publish(ctx context.Context, eventType domain.FeedEventType, feed *domain.Feed, logCtx *logrus.Entry) {
	if s.publisher == nil {
		return
	}
	event := domain.FeedEvent{
		Type:       eventType,
		RoomID:     feed.RoomID,
		FeedID:     feed.ID,
		UserID:     feed.UserID,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.PublishFeedEvent(ctx, event); err != nil {
		logCtx.WithError(err).WithField("event", eventType).Warn("Failed to publish feed event")
	}
}
