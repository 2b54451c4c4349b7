package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

// RoomDetail 是房间及其当前成员
type RoomDetail struct {
	Room         *domain.Room
	Participants []domain.User
}

// RoomService 负责房间和参与关系的业务规则。
// 加入、离开和停用都在锁住房间行的事务中完成，保证人数与参与记录一致。
type RoomService struct {
	userRepo          repository.UserRepository
	roomRepo          repository.RoomRepository
	participationRepo repository.ParticipationRepository
	txManager         repository.TxManager
	publisher         FeedEventPublisher // 可以为 nil
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(
	userRepo repository.UserRepository,
	roomRepo repository.RoomRepository,
	participationRepo repository.ParticipationRepository,
	txManager repository.TxManager,
) *RoomService {
	if userRepo == nil || roomRepo == nil || participationRepo == nil || txManager == nil {
		panic("repositories and TxManager cannot be nil for RoomService")
	}
	return &RoomService{
		userRepo:          userRepo,
		roomRepo:          roomRepo,
		participationRepo: participationRepo,
		txManager:         txManager,
	}
}

// WithEventPublisher 设置成员变更事件的发布者，离开房间的用户会因此断开推送连接
func (s *RoomService) WithEventPublisher(publisher FeedEventPublisher) *RoomService {
	s.publisher = publisher
	return s
}

// CreateRoom 创建房间，并在同一事务中写入房主的参与记录。
func (s *RoomService) CreateRoom(ctx context.Context, ownerEmail, title, rawPassword string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": ownerEmail, "operation": "CreateRoom"})

	owner, err := findUserByEmail(ctx, s.userRepo, ownerEmail, logCtx)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.WithField("user_id", owner.ID)

	hashedPassword, err := hashPassword(rawPassword)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash room password")
		return nil, ErrInternalServer
	}

	const maxInsertAttempts = 3
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		code, err := s.generateUniqueRoomCode(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate unique room code")
			return nil, ErrInternalServer
		}

		room := &domain.Room{
			Code:              code,
			OwnerID:           owner.ID,
			Title:             title,
			Password:          hashedPassword,
			ParticipantsCount: 1,
			Status:            domain.RoomStatusActive,
		}
		err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.roomRepo.Create(ctx, room); err != nil {
				return err
			}
			return s.participationRepo.Create(ctx, &domain.Participation{UserID: owner.ID, RoomID: room.ID})
		})
		if err == nil {
			logCtx.WithFields(logrus.Fields{"room_id": room.ID, "code": room.Code}).Info("Room created successfully")
			return room, nil
		}
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 检查与插入之间房间码被占用，换一个重试
			logCtx.WithError(err).Warnf("Room code taken concurrently, retrying (attempt %d)", attempt)
			continue
		}
		logCtx.WithError(err).Error("Failed to create room")
		return nil, ErrInternalServer
	}
	logCtx.Errorf("Failed to create room after %d attempts", maxInsertAttempts)
	return nil, ErrInternalServer
}

// JoinRoom 使用房间码和密码加入房间。
func (s *RoomService) JoinRoom(ctx context.Context, userEmail, code, rawPassword string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "code": code, "operation": "JoinRoom"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.WithField("user_id", user.ID)

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Join failed: no room with this code")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Join failed: error finding room by code")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	if !room.IsActive() {
		logCtx.Warn("Join failed: room is disabled")
		return nil, ErrRoomDisabled
	}
	if !checkPassword(rawPassword, room.Password) {
		logCtx.Warn("Join failed: invalid room password")
		return nil, ErrInvalidPassword
	}

	var joined *domain.Room
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.roomRepo.FindByIDForUpdate(ctx, room.ID)
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		// 加锁后重新检查，期间房间可能已被停用
		if !locked.IsActive() {
			return ErrRoomDisabled
		}
		exists, err := s.participationRepo.Exists(ctx, user.ID, locked.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInRoom
		}
		if locked.IsFull() {
			return ErrExceedCapacity
		}
		if err := s.participationRepo.Create(ctx, &domain.Participation{UserID: user.ID, RoomID: locked.ID}); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return ErrAlreadyInRoom
			}
			return err
		}
		if err := s.roomRepo.AdjustParticipantsCount(ctx, locked.ID, 1); err != nil {
			return err
		}
		locked.ParticipantsCount++
		joined = locked
		return nil
	})
	if err != nil {
		return nil, s.logTxError(logCtx, "Join failed", err)
	}

	logCtx.WithField("participants_count", joined.ParticipantsCount).Info("User joined room successfully")
	return joined, nil
}

// LeaveRoom 让非房主成员离开房间。
func (s *RoomService) LeaveRoom(ctx context.Context, userEmail string, roomID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "LeaveRoom"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return err
	}
	logCtx = logCtx.WithField("user_id", user.ID)

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		room, err := s.lockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		exists, err := s.participationRepo.Exists(ctx, user.ID, room.ID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAlreadyNotInRoom
		}
		if room.IsOwnedBy(user.ID) {
			if room.ParticipantsCount > 1 {
				return ErrOwnerCannotLeave
			}
			return ErrAlertLeaveRoom
		}
		if err := s.participationRepo.Delete(ctx, user.ID, room.ID); err != nil {
			if errors.Is(err, repository.ErrParticipationNotFound) {
				return ErrAlreadyNotInRoom
			}
			return err
		}
		return s.roomRepo.AdjustParticipantsCount(ctx, room.ID, -1)
	})
	if err != nil {
		return s.logTxError(logCtx, "Leave failed", err)
	}

	logCtx.Info("User left room successfully")
	if s.publisher != nil {
		event := domain.FeedEvent{Type: domain.ParticipantLeft, RoomID: roomID, UserID: user.ID, OccurredAt: time.Now()}
		if err := s.publisher.PublishFeedEvent(ctx, event); err != nil {
			logCtx.WithError(err).Warn("Failed to publish participant left event")
		}
	}
	return nil
}

// DisableRoom 由独自留在房间的房主停用房间。已停用的房间再次停用视为成功。
func (s *RoomService) DisableRoom(ctx context.Context, userEmail string, roomID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "DisableRoom"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return err
	}
	logCtx = logCtx.WithField("user_id", user.ID)

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		room, err := s.lockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.IsOwnedBy(user.ID) {
			return ErrNotOwner
		}
		if room.ParticipantsCount > 1 {
			return ErrNotAlone
		}
		if !room.IsActive() {
			return nil
		}
		return s.roomRepo.UpdateStatus(ctx, room.ID, domain.RoomStatusDisabled)
	})
	if err != nil {
		return s.logTxError(logCtx, "Disable failed", err)
	}

	logCtx.Info("Room disabled successfully")
	return nil
}

// ModifyRoomPassword 由房主修改房间密码，旧密码不正确时不做任何修改。
func (s *RoomService) ModifyRoomPassword(ctx context.Context, userEmail string, roomID uint, beforePassword, afterPassword string) error {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "ModifyRoomPassword"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return err
	}
	room, err := findRoom(ctx, s.roomRepo, roomID, logCtx)
	if err != nil {
		return err
	}
	if !room.IsOwnedBy(user.ID) {
		logCtx.Warn("Modify password failed: not owner")
		return ErrNotOwner
	}
	if !checkPassword(beforePassword, room.Password) {
		logCtx.Warn("Modify password failed: current password mismatch")
		return ErrInvalidPassword
	}

	hashedPassword, err := hashPassword(afterPassword)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash new room password")
		return ErrInternalServer
	}
	if err := s.roomRepo.UpdatePassword(ctx, room.ID, hashedPassword); err != nil {
		logCtx.WithError(err).Error("Failed to update room password")
		return ErrInternalServer
	}

	logCtx.Info("Room password modified successfully")
	return nil
}

// GetRoom 返回房间详情，仅房间成员可见。
func (s *RoomService) GetRoom(ctx context.Context, userEmail string, roomID uint) (*RoomDetail, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "GetRoom"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	room, err := findRoom(ctx, s.roomRepo, roomID, logCtx)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, room.ID, logCtx); err != nil {
		return nil, err
	}

	participants, err := s.participationRepo.FindUsersByRoom(ctx, room.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load room participants")
		return nil, ErrInternalServer
	}
	for i := range participants {
		participants[i].Password = ""
	}
	return &RoomDetail{Room: room, Participants: participants}, nil
}

// ListRooms 返回用户参与的全部房间。
func (s *RoomService) ListRooms(ctx context.Context, userEmail string) ([]domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "operation": "ListRooms"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	rooms, err := s.roomRepo.FindByParticipant(ctx, user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// EnsureParticipant 确认用户可以访问房间，供 WebSocket 连接前校验。
func (s *RoomService) EnsureParticipant(ctx context.Context, userEmail string, roomID uint) (*domain.User, error) {
	logCtx := logrus.WithFields(logrus.Fields{"email": userEmail, "room_id": roomID, "operation": "EnsureParticipant"})

	user, err := findUserByEmail(ctx, s.userRepo, userEmail, logCtx)
	if err != nil {
		return nil, err
	}
	if _, err := findRoom(ctx, s.roomRepo, roomID, logCtx); err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, s.participationRepo, user.ID, roomID, logCtx); err != nil {
		return nil, err
	}
	return user, nil
}

// --- 私有辅助函数 ---

// lockRoom 在当前事务中锁定房间行
func (s *RoomService) lockRoom(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := s.roomRepo.FindByIDForUpdate(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// logTxError 按错误类别记录日志，并返回可以交给调用方的错误
func (s *RoomService) logTxError(logCtx *logrus.Entry, msg string, err error) error {
	mapped := serviceError(err)
	if errors.Is(mapped, ErrInternalServer) {
		logCtx.WithError(err).Error(msg)
	} else {
		logCtx.WithError(mapped).Warn(msg)
	}
	return mapped
}

// generateUniqueRoomCode 生成未被占用的房间码
func (s *RoomService) generateUniqueRoomCode(ctx context.Context) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	const maxAttempts = 10

	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		code := string(b)

		exists, err := s.roomRepo.IsCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking room code: %w", err)
		}
		if !exists {
			logrus.WithField("code", code).Debugf("Generated unique room code after %d attempt(s).", attempt+1)
			return code, nil
		}
		logrus.WithField("code", code).Warnf("Generated room code already exists, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", maxAttempts)
}

// ReconcileParticipantsCounts 用参与记录修正所有房间的人数，返回被修正的房间数。
// 正常情况下结果为 0，非零说明有写入绕过了事务。
func (s *RoomService) ReconcileParticipantsCounts(ctx context.Context) (int64, error) {
	logCtx := logrus.WithField("operation", "ReconcileParticipantsCounts")
	fixed, err := s.roomRepo.ReconcileParticipantsCounts(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to reconcile participants counts")
		return 0, ErrInternalServer
	}
	if fixed > 0 {
		logCtx.WithField("rooms_fixed", fixed).Warn("Participants counts drifted and were repaired")
	} else {
		logCtx.Debug("Participants counts consistent")
	}
	return fixed, nil
}
