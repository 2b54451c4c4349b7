package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

// businessErrors 是可以直接返回给调用方的业务错误
var businessErrors = []error{
	ErrDuplicateEmail, ErrInvalidOrExpiredCode, ErrEmailNotVerified, ErrAuthenticationFailed,
	ErrUserNotFound, ErrRoomNotFound, ErrInvalidPassword, ErrAlreadyInRoom, ErrExceedCapacity,
	ErrNotOwner, ErrNotAlone, ErrAlreadyNotInRoom, ErrOwnerCannotLeave, ErrAlertLeaveRoom,
	ErrNotParticipant, ErrRoomDisabled, ErrFeedNotFound, ErrNotAuthor, ErrInvalidFeed,
}

// serviceError 从事务等包装过的错误中取回业务错误，其余一律视为内部错误
func serviceError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return ErrInternalServer
}

// findUserByEmail 解析当前操作的用户
func findUserByEmail(ctx context.Context, userRepo repository.UserRepository, email string, logCtx *logrus.Entry) (*domain.User, error) {
	user, err := userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Acting user not found")
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Failed to load acting user")
		return nil, ErrInternalServer
	}
	return user, nil
}

// findRoom 根据 ID 查找房间并映射错误
func findRoom(ctx context.Context, roomRepo repository.RoomRepository, roomID uint, logCtx *logrus.Entry) (*domain.Room, error) {
	room, err := roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to load room")
		return nil, ErrInternalServer
	}
	return room, nil
}

// requireParticipant 确认用户属于房间
func requireParticipant(ctx context.Context, participationRepo repository.ParticipationRepository, userID, roomID uint, logCtx *logrus.Entry) error {
	ok, err := participationRepo.Exists(ctx, userID, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check participation")
		return ErrInternalServer
	}
	if !ok {
		logCtx.Warn("User is not a participant of the room")
		return ErrNotParticipant
	}
	return nil
}
