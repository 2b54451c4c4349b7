package service

import "errors"

// 业务规则错误：调用方修正输入后可以重试
var (
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrInvalidPassword      = errors.New("invalid room password")
	ErrAlreadyInRoom        = errors.New("user already in room")
	ErrExceedCapacity       = errors.New("room is full")
	ErrNotOwner             = errors.New("user is not the room owner")
	ErrNotAlone             = errors.New("room still has other participants")
	ErrAlreadyNotInRoom     = errors.New("user is not in room")
	ErrOwnerCannotLeave     = errors.New("owner cannot leave while other participants remain")
	ErrAlertLeaveRoom       = errors.New("owner is the only participant, disable the room instead")
	ErrNotParticipant       = errors.New("user is not a participant of the room")
	ErrRoomDisabled         = errors.New("room is disabled")
	ErrFeedNotFound         = errors.New("feed not found")
	ErrNotAuthor            = errors.New("user is not the author of the feed")
	ErrInvalidFeed          = errors.New("feed requires at least one image")
)

// 基础设施错误：与业务规则无关，稍后重试可能成功
var (
	ErrMailDelivery   = errors.New("verification mail could not be dispatched")
	ErrInternalServer = errors.New("internal server error")
)

// IsTransient 判断错误是否属于基础设施故障
func IsTransient(err error) bool {
	return errors.Is(err, ErrMailDelivery) || errors.Is(err, ErrInternalServer)
}
