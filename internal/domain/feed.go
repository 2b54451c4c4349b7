package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Feed 表示房间内的一条照片动态。
type Feed struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    uint           `gorm:"index;not null"`
	UserID    uint           `gorm:"index;not null"` // 作者
	Title     string         `gorm:"type:varchar(100);not null"`
	Content   string         `gorm:"type:text;not null"`
	Images    datatypes.JSON `gorm:"not null"` // blob key 的 JSON 数组，保持上传顺序
	CreatedAt time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

// IsAuthoredBy 判断给定用户是否为作者。
func (f *Feed) IsAuthoredBy(userID uint) bool {
	return f.UserID == userID
}

// ImageKeys 将 Images 字段解析为 blob key 列表。
func (f *Feed) ImageKeys() ([]string, error) {
	if len(f.Images) == 0 || string(f.Images) == "null" {
		return []string{}, nil
	}
	var keys []string
	if err := json.Unmarshal(f.Images, &keys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed images: %w", err)
	}
	return keys, nil
}

// SetImageKeys 将 blob key 列表序列化到 Images 字段。
func (f *Feed) SetImageKeys(keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	bytes, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal feed images: %w", err)
	}
	f.Images = datatypes.JSON(bytes)
	return nil
}
