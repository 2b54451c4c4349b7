package domain

import "time"

// UserRole 表示用户角色。
type UserRole string

const (
	RoleUser  UserRole = "ROLE_USER"
	RoleAdmin UserRole = "ROLE_ADMIN"
)

// User 表示一个已通过邮箱验证的账号。
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_users_email;not null"`
	Password  string    `gorm:"type:varchar(255);not null"` // bcrypt 哈希
	Role      UserRole  `gorm:"type:varchar(32);not null;default:ROLE_USER"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
