package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Kaleub/kaleub-back/internal/domain"
	gormpersistence "github.com/Kaleub/kaleub-back/internal/infra/persistence/gorm"
	"github.com/Kaleub/kaleub-back/internal/infra/setup"
)

// testEnv 是基于内存 SQLite 的真实仓储集合
type testEnv struct {
	db                *gorm.DB
	userRepo          *gormpersistence.GormUserRepository
	roomRepo          *gormpersistence.GormRoomRepository
	participationRepo *gormpersistence.GormParticipationRepository
	feedRepo          *gormpersistence.GormFeedRepository
	txManager         *gormpersistence.GormTxManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := setup.InitDB(setup.DBConfig{
		Driver: setup.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testEnv{
		db:                db,
		userRepo:          gormpersistence.NewGormUserRepository(db),
		roomRepo:          gormpersistence.NewGormRoomRepository(db),
		participationRepo: gormpersistence.NewGormParticipationRepository(db),
		feedRepo:          gormpersistence.NewGormFeedRepository(db),
		txManager:         gormpersistence.NewGormTxManager(db),
	}
}

// createUser 直接写入一个用户，跳过邮箱验证流程
func (e *testEnv) createUser(t *testing.T, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, Password: "unused", Role: domain.RoleUser}
	require.NoError(t, e.userRepo.Save(context.Background(), user))
	return user
}

// participationCount 直接统计参与记录行数
func (e *testEnv) participationCount(t *testing.T, roomID uint) int64 {
	t.Helper()
	n, err := e.participationRepo.CountByRoom(context.Background(), roomID)
	require.NoError(t, err)
	return n
}

// reloadRoom 从数据库重新读取房间
func (e *testEnv) reloadRoom(t *testing.T, roomID uint) *domain.Room {
	t.Helper()
	room, err := e.roomRepo.FindByID(context.Background(), roomID)
	require.NoError(t, err)
	return room
}

// assertLedgerConsistent 校验房间人数与参与记录一致
func (e *testEnv) assertLedgerConsistent(t *testing.T, roomID uint) {
	t.Helper()
	room := e.reloadRoom(t, roomID)
	require.Equal(t, int64(room.ParticipantsCount), e.participationCount(t, roomID), "participants_count 应等于参与记录数")
}

func userEmail(i int) string {
	return fmt.Sprintf("user%d@example.com", i)
}
