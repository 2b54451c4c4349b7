package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/infra/blob"
	gormpersistence "github.com/Kaleub/kaleub-back/internal/infra/persistence/gorm"
	"github.com/Kaleub/kaleub-back/internal/infra/setup"
	"github.com/Kaleub/kaleub-back/internal/repository/mocks"
	"github.com/Kaleub/kaleub-back/internal/service"
)

const routerTestSecret = "router-test-secret"

type routerFixture struct {
	router    *gin.Engine
	uploadDir string
	owner     *domain.User
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := setup.InitDB(setup.DBConfig{Driver: setup.DriverSQLite, DSN: "file:router_" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	uploadDir := t.TempDir()
	store, err := blob.NewLocalBlobStore(uploadDir, "http://localhost/images")
	require.NoError(t, err)

	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	participationRepo := gormpersistence.NewGormParticipationRepository(db)
	feedRepo := gormpersistence.NewGormFeedRepository(db)

	authService, err := service.NewAuthService(userRepo, new(mocks.VerificationRepository), new(mocks.VerificationMailer),
		routerTestSecret, 1, service.AuthOptions{})
	require.NoError(t, err)
	services := &Services{
		Auth: authService,
		Room: service.NewRoomService(userRepo, roomRepo, participationRepo, gormpersistence.NewGormTxManager(db)),
		Feed: service.NewFeedService(userRepo, roomRepo, participationRepo, feedRepo, store, nil),
	}

	owner := &domain.User{Email: "owner@example.com", Password: "hash", Role: domain.RoleUser}
	require.NoError(t, db.Create(owner).Error)

	cfg := &Config{
		JWTSecret:          routerTestSecret,
		UploadDir:          uploadDir,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MailRateLimit:      5,
		MailRateWindow:     time.Minute,
	}
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})

	return &routerFixture{
		router:    NewRouter(cfg, log, services, nil),
		uploadDir: uploadDir,
		owner:     owner,
	}
}

func (f *routerFixture) token(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": f.owner.ID,
		"email":   f.owner.Email,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(routerTestSecret))
	require.NoError(t, err)
	return signed
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Ping(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestRouter_RoomRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/room", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CreateAndListRooms(t *testing.T) {
	f := newRouterFixture(t)
	token := f.token(t)

	body := bytes.NewBufferString(`{"title":"trip","password":"secret1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/room", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := f.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Status int `json:"status"`
		Data   struct {
			ID                uint   `json:"id"`
			Code              string `json:"code"`
			OwnerID           uint   `json:"ownerId"`
			ParticipantsCount int    `json:"participantsCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, http.StatusCreated, created.Status)
	assert.Equal(t, f.owner.ID, created.Data.OwnerID)
	assert.Equal(t, 1, created.Data.ParticipantsCount)
	assert.NotEmpty(t, created.Data.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/room", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Data []struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, created.Data.ID, listed.Data[0].ID)
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newRouterFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/room", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := f.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ServesUploadedImages(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.uploadDir, "a.jpg"), []byte("jpeg-bytes"), 0o644))

	w := f.do(httptest.NewRequest(http.MethodGet, "/images/a.jpg", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg-bytes", w.Body.String())
}
