package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/Kaleub/kaleub-back/internal/handler/http"
	wsHandler "github.com/Kaleub/kaleub-back/internal/handler/websocket"
	"github.com/Kaleub/kaleub-back/internal/hub"
	"github.com/Kaleub/kaleub-back/internal/infra/blob"
	"github.com/Kaleub/kaleub-back/internal/infra/mail"
	gormpersistence "github.com/Kaleub/kaleub-back/internal/infra/persistence/gorm"
	"github.com/Kaleub/kaleub-back/internal/infra/setup"
	redisstate "github.com/Kaleub/kaleub-back/internal/infra/state/redis"
	"github.com/Kaleub/kaleub-back/internal/middleware"
	"github.com/Kaleub/kaleub-back/internal/service"
	"github.com/Kaleub/kaleub-back/internal/tasks"
	"github.com/Kaleub/kaleub-back/internal/worker"
)

// App 包含应用的所有组件和配置
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	Scheduler      *asynq.Scheduler
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
}

// Services 是 NewServices 组装好的业务层
type Services struct {
	Auth *service.AuthService
	Room *service.RoomService
	Feed *service.FeedService
}

// NewLogger 按配置设置全局 logrus，业务代码直接使用 logrus 包级函数
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // 已在 LoadConfig 中校验
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}
	log := NewLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	blobStore, err := blob.NewLocalBlobStore(cfg.UploadDir, cfg.ImageBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}

	var mailSender worker.MailSender = mail.LogSender{}
	if cfg.SMTP.Host != "" {
		smtpSender, err := mail.NewSMTPSender(cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("failed to init SMTP sender: %w", err)
		}
		mailSender = smtpSender
	} else {
		log.Warn("SMTP_HOST not set, verification mails will only be logged")
	}
	log.Info("Infrastructure initialized successfully")

	hubInstance := hub.NewHub(redisClient, cfg.KeyPrefix)

	services, err := NewServices(cfg, db, redisClient, tasks.NewTaskMailer(asynqClient), blobStore, hubInstance)
	if err != nil {
		return nil, err
	}
	log.Info("Services initialized")

	workerServer := worker.NewWorkerServer(redisClientOpt, mailSender, services.Room, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := NewRouter(cfg, log, services,
		wsHandler.NewWebSocketHandler(hubInstance, services.Room, cfg.CORSAllowedOrigins),
		middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow),
	)
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// NewServices 组装仓储和业务层
func NewServices(
	cfg *Config,
	db *gorm.DB,
	redisClient *redis.Client,
	mailer service.VerificationMailer,
	blobStore *blob.LocalBlobStore,
	publisher service.FeedEventPublisher,
) (*Services, error) {
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	participationRepo := gormpersistence.NewGormParticipationRepository(db)
	feedRepo := gormpersistence.NewGormFeedRepository(db)
	txManager := gormpersistence.NewGormTxManager(db)
	verificationRepo := redisstate.NewRedisVerificationRepository(redisClient, cfg.KeyPrefix)

	authService, err := service.NewAuthService(userRepo, verificationRepo, mailer, cfg.JWTSecret, cfg.JWTExpiryHours,
		service.AuthOptions{CodeTTL: cfg.VerificationCodeTTL, VerifiedTTL: cfg.VerifiedTTL})
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	return &Services{
		Auth: authService,
		Room: service.NewRoomService(userRepo, roomRepo, participationRepo, txManager).WithEventPublisher(publisher),
		Feed: service.NewFeedService(userRepo, roomRepo, participationRepo, feedRepo, blobStore, publisher),
	}, nil
}

// NewRouter 创建 Gin Engine 并注册全部路由。
// extra 中的中间件在路由注册之前挂到全局，ws 为 nil 时不注册 WebSocket 路由。
func NewRouter(cfg *Config, log *logrus.Logger, services *Services, ws *wsHandler.WebSocketHandler, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	if len(cfg.CORSAllowedOrigins) == 0 || cfg.CORSAllowedOrigins[0] == "*" {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowCredentials = true
	}
	corsCfg.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsCfg))
	router.Use(extra...)

	// 上传的图片由本地目录直接提供
	router.Static("/images", cfg.UploadDir)

	authHandler := httpHandler.NewAuthHandler(services.Auth)
	roomHandler := httpHandler.NewRoomHandler(services.Room, services.Feed)
	feedHandler := httpHandler.NewFeedHandler(services.Feed)
	authRequired := middleware.Auth(cfg.JWTSecret)

	v1 := router.Group("/v1")
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup/email/check", authHandler.CheckEmail)
		authRoutes.POST("/signup/email", middleware.MailThrottle(cfg.MailRateLimit, cfg.MailRateWindow), authHandler.SendVerificationCode)
		authRoutes.POST("/signup/email/complete", authHandler.VerifyEmail)
		authRoutes.POST("/signup", authHandler.SignUp)
		authRoutes.POST("/signin", authHandler.SignIn)
		authRoutes.GET("/check", authRequired, authHandler.Check)
	}
	roomRoutes := v1.Group("/room", authRequired)
	{
		roomRoutes.POST("", roomHandler.CreateRoom)
		roomRoutes.GET("", roomHandler.ListRooms)
		roomRoutes.GET("/:roomId", roomHandler.GetRoom)
		roomRoutes.GET("/:roomId/feeds", roomHandler.ListFeeds)
		roomRoutes.POST("/join", roomHandler.JoinRoom)
		roomRoutes.POST("/leave", roomHandler.LeaveRoom)
		roomRoutes.POST("/disable", roomHandler.DisableRoom)
		roomRoutes.PUT("/password", roomHandler.ModifyRoomPassword)
	}
	feedRoutes := v1.Group("/feed", authRequired)
	{
		feedRoutes.POST("", feedHandler.CreateFeed)
		feedRoutes.GET("/:feedId", feedHandler.GetFeed)
		feedRoutes.PUT("", feedHandler.ModifyFeed)
		feedRoutes.DELETE("", feedHandler.DeleteFeed)
	}
	if ws != nil {
		router.GET("/ws/rooms/:roomId", authRequired, ws.HandleConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewRoomReconcilePayload()
	if err != nil {
		a.Log.Errorf("Failed to create room reconcile task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeRoomReconcile, payload)

	schedule := a.Config.ReconcileSchedule
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("low"), asynq.MaxRetry(1))
	if err != nil {
		a.Log.Errorf("Could not register periodic room reconcile task: %v", err)
		return
	}
	a.Log.Infof("Periodic room reconcile task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	a.Scheduler = scheduler

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			return
		}
		a.Log.Info("Asynq scheduler stopped.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 先停止接收新请求
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.Hub != nil {
		a.Hub.StopAllSubscriptions()
	}
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
		a.Log.Info("Asynq scheduler shut down.")
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		} else {
			a.Log.Info("Database connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			// 不记录查询参数中的 access_token
			if c.Query("access_token") != "" {
				path += "?access_token=***"
			} else {
				path += "?" + c.Request.URL.RawQuery
			}
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
