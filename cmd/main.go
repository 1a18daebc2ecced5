package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pasarmalam/internal/config"
	"pasarmalam/internal/controller"
	"pasarmalam/internal/middleware"
	"pasarmalam/internal/model"
	"pasarmalam/internal/repository"
	"pasarmalam/internal/router"
	"pasarmalam/internal/service"
	"pasarmalam/internal/task"
	"pasarmalam/internal/wizard"
	"pasarmalam/pkg/client"
	"pasarmalam/pkg/database"
	"pasarmalam/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("加载配置失败: " + err.Error() + "\n")
		os.Exit(1)
	}

	// 2. 初始化日志
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		_, _ = os.Stderr.WriteString("初始化日志失败: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// 3. 初始化数据库（可选）
	db := initDatabase(cfg, log)

	// 4. 初始化依赖
	deps := initDependencies(cfg, db, log)

	// 5. 启动定时任务
	tasks := initTasks(cfg, deps, log)

	// 6. 初始化路由
	gin.SetMode(cfg.Server.Mode)
	r := router.SetupRouter(deps.Controllers, router.Options{
		Log:           log,
		ScanCooldown:  cfg.AI.ScanCooldown,
		ParseCooldown: cfg.AI.ParseCooldown,
	})

	// 7. 启动服务
	startServer(cfg, r, tasks, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Backend     *client.BackendClient
	Repos       *Repositories
	Services    *Services
	Wizard      *wizard.Manager
	Controllers *router.Controllers
}

// Repositories 仓库集合，未启用数据库时字段为 nil
type Repositories struct {
	AiCallLog repository.AICallLogRepository
	GameCache repository.GameCacheRepository
}

// Services 服务集合
type Services struct {
	Auth    *service.AuthService
	Listing *service.ListingService
	Catalog *service.CatalogService
	AI      *service.AIService
}

// ==================== 初始化函数 ====================

// initDatabase DSN 为空时返回 nil
func initDatabase(cfg *config.Config, log *zap.Logger) *gorm.DB {
	if !cfg.Database.Enabled() {
		log.Info("未配置数据库，桌游缓存仅在内存，AI 调用不记录")
		return nil
	}

	db, err := database.InitDB(database.Config{
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogSQL:          cfg.Database.LogSQL,
	}, log, &model.AICallLog{}, &model.GameCache{})
	if err != nil {
		log.Fatal("数据库初始化失败", zap.Error(err))
	}
	return db
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Dependencies {
	middleware.SetJWTConfig(initJWTConfig(cfg))

	// -------- 后端客户端 --------
	backend := client.NewBackendClient(client.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		RetryCount: cfg.Backend.RetryCount,
		Debug:      cfg.Backend.Debug,
	})

	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 桌游数据库 & AI --------
	services := &Services{
		Auth:    service.NewAuthService(backend, log.Named("auth")),
		Listing: service.NewListingService(backend, log.Named("listing")),
		Catalog: initCatalogService(cfg, backend, repos, log.Named("catalog")),
		AI:      initAIService(cfg, backend, repos, log.Named("ai")),
	}

	// -------- 上架向导 --------
	manager := wizard.NewManager(&wizard.Deps{
		Catalog:        services.Catalog,
		Recognizer:     services.AI,
		Parser:         services.AI,
		Sink:           backend,
		EnrichInterval: cfg.Wizard.EnrichInterval,
		DebounceDelay:  cfg.Wizard.DebounceDelay,
		Log:            log.Named("wizard"),
	})

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		Auth:    controller.NewAuthController(services.Auth),
		Listing: controller.NewListingController(services.Listing),
		Wizard:  controller.NewWizardController(manager, services.Listing, services.Listing, log.Named("wizard")),
		AI:      controller.NewAIController(services.AI),
	}

	return &Dependencies{
		DB:          db,
		Backend:     backend,
		Repos:       repos,
		Services:    services,
		Wizard:      manager,
		Controllers: controllers,
	}
}

func initJWTConfig(cfg *config.Config) *middleware.JWTConfig {
	jwtCfg := middleware.DefaultJWTConfig()
	if cfg.JWT.Secret != "" {
		jwtCfg.SecretKey = cfg.JWT.Secret
	}
	if cfg.JWT.AccessTokenTTL > 0 {
		jwtCfg.AccessTokenTTL = cfg.JWT.AccessTokenTTL
	}
	if cfg.JWT.RefreshTokenTTL > 0 {
		jwtCfg.RefreshTokenTTL = cfg.JWT.RefreshTokenTTL
	}
	if cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = cfg.JWT.Issuer
	}
	return jwtCfg
}

// initRepositories 未启用数据库时返回空集合
func initRepositories(db *gorm.DB) *Repositories {
	if db == nil {
		return &Repositories{}
	}
	return &Repositories{
		AiCallLog: repository.NewAICallLogRepository(db),
		GameCache: repository.NewGameCacheRepository(db),
	}
}

// initCatalogService 按配置选择后端代理或直连 BGG，外面统一套缓存层
func initCatalogService(cfg *config.Config, backend *client.BackendClient, repos *Repositories, log *zap.Logger) *service.CatalogService {
	var upstream service.GameSearcher = backend
	if cfg.Catalog.Provider == "bgg" {
		upstream = service.NewBGGService(service.BGGConfig{
			BaseURL: cfg.Catalog.BGGURL,
			Token:   cfg.Catalog.BGGToken,
			Timeout: cfg.Backend.Timeout,
		}, log)
	}
	return service.NewCatalogService(upstream, repos.GameCache, service.CatalogConfig{
		Provider: cfg.Catalog.Provider,
		MemTTL:   cfg.Catalog.MemoryTTL,
		DBTTL:    cfg.Catalog.DBTTL,
	}, log)
}

// initAIService 按配置选择后端 AI 接口或直连 Gemini
func initAIService(cfg *config.Config, backend *client.BackendClient, repos *Repositories, log *zap.Logger) *service.AIService {
	var provider service.AIProvider = backend
	if cfg.AI.Provider == "gemini" {
		provider = service.NewGeminiService(service.GeminiConfig{
			APIKey: cfg.AI.GeminiAPIKey,
			Model:  cfg.AI.GeminiModel,
		}, log)
	}
	return service.NewAIService(provider, cfg.AI.Provider, repos.AiCallLog, log)
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(cfg *config.Config, deps *Dependencies, log *zap.Logger) *task.TaskManager {
	taskCfg := task.DefaultConfig()
	taskCfg.PollEnabled = cfg.Poll.Enabled
	if cfg.Poll.Spec != "" {
		taskCfg.PollSpec = cfg.Poll.Spec
	}
	taskCfg.PollTimeout = cfg.Poll.Timeout
	if cfg.Wizard.CleanupSpec != "" {
		taskCfg.CleanupSpec = cfg.Wizard.CleanupSpec
	}
	taskCfg.SessionMaxIdle = cfg.Wizard.SessionTTL

	tm := task.NewTaskManager(&task.TaskManagerDeps{
		Feed:     deps.Services.Listing,
		Sessions: deps.Wizard,
		Cache:    deps.Services.Catalog,
		Log:      log.Named("task"),
	}, taskCfg)
	if err := tm.Start(); err != nil {
		log.Fatal("定时任务启动失败", zap.Error(err))
	}
	return tm
}

// ==================== 服务启动 ====================

// startServer 启动服务并等待退出信号
func startServer(cfg *config.Config, r *gin.Engine, tasks *task.TaskManager, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 异步启动服务
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	tasks.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
	}

	log.Info("服务已退出")
}
