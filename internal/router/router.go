package router

import (
	"net/http"
	"time"

	"pasarmalam/internal/controller"
	"pasarmalam/internal/middleware"
	"pasarmalam/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controllers 控制器集合
type Controllers struct {
	Auth    *controller.AuthController
	Listing *controller.ListingController
	Wizard  *controller.WizardController
	AI      *controller.AIController
}

// Options 路由选项
type Options struct {
	Log           *zap.Logger
	Limiter       *middleware.CooldownLimiter // 为 nil 时使用全局限流器
	ScanCooldown  time.Duration               // 0 使用默认值
	ParseCooldown time.Duration
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(ctrls *Controllers, opts Options) *gin.Engine {
	log := logger.OrNop(opts.Log)

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.ZapLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
	})

	InitRoutes(r, ctrls, opts)
	return r
}

// InitRoutes 注册 API 路由
func InitRoutes(r *gin.Engine, ctrls *Controllers, opts Options) {
	api := r.Group("/api")
	{
		// auth 鉴权组
		auth := api.Group("/auth")
		{
			// POST /api/auth/login
			auth.POST("/login", ctrls.Auth.Login)
			// POST /api/auth/refresh
			auth.POST("/refresh", ctrls.Auth.RefreshToken)
			// GET /api/auth/me
			auth.GET("/me", middleware.JWTAuth(), ctrls.Auth.Me)
		}

		// 市集列表公开，其余操作需要登录
		listings := api.Group("/listings")
		{
			listings.GET("", ctrls.Listing.Feed)

			mine := listings.Group("", middleware.JWTAuth())
			mine.GET("/mine", ctrls.Listing.Mine)
			mine.DELETE("/:id", ctrls.Listing.Delete)
			mine.POST("/:id/status", ctrls.Listing.SetStatus)
			mine.POST("/:id/trade", ctrls.Listing.OpenForTrade)
		}

		// wizard 添加桌游向导
		wz := api.Group("/wizard", middleware.JWTAuth())
		{
			wz.POST("", ctrls.Wizard.Open)
			wz.GET("/:id", ctrls.Wizard.Get)
			wz.DELETE("/:id", ctrls.Wizard.Close)

			wz.POST("/:id/type", ctrls.Wizard.SelectType)
			wz.POST("/:id/method", ctrls.Wizard.SelectMethod)
			wz.POST("/:id/back", ctrls.Wizard.Back)

			// 获取方式，AI 接口按用户冷却
			wz.GET("/:id/search", ctrls.Wizard.Search)
			wz.POST("/:id/select", ctrls.Wizard.Select)
			wz.POST("/:id/scan",
				middleware.AICooldown(opts.Limiter, middleware.AIKindScan, opts.ScanCooldown),
				ctrls.Wizard.Scan)
			wz.POST("/:id/parse",
				middleware.AICooldown(opts.Limiter, middleware.AIKindParse, opts.ParseCooldown),
				ctrls.Wizard.Parse)

			// 表单
			wz.PUT("/:id/form", ctrls.Wizard.UpdateForm)
			wz.POST("/:id/form", ctrls.Wizard.SubmitForm)
			wz.POST("/:id/form/images", ctrls.Wizard.AddFormImages)
			wz.DELETE("/:id/form/images/:index", ctrls.Wizard.RemoveFormImage)
			wz.POST("/:id/form/cover", ctrls.Wizard.SetFormCover)
			wz.POST("/:id/form/fetch-cover", ctrls.Wizard.FetchCover)
			wz.POST("/:id/form/description", ctrls.Wizard.GenerateDescription)

			// 审核
			wz.POST("/:id/drafts", ctrls.Wizard.AddMore)
			wz.POST("/:id/drafts/:index/edit", ctrls.Wizard.EditDraft)
			wz.DELETE("/:id/drafts/:index", ctrls.Wizard.DeleteDraft)
			wz.PATCH("/:id/drafts/:index/price", ctrls.Wizard.SetDraftPrice)
			wz.POST("/:id/drafts/:index/cover", ctrls.Wizard.SetDraftCover)
			wz.POST("/:id/autofill", ctrls.Wizard.AutoFill)
			wz.POST("/:id/commit", ctrls.Wizard.Commit)
		}

		// ai 用量
		ai := api.Group("/ai", middleware.JWTAuth())
		{
			ai.GET("/usage", ctrls.AI.Usage)
		}
	}
}
