package server

import (
	"net/http"

	"forum/internal/auth"
	"forum/internal/config"
	"forum/internal/metrics"
	"forum/internal/mw"
	"forum/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// LoginPath 是 RequireLogin 跳转的登录路由。
const LoginPath = "/login"

// SetupRouter 统一初始化 Gin 中间件、只读 API 以及网页端路由。
func SetupRouter(cfg config.Config, db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestID())
	r.Use(mw.Logger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/media", cfg.MediaDir)

	query := service.NewQueryService(db)
	users := service.NewUserService(db, cfg)
	rooms := service.NewRoomService(db)
	msgs := service.NewMessageService(db)

	// 只读 API 不依赖会话。
	NewAPI(query).Register(r.Group("/api"))

	h := NewHandler(cfg, users, rooms, msgs, query)
	web := r.Group("")
	web.Use(h.Session())
	login := auth.RequireLogin(LoginPath)

	web.GET("/login", h.LoginPage)
	web.POST("/login", h.Login)
	web.GET("/logout", h.Logout)
	web.POST("/logout", h.Logout)
	web.GET("/register", h.RegisterPage)
	web.POST("/register", h.Register)

	web.GET("/", h.Home)
	web.GET("/room/:id", h.Room)
	web.POST("/room/:id", login, h.PostMessage)
	web.GET("/profile/:id", h.Profile)
	web.GET("/topics", h.Topics)
	web.GET("/activity", h.Activity)

	authed := web.Group("", login)
	authed.GET("/create-room", h.CreateRoomPage)
	authed.POST("/create-room", h.CreateRoom)
	authed.GET("/update-room/:id", h.UpdateRoomPage)
	authed.POST("/update-room/:id", h.UpdateRoom)
	authed.GET("/delete-room/:id", h.DeleteRoomPage)
	authed.POST("/delete-room/:id", h.DeleteRoom)
	authed.GET("/delete-message/:id", h.DeleteMessagePage)
	authed.POST("/delete-message/:id", h.DeleteMessage)
	authed.GET("/update-user", h.UpdateUserPage)
	authed.POST("/update-user", h.UpdateUser)

	return r
}
