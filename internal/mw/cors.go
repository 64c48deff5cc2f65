package mw

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS 返回跨域中间件：dev 环境允许所有来源，其他环境只允许 origins 中列出的来源。
// 会话依赖 cookie，因此始终开启 AllowCredentials。
func CORS(env string, origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if env == "dev" {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
		if len(origins) == 0 {
			// 未配置时仅同源请求可用，跨域请求一律拒绝。
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	}
	return cors.New(cfg)
}
