package server

import (
	"net/http"
	"strings"
	"time"

	"forum/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// rotatedRefreshKey 保存本次请求中旋转出的 refresh token，Logout 需要吊销的是它而不是请求里的旧 cookie。
const rotatedRefreshKey = "rotated_refresh_token"

// Session 从 access token 解析当前用户；access token 缺失或过期时，尝试用 refresh cookie 旋转出新的 token 对。
// 解析失败的请求按匿名处理，由 RequireLogin 决定是否跳转登录页。
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if tok := auth.TokenFromRequest(c); tok != "" {
			if claims, err := auth.ParseAccessToken(tok, h.cfg.JWTSecret); err == nil {
				if user, err := h.users.GetUser(ctx, claims.UserID); err == nil && user.IsActive {
					auth.SetUser(c, user)
					c.Next()
					return
				}
			}
		}
		if rt, err := c.Cookie(auth.RefreshCookie); err == nil && rt != "" {
			res, err := h.users.RefreshTokens(ctx, rt)
			if err != nil {
				log.Debug().Err(err).Msg("session refresh")
				h.clearSession(c)
			} else if user, err := h.users.GetUser(ctx, res.UserID); err == nil && user.IsActive {
				h.setSession(c, res.AccessToken, res.RefreshToken)
				c.Set(rotatedRefreshKey, res.RefreshToken)
				auth.SetUser(c, user)
			}
		}
		c.Next()
	}
}

// currentRefreshToken 返回当前有效的 refresh token：优先取本次旋转出的新值，其次取请求 cookie。
func currentRefreshToken(c *gin.Context) string {
	if rt := c.GetString(rotatedRefreshKey); rt != "" {
		return rt
	}
	rt, _ := c.Cookie(auth.RefreshCookie)
	return rt
}

func (h *Handler) setSession(c *gin.Context, accessToken, refreshToken string) {
	secure := !h.cfg.IsDev()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.AccessCookie, accessToken, int((time.Duration(h.cfg.AccessTokenTTLMinutes) * time.Minute).Seconds()), "/", "", secure, true)
	c.SetCookie(auth.RefreshCookie, refreshToken, int((time.Duration(h.cfg.RefreshTokenTTLDays) * 24 * time.Hour).Seconds()), "/", "", secure, true)
}

func (h *Handler) clearSession(c *gin.Context) {
	secure := !h.cfg.IsDev()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.AccessCookie, "", -1, "/", "", secure, true)
	c.SetCookie(auth.RefreshCookie, "", -1, "/", "", secure, true)
}

// safeNext 只接受站内相对路径，防止开放重定向。
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	return "/"
}
