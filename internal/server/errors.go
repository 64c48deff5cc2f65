package server

import (
	"errors"
	"net/http"
	"strconv"

	"forum/internal/auth"
	"forum/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// NotAllowedMessage 是所有权校验失败时返回的纯文本。
const NotAllowedMessage = "You are not allowed here"

// AuthFailedMessage 不区分邮箱不存在与密码错误。
const AuthFailedMessage = "User does not exist"

// respondError 把 service 层错误映射为 HTTP 响应。form 会在校验失败时原样回显。
func respondError(c *gin.Context, err error, form interface{}) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"form": form, "errors": ve.Fields})
	case errors.Is(err, service.ErrForbidden):
		log.Info().Uint("user_id", auth.GetUserID(c)).Str("path", c.Request.URL.Path).Msg("ownership check denied")
		c.String(http.StatusForbidden, NotAllowedMessage)
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrAuthenticationFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"page": "login", "messages": []string{AuthFailedMessage}})
	default:
		_ = c.Error(err)
		log.Error().Err(err).Str("path", c.FullPath()).Uint("user_id", auth.GetUserID(c)).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// parseID 解析路径参数 id，非法 id 视为不存在。
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
