package mw

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader 是请求 id 的请求/响应头。
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID 复用客户端传入的请求 id，没有则生成一个新的 UUID，并写回响应头。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 返回当前请求的 id，未经过 RequestID 中间件时为空。
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger 在请求结束后输出一条访问日志，5xx 记为 error，4xx 记为 warn。
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		switch {
		case status >= 500:
			evt = log.Error()
		case status >= 400:
			evt = log.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", GetRequestID(c)).
			Str("remote_addr", c.ClientIP()).
			Msg("request completed")
	}
}
