package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service 是每条日志附带的 service 字段。
const Service = "forum"

// ParseLevel 解析 LOG_LEVEL，空值或无法解析时使用 info。
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// New 构造写入 w 的 logger：dev 环境输出控制台格式，其余环境输出 JSON。
func New(w io.Writer, env string) zerolog.Logger {
	if env == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("service", Service).Logger()
}

// Init 初始化全局 logger 与全局日志级别。
func Init(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = New(os.Stdout, env)
}
