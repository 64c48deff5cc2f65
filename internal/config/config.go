package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret 仅供本地开发使用，非 dev 环境启动时会被 Validate 拒绝。
const DefaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string
	Env                   string
	LogLevel              string
	DatabaseDriver        string
	DatabaseDSN           string
	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	MediaDir              string
	CORSOrigins           []string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvPositiveInt 解析失败或非正数时回退到默认值。
func getenvPositiveInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load 读取环境变量；若当前目录存在 .env 文件则先加载它（已存在的环境变量优先）。
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                  getenv("APP_PORT", "8080"),
		Env:                   getenv("APP_ENV", "dev"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		DatabaseDriver:        getenv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:           getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=forum port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:             getenv("JWT_SECRET", DefaultJWTSecret),
		AccessTokenTTLMinutes: getenvPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTLDays:   getenvPositiveInt("REFRESH_TOKEN_TTL_DAYS", 7),
		MediaDir:              getenv("MEDIA_DIR", "./media"),
		CORSOrigins:           splitList(os.Getenv("CORS_ORIGINS")),
	}
}

// IsDev 判断是否为本地开发环境。
func (c Config) IsDev() bool { return c.Env == "dev" }

// Validate 检查启动所需的关键配置。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("APP_PORT must not be empty")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN must not be empty")
	}
	switch cfg.DatabaseDriver {
	case "", "postgres", "mysql", "sqlite":
	default:
		return errors.New("DATABASE_DRIVER must be one of postgres, mysql, sqlite")
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if !cfg.IsDev() && cfg.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be changed outside dev")
	}
	return nil
}
