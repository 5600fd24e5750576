package config

import (
	"os"
	"strings"
)

type Config struct {
	HTTPAddr string
	LogLevel string
	DataPath string

	// WeChat official-account credentials; empty values are allowed and
	// simply make outbound auth fail at call time.
	AppID     string
	AppSecret string
	APIBase   string
	ReplyText string

	DBDSN    string // optional Postgres archive backend
	RedisDSN string // optional response cache

	R2Endpoint  string
	R2Bucket    string
	R2PublicURL string
	R2Region    string

	CORSOrigins []string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
		DataPath:    getenvDefault("DATA_PATH", "data/messages.db"),
		AppID:       os.Getenv("WECHAT_APP_ID"),
		AppSecret:   os.Getenv("WECHAT_APP_SECRET"),
		APIBase:     getenvDefault("WECHAT_API_BASE", "https://api.weixin.qq.com"),
		ReplyText:   getenvDefault("REPLY_TEXT", "Your message has been received, thank you!"),
		DBDSN:       os.Getenv("DB_DSN"),
		RedisDSN:    os.Getenv("REDIS_DSN"),
		R2Endpoint:  getenvDefault("R2_ENDPOINT", ""),
		R2Bucket:    getenvDefault("R2_BUCKET", ""),
		R2PublicURL: getenvDefault("R2_PUBLIC_URL", ""),
		R2Region:    getenvDefault("R2_REGION", "auto"),
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"*"}
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
