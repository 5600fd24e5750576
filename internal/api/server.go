package api

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"wechat-relay/internal/config"
	"wechat-relay/internal/redis"
	"wechat-relay/internal/security"
	"wechat-relay/internal/storage"
	"wechat-relay/internal/store"
	"wechat-relay/internal/wechat"
)

type Server struct {
	log     *slog.Logger
	archive store.Archive
	cache   *redis.Client // nil when REDIS_DSN is not set
	media   storage.MediaStore
	pusher  *wechat.Client
	cfg     config.Config
	router  *gin.Engine
	hub     *Hub
	limiter *security.LimiterStore
}

func NewServer(log *slog.Logger, archive store.Archive, cache *redis.Client, media storage.MediaStore, pusher *wechat.Client, cfg config.Config) *Server {
	s := &Server{
		log:     log,
		archive: archive,
		cache:   cache,
		media:   media,
		pusher:  pusher,
		cfg:     cfg,
		router:  gin.New(),
		hub:     NewHub(log),
		limiter: security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())

	r.SetHTMLTemplate(template.Must(template.New("index.html").Parse(adminPage)))
	r.GET("/", s.adminIndex)

	// The platform retries undelivered pushes, so the webhook is exempt
	// from rate limiting.
	r.POST("/wechat", s.handleWebhook)

	api := r.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.POST("/push", s.pushMessage)
		api.POST("/broadcast", s.broadcastMessage)
		api.GET("/messages", s.getMessages)
		api.GET("/ws", s.handleWS)
	}

	r.GET("/healthz", s.health)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
