package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wechat-relay/internal/store"
	"wechat-relay/internal/wechat"
)

// ackBody is the acknowledgement the platform expects. Anything else makes
// it retry delivery, so every failure path inside the webhook ends here.
const ackBody = "success"

const messagesCacheKey = "messages:all"

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.log.Warn("webhook_body_read_failed", "error", err)
		c.String(http.StatusOK, ackBody)
		return
	}

	msg, err := wechat.Parse(body)
	if err != nil {
		s.log.Warn("webhook_parse_failed", "error", err)
		c.String(http.StatusOK, ackBody)
		return
	}

	s.log.Info("message_received",
		"msg_type", msg.MsgType,
		"msg_id", msg.MsgID,
		"from", msg.FromUserName,
	)

	ctx, cancel := s.ctx(c)
	defer cancel()

	// Archive result is logged but never changes the response.
	if s.archive.Append(ctx, msg) {
		s.invalidateMessagesCache(ctx)
		s.hub.Broadcast(rowFromMessage(msg))
	} else {
		s.log.Warn("message_archive_failed", "msg_id", msg.MsgID)
	}

	s.trackSender(ctx, msg)

	if msg.MsgType == wechat.MsgTypeImage && msg.PicURL != "" {
		go s.archiveMedia(msg.MsgID, msg.PicURL)
	}

	if msg.MsgType != wechat.MsgTypeText {
		c.String(http.StatusOK, ackBody)
		return
	}

	reply, err := wechat.NewTextReply(msg, s.cfg.ReplyText, time.Now())
	if err != nil {
		s.log.Error("reply_build_failed", "msg_id", msg.MsgID, "error", err)
		c.String(http.StatusOK, ackBody)
		return
	}

	c.Data(http.StatusOK, "text/xml; charset=utf-8", reply)
}

// trackSender keeps the subscriber registry current: any sender is a known
// recipient for broadcast, and subscribe/unsubscribe events flip the flag.
func (s *Server) trackSender(ctx context.Context, msg *wechat.Message) {
	openid := msg.FromUserName
	if openid == "" {
		return
	}

	subscribed := true
	if msg.MsgType == wechat.MsgTypeEvent && msg.Event == wechat.EventUnsubscribe {
		subscribed = false
	}

	if err := s.archive.UpsertSubscriber(ctx, openid, subscribed); err != nil {
		s.log.Warn("subscriber_upsert_failed", "openid", openid, "error", err)
	}
}

func (s *Server) archiveMedia(msgID, picURL string) {
	url, err := s.media.ArchiveImage(msgID, picURL)
	if err != nil {
		s.log.Warn("media_archive_failed", "msg_id", msgID, "error", err)
		return
	}
	s.log.Info("media_archived", "msg_id", msgID, "url", url)
}

func (s *Server) pushMessage(c *gin.Context) {
	var req struct {
		OpenID  string `json:"openid"`
		Content string `json:"content"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "openid and content are required"})
		return
	}
	if strings.TrimSpace(req.OpenID) == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "openid and content are required"})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	ok, msg := s.pusher.SendText(ctx, req.OpenID, req.Content)
	if ok {
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "error", "message": msg})
}

func (s *Server) broadcastMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}

	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "content is required"})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	openids, err := s.archive.Subscribers(ctx)
	if err != nil {
		s.log.Error("subscriber_list_failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "failed to load subscriber list"})
		return
	}

	sent, failed, errs := s.pusher.Broadcast(ctx, openids, req.Content)

	status := "success"
	if failed > 0 {
		status = "error"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"sent":   sent,
		"failed": failed,
		"errors": errs,
	})
}

func (s *Server) getMessages(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, messagesCacheKey); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	rows := s.archive.ReadAll(ctx)
	response := gin.H{"status": "success", "messages": rows}

	if s.cache != nil {
		if jsonData, err := json.Marshal(response); err == nil {
			s.cache.Set(ctx, messagesCacheKey, string(jsonData), 30*time.Second)
		}
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) invalidateMessagesCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, messagesCacheKey); err != nil {
		s.log.Warn("messages_cache_invalidate_failed", "error", err)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	redisStatus := "not_configured"
	if s.cache != nil {
		redisStatus = "connected"
		if err := s.cache.RDB().Ping(ctx).Err(); err != nil {
			redisStatus = "disconnected"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"redis":        redisStatus,
		"ws_listeners": s.hub.Count(),
	})
}

func (s *Server) adminIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// rowFromMessage mirrors the archived projection for live feed listeners.
func rowFromMessage(m *wechat.Message) store.Row {
	return store.Row{
		store.ColumnLabels[0]:  m.MsgID,
		store.ColumnLabels[1]:  m.CreateTime,
		store.ColumnLabels[2]:  m.CreateTimeFormatted,
		store.ColumnLabels[3]:  m.MsgType,
		store.ColumnLabels[4]:  m.FromUserName,
		store.ColumnLabels[5]:  m.ToUserName,
		store.ColumnLabels[6]:  m.Content,
		store.ColumnLabels[7]:  m.PicURL,
		store.ColumnLabels[8]:  m.MediaID,
		store.ColumnLabels[9]:  m.Format,
		store.ColumnLabels[10]: m.ThumbMediaID,
	}
}
