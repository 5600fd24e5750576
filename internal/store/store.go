package store

import (
	"context"

	"wechat-relay/internal/wechat"
)

// ColumnLabels is the fixed header of the message archive. History readers
// are coupled to this exact label set and order.
var ColumnLabels = [11]string{
	"Message ID",
	"Create Time",
	"Formatted Time",
	"Message Type",
	"From User",
	"To User",
	"Content",
	"Picture URL",
	"Media ID",
	"Format",
	"Thumb Media ID",
}

// Row is one archived message keyed by the header labels.
type Row map[string]any

// Archive persists inbound messages and the subscriber registry.
// Append and ReadAll never propagate storage errors to the HTTP layer:
// failures are logged and surface as false / an empty slice.
type Archive interface {
	Append(ctx context.Context, m *wechat.Message) bool
	ReadAll(ctx context.Context) []Row
	UpsertSubscriber(ctx context.Context, openid string, subscribed bool) error
	Subscribers(ctx context.Context) ([]string, error)
	Close() error
}

// projection flattens a message onto the fixed column order. Fields that
// do not apply to the message type serialize as empty strings; location,
// link and event fields are intentionally not archived.
func projection(m *wechat.Message) [11]string {
	return [11]string{
		m.MsgID,
		m.CreateTime,
		m.CreateTimeFormatted,
		m.MsgType,
		m.FromUserName,
		m.ToUserName,
		m.Content,
		m.PicURL,
		m.MediaID,
		m.Format,
		m.ThumbMediaID,
	}
}
