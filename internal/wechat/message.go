package wechat

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"
)

// Message types pushed by the official-account platform.
const (
	MsgTypeText       = "text"
	MsgTypeImage      = "image"
	MsgTypeVoice      = "voice"
	MsgTypeVideo      = "video"
	MsgTypeShortVideo = "shortvideo"
	MsgTypeLocation   = "location"
	MsgTypeLink       = "link"
	MsgTypeEvent      = "event"
)

// Event values carried by event-type messages that matter to the relay.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
)

// InvalidTimeMarker is stored when CreateTime is present but not numeric.
const InvalidTimeMarker = "Invalid time"

const timeLayout = "2006-01-02 15:04:05"

// envelope mirrors the raw XML document. Missing elements decode to "".
type envelope struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   string   `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	MsgID        string   `xml:"MsgId"`
	Content      string   `xml:"Content"`
	PicURL       string   `xml:"PicUrl"`
	MediaID      string   `xml:"MediaId"`
	Format       string   `xml:"Format"`
	ThumbMediaID string   `xml:"ThumbMediaId"`
	LocationX    string   `xml:"Location_X"`
	LocationY    string   `xml:"Location_Y"`
	Scale        string   `xml:"Scale"`
	Label        string   `xml:"Label"`
	Title        string   `xml:"Title"`
	Description  string   `xml:"Description"`
	URL          string   `xml:"Url"`
	Event        string   `xml:"Event"`
	EventKey     string   `xml:"EventKey"`
}

// Message is a normalized inbound record. The base five fields are always
// set; only the optional fields matching MsgType are populated, everything
// else stays empty.
type Message struct {
	ToUserName          string
	FromUserName        string
	CreateTime          string
	CreateTimeFormatted string
	MsgType             string
	MsgID               string

	Content      string
	PicURL       string
	MediaID      string
	Format       string
	ThumbMediaID string
	LocationX    string
	LocationY    string
	Scale        string
	Label        string
	Title        string
	Description  string
	URL          string
	Event        string
	EventKey     string
}

// Parse decodes an inbound push document into a normalized Message.
// Malformed XML yields an error; callers treat that as "no record".
func Parse(data []byte) (*Message, error) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message xml: %w", err)
	}

	m := &Message{
		ToUserName:          env.ToUserName,
		FromUserName:        env.FromUserName,
		CreateTime:          env.CreateTime,
		CreateTimeFormatted: formatCreateTime(env.CreateTime),
		MsgType:             env.MsgType,
		MsgID:               env.MsgID,
	}

	switch env.MsgType {
	case MsgTypeText:
		m.Content = env.Content
	case MsgTypeImage:
		m.PicURL = env.PicURL
		m.MediaID = env.MediaID
	case MsgTypeVoice:
		m.MediaID = env.MediaID
		m.Format = env.Format
	case MsgTypeVideo, MsgTypeShortVideo:
		m.MediaID = env.MediaID
		m.ThumbMediaID = env.ThumbMediaID
	case MsgTypeLocation:
		m.LocationX = env.LocationX
		m.LocationY = env.LocationY
		m.Scale = env.Scale
		m.Label = env.Label
	case MsgTypeLink:
		m.Title = env.Title
		m.Description = env.Description
		m.URL = env.URL
	case MsgTypeEvent:
		m.Event = env.Event
		m.EventKey = env.EventKey
	default:
		// unknown type keeps only the base fields
	}

	return m, nil
}

func formatCreateTime(raw string) string {
	if raw == "" {
		return ""
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return InvalidTimeMarker
	}
	return time.Unix(sec, 0).Format(timeLayout)
}
