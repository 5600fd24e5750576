package wechat

import (
	"encoding/xml"
	"time"
)

type cdata struct {
	Value string `xml:",cdata"`
}

type textReply struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   cdata    `xml:"ToUserName"`
	FromUserName cdata    `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      cdata    `xml:"MsgType"`
	Content      cdata    `xml:"Content"`
}

// NewTextReply builds the synchronous auto-reply document for an inbound
// message: recipient and sender swapped, fresh timestamp, fixed text kind.
func NewTextReply(in *Message, content string, now time.Time) ([]byte, error) {
	reply := textReply{
		ToUserName:   cdata{in.FromUserName},
		FromUserName: cdata{in.ToUserName},
		CreateTime:   now.Unix(),
		MsgType:      cdata{MsgTypeText},
		Content:      cdata{content},
	}
	return xml.Marshal(reply)
}
