package wechat

import (
	"strings"
	"testing"
	"time"
)

func TestParse_TextMessage(t *testing.T) {
	xml := `<xml><ToUserName>OA</ToUserName><FromUserName>U1</FromUserName><CreateTime>1700000000</CreateTime><MsgType>text</MsgType><MsgId>1</MsgId><Content>hi</Content></xml>`

	m, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.ToUserName != "OA" || m.FromUserName != "U1" {
		t.Errorf("expected OA/U1, got %s/%s", m.ToUserName, m.FromUserName)
	}
	if m.CreateTime != "1700000000" {
		t.Errorf("expected raw create time 1700000000, got %s", m.CreateTime)
	}
	if m.MsgType != MsgTypeText || m.MsgID != "1" {
		t.Errorf("expected text/1, got %s/%s", m.MsgType, m.MsgID)
	}
	if m.Content != "hi" {
		t.Errorf("expected content hi, got %s", m.Content)
	}

	// formatted time is local-timezone dependent
	want := time.Unix(1700000000, 0).Format("2006-01-02 15:04:05")
	if m.CreateTimeFormatted != want {
		t.Errorf("expected formatted time %s, got %s", want, m.CreateTimeFormatted)
	}
}

func TestParse_TypeSpecificFields(t *testing.T) {
	tests := []struct {
		name  string
		xml   string
		check func(t *testing.T, m *Message)
	}{
		{
			name: "image",
			xml:  `<xml><MsgType>image</MsgType><PicUrl>http://p</PicUrl><MediaId>m1</MediaId><Content>ignored</Content></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.PicURL != "http://p" || m.MediaID != "m1" {
					t.Errorf("expected pic/media, got %s/%s", m.PicURL, m.MediaID)
				}
				if m.Content != "" {
					t.Errorf("content must stay empty for image messages, got %q", m.Content)
				}
			},
		},
		{
			name: "voice",
			xml:  `<xml><MsgType>voice</MsgType><MediaId>m2</MediaId><Format>amr</Format></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.MediaID != "m2" || m.Format != "amr" {
					t.Errorf("expected m2/amr, got %s/%s", m.MediaID, m.Format)
				}
			},
		},
		{
			name: "video",
			xml:  `<xml><MsgType>video</MsgType><MediaId>m3</MediaId><ThumbMediaId>t3</ThumbMediaId></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.MediaID != "m3" || m.ThumbMediaID != "t3" {
					t.Errorf("expected m3/t3, got %s/%s", m.MediaID, m.ThumbMediaID)
				}
			},
		},
		{
			name: "shortvideo shares video handling",
			xml:  `<xml><MsgType>shortvideo</MsgType><MediaId>m4</MediaId><ThumbMediaId>t4</ThumbMediaId></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.MediaID != "m4" || m.ThumbMediaID != "t4" {
					t.Errorf("expected m4/t4, got %s/%s", m.MediaID, m.ThumbMediaID)
				}
			},
		},
		{
			name: "location",
			xml:  `<xml><MsgType>location</MsgType><Location_X>23.1</Location_X><Location_Y>113.3</Location_Y><Scale>20</Scale><Label>somewhere</Label></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.LocationX != "23.1" || m.LocationY != "113.3" || m.Scale != "20" || m.Label != "somewhere" {
					t.Errorf("location fields not populated: %+v", m)
				}
			},
		},
		{
			name: "link",
			xml:  `<xml><MsgType>link</MsgType><Title>a title</Title><Description>d</Description><Url>http://l</Url></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.Title != "a title" || m.Description != "d" || m.URL != "http://l" {
					t.Errorf("link fields not populated: %+v", m)
				}
			},
		},
		{
			name: "event",
			xml:  `<xml><MsgType>event</MsgType><Event>subscribe</Event><EventKey>k</EventKey></xml>`,
			check: func(t *testing.T, m *Message) {
				if m.Event != EventSubscribe || m.EventKey != "k" {
					t.Errorf("event fields not populated: %+v", m)
				}
				if m.MsgID != "" {
					t.Errorf("event messages carry no MsgId, got %q", m.MsgID)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.xml))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, m)
		})
	}
}

func TestParse_UnknownTypeKeepsBaseFields(t *testing.T) {
	xml := `<xml><ToUserName>OA</ToUserName><FromUserName>U1</FromUserName><MsgType>music</MsgType><Content>x</Content><MediaId>m</MediaId></xml>`

	m, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.MsgType != "music" {
		t.Errorf("expected msg type music, got %s", m.MsgType)
	}
	if m.Content != "" || m.MediaID != "" {
		t.Errorf("unknown type must not populate optional fields: %+v", m)
	}
}

func TestParse_MissingFieldsDefaultToEmpty(t *testing.T) {
	m, err := Parse([]byte(`<xml><MsgType>text</MsgType></xml>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.ToUserName != "" || m.FromUserName != "" || m.CreateTime != "" || m.MsgID != "" || m.Content != "" {
		t.Errorf("missing elements must decode to empty strings: %+v", m)
	}
	if m.CreateTimeFormatted != "" {
		t.Errorf("absent create time formats to empty string, got %q", m.CreateTimeFormatted)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not xml", "hello world"},
		{"truncated", "<xml><MsgType>text"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.in)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestFormatCreateTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"non-numeric", "yesterday", InvalidTimeMarker},
		{"numeric", "1700000000", time.Unix(1700000000, 0).Format("2006-01-02 15:04:05")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCreateTime(tt.in); got != tt.want {
				t.Errorf("formatCreateTime(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewTextReply_SwapsUsers(t *testing.T) {
	in := &Message{ToUserName: "OA", FromUserName: "U1", MsgType: MsgTypeText}
	now := time.Unix(1700000100, 0)

	out, err := NewTextReply(in, "thanks", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := string(out)
	if !strings.Contains(doc, "<ToUserName><![CDATA[U1]]></ToUserName>") {
		t.Errorf("reply recipient must be the original sender: %s", doc)
	}
	if !strings.Contains(doc, "<FromUserName><![CDATA[OA]]></FromUserName>") {
		t.Errorf("reply sender must be the account: %s", doc)
	}
	if !strings.Contains(doc, "<MsgType><![CDATA[text]]></MsgType>") {
		t.Errorf("reply kind must be text: %s", doc)
	}
	if !strings.Contains(doc, "<CreateTime>1700000100</CreateTime>") {
		t.Errorf("reply must carry the supplied timestamp: %s", doc)
	}
	if !strings.Contains(doc, "<![CDATA[thanks]]>") {
		t.Errorf("reply must carry the canned content: %s", doc)
	}
}
