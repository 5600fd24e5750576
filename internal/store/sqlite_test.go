package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"wechat-relay/internal/wechat"
)

func newTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "messages.db"), logger)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestReadAll_EmptyStore(t *testing.T) {
	a := newTestArchive(t)

	rows := a.ReadAll(context.Background())
	if rows == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestAppendReadAll_RoundTrip(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	msg := &wechat.Message{
		ToUserName:          "OA",
		FromUserName:        "U1",
		CreateTime:          "1700000000",
		CreateTimeFormatted: time.Unix(1700000000, 0).Format("2006-01-02 15:04:05"),
		MsgType:             wechat.MsgTypeText,
		MsgID:               "1",
		Content:             "hi",
	}

	if !a.Append(ctx, msg) {
		t.Fatal("append failed")
	}

	rows := a.ReadAll(ctx)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	want := map[string]string{
		"Message ID":     "1",
		"Create Time":    "1700000000",
		"Formatted Time": msg.CreateTimeFormatted,
		"Message Type":   "text",
		"From User":      "U1",
		"To User":        "OA",
		"Content":        "hi",
		"Picture URL":    "",
		"Media ID":       "",
		"Format":         "",
		"Thumb Media ID": "",
	}

	row := rows[0]
	if len(row) != len(ColumnLabels) {
		t.Errorf("expected %d columns, got %d", len(ColumnLabels), len(row))
	}
	for label, v := range want {
		if row[label] != v {
			t.Errorf("column %q: expected %q, got %v", label, v, row[label])
		}
	}
}

func TestAppend_LossyProjectionDropsLocationFields(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	msg := &wechat.Message{
		ToUserName:   "OA",
		FromUserName: "U1",
		MsgType:      wechat.MsgTypeLocation,
		LocationX:    "23.1",
		LocationY:    "113.3",
		Scale:        "20",
		Label:        "somewhere",
	}

	if !a.Append(ctx, msg) {
		t.Fatal("append failed")
	}

	rows := a.ReadAll(ctx)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	// the fixed schema has no location columns; everything optional is ""
	for _, label := range []string{"Content", "Picture URL", "Media ID", "Format", "Thumb Media ID"} {
		if rows[0][label] != "" {
			t.Errorf("column %q: expected empty, got %v", label, rows[0][label])
		}
	}
}

func TestReadAll_PreservesAppendOrder(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	ids := []string{"first", "second", "third"}
	for _, id := range ids {
		if !a.Append(ctx, &wechat.Message{MsgID: id, MsgType: wechat.MsgTypeText}) {
			t.Fatalf("append %s failed", id)
		}
	}

	rows := a.ReadAll(ctx)
	if len(rows) != len(ids) {
		t.Fatalf("expected %d rows, got %d", len(ids), len(rows))
	}
	for i, id := range ids {
		if rows[i]["Message ID"] != id {
			t.Errorf("row %d: expected %s, got %v", i, id, rows[i]["Message ID"])
		}
	}
}

func TestSubscribers_UpsertAndFlag(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	if err := a.UpsertSubscriber(ctx, "u1", true); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := a.UpsertSubscriber(ctx, "u2", true); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	// repeated upsert must not duplicate
	if err := a.UpsertSubscriber(ctx, "u1", true); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	subs, err := a.Subscribers(ctx)
	if err != nil {
		t.Fatalf("subscribers failed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscribers, got %d: %v", len(subs), subs)
	}

	// unsubscribe removes from the broadcast list
	if err := a.UpsertSubscriber(ctx, "u1", false); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	subs, err = a.Subscribers(ctx)
	if err != nil {
		t.Fatalf("subscribers failed: %v", err)
	}
	if len(subs) != 1 || subs[0] != "u2" {
		t.Errorf("expected only u2 subscribed, got %v", subs)
	}
}
