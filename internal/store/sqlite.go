package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"wechat-relay/internal/wechat"
)

// SQLiteArchive is the default Archive backend: a single database file at a
// fixed relative path. The pool is capped at one connection so appends are
// serialized; there is no read-modify-write cycle to race on.
type SQLiteArchive struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteArchive(dbPath string, logger *slog.Logger) (*SQLiteArchive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &SQLiteArchive{db: db, logger: logger}

	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		msg_id         TEXT,
		create_time    TEXT,
		formatted_time TEXT,
		msg_type       TEXT,
		from_user      TEXT,
		to_user        TEXT,
		content        TEXT,
		pic_url        TEXT,
		media_id       TEXT,
		format         TEXT,
		thumb_media_id TEXT,
		received_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_user);

	CREATE TABLE IF NOT EXISTS subscribers (
		open_id    TEXT PRIMARY KEY,
		subscribed INTEGER NOT NULL DEFAULT 1,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := a.db.Exec(schema)
	return err
}

func (a *SQLiteArchive) Append(ctx context.Context, m *wechat.Message) bool {
	p := projection(m)
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO messages (msg_id, create_time, formatted_time, msg_type,
			from_user, to_user, content, pic_url, media_id, format, thumb_media_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7], p[8], p[9], p[10],
	)
	if err != nil {
		a.logger.Error("message_append_failed", "msg_id", m.MsgID, "error", err)
		return false
	}
	return true
}

func (a *SQLiteArchive) ReadAll(ctx context.Context) []Row {
	rows, err := a.db.QueryContext(ctx,
		`SELECT msg_id, create_time, formatted_time, msg_type, from_user,
			to_user, content, pic_url, media_id, format, thumb_media_id
		 FROM messages ORDER BY id`,
	)
	if err != nil {
		a.logger.Error("message_read_failed", "error", err)
		return []Row{}
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var v [11]string
		if err := rows.Scan(&v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7], &v[8], &v[9], &v[10]); err != nil {
			a.logger.Warn("message_row_scan_failed", "error", err)
			continue
		}
		r := make(Row, len(ColumnLabels))
		for i, label := range ColumnLabels {
			r[label] = v[i]
		}
		out = append(out, r)
	}
	return out
}

func (a *SQLiteArchive) UpsertSubscriber(ctx context.Context, openid string, subscribed bool) error {
	sub := 0
	if subscribed {
		sub = 1
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO subscribers (open_id, subscribed)
		 VALUES (?, ?)
		 ON CONFLICT(open_id) DO UPDATE SET
			subscribed = excluded.subscribed,
			last_seen = CURRENT_TIMESTAMP`,
		openid, sub,
	)
	return err
}

func (a *SQLiteArchive) Subscribers(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT open_id FROM subscribers WHERE subscribed = 1 ORDER BY first_seen`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
