package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wechat-relay/internal/wechat"
)

// PostgresArchive serves the same contract as SQLiteArchive for operators
// who already run Postgres. Selected when DB_DSN is set.
type PostgresArchive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresArchive(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresArchive, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	// prefer prepared statements safely via pgx automatic statement cache
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	a := &PostgresArchive{pool: pool, logger: logger}

	if err := a.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return a, nil
}

func (a *PostgresArchive) migrate(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS messages (
		id             BIGSERIAL PRIMARY KEY,
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
		received_at    TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS subscribers (
		open_id    TEXT PRIMARY KEY,
		subscribed BOOLEAN NOT NULL DEFAULT TRUE,
		first_seen TIMESTAMPTZ DEFAULT NOW(),
		last_seen  TIMESTAMPTZ DEFAULT NOW()
	);
	`)
	return err
}

func (a *PostgresArchive) Append(ctx context.Context, m *wechat.Message) bool {
	p := projection(m)
	_, err := a.pool.Exec(ctx,
		`INSERT INTO messages (msg_id, create_time, formatted_time, msg_type,
			from_user, to_user, content, pic_url, media_id, format, thumb_media_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7], p[8], p[9], p[10],
	)
	if err != nil {
		a.logger.Error("message_append_failed", "msg_id", m.MsgID, "error", err)
		return false
	}
	return true
}

func (a *PostgresArchive) ReadAll(ctx context.Context) []Row {
	rows, err := a.pool.Query(ctx,
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

func (a *PostgresArchive) UpsertSubscriber(ctx context.Context, openid string, subscribed bool) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO subscribers (open_id, subscribed)
		 VALUES ($1, $2)
		 ON CONFLICT (open_id) DO UPDATE SET
			subscribed = EXCLUDED.subscribed,
			last_seen = NOW()`,
		openid, subscribed,
	)
	return err
}

func (a *PostgresArchive) Subscribers(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT open_id FROM subscribers WHERE subscribed ORDER BY first_seen`,
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

func (a *PostgresArchive) Close() error {
	a.pool.Close()
	return nil
}
