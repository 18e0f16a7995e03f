package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/brand-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

// Timestamps are stored as fixed-width UTC text so that string comparison
// orders them chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	website      TEXT NOT NULL DEFAULT '',
	mode         TEXT NOT NULL,
	profile      TEXT NOT NULL,
	report       TEXT NOT NULL DEFAULT '',
	sources      TEXT NOT NULL DEFAULT '[]',
	usage        TEXT NOT NULL DEFAULT '{}',
	cost         REAL NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	profile_id   TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	platform     TEXT NOT NULL,
	topic        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'draft',
	scheduled_at TEXT,
	published_at TEXT,
	external_id  TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	attempts     INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_profile_id ON posts(profile_id);
CREATE INDEX IF NOT EXISTS idx_posts_due ON posts(status, scheduled_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return utcNow()
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, rec *model.ProfileRecord) error {
	profileJSON, sourcesJSON, usageJSON, err := marshalProfile(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}
	now := formatTime(s.clock())

	var created, updated string
	err = s.db.QueryRowContext(ctx, `INSERT INTO profiles (id, company_name, website, mode, profile, report, sources, usage, cost, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	company_name = excluded.company_name,
	website      = excluded.website,
	mode         = excluded.mode,
	profile      = excluded.profile,
	report       = excluded.report,
	sources      = excluded.sources,
	usage        = excluded.usage,
	cost         = excluded.cost,
	updated_at   = excluded.updated_at
RETURNING created_at, updated_at`,
		rec.ID, rec.CompanyName, rec.Website, string(rec.Mode), string(profileJSON),
		rec.Report, string(sourcesJSON), string(usageJSON), rec.Cost, now, now,
	).Scan(&created, &updated)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save profile %s", rec.ID)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return eris.Wrap(err, "sqlite: save profile")
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return eris.Wrap(err, "sqlite: save profile")
	}
	return nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*model.ProfileRecord, error) {
	rec, err := scanSQLiteProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get profile %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, limit, offset int) ([]model.ProfileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		listLimit(limit), max(offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.ProfileRecord{}
	for rows.Next() {
		rec, err := scanSQLiteProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list profiles")
}

func (s *SQLiteStore) CreatePosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	prepareNewPosts(posts, s.clock(), uuid.NewString)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO posts
(id, profile_id, platform, topic, content, status, scheduled_at, attempts, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert post")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range posts {
		_, err := stmt.ExecContext(ctx, p.ID, p.ProfileID, string(p.Platform), p.Topic, p.Content,
			string(p.Status), nullTime(p.ScheduledAt), p.Attempts,
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert post %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit posts")
}

func (s *SQLiteStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanSQLitePost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get post %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get post %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var (
		where []string
		args  []any
	)
	if filter.ProfileID != "" {
		where = append(where, "profile_id = ?")
		args = append(args, filter.ProfileID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, listLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list posts")
	}
	return collectSQLitePosts(rows)
}

func (s *SQLiteStore) SchedulePost(ctx context.Context, id string, at time.Time) (*model.Post, error) {
	p, err := scanSQLitePost(s.db.QueryRowContext(ctx, `UPDATE posts
SET status = 'scheduled', scheduled_at = ?, error = '', updated_at = ?
WHERE id = ? AND status IN ('draft', 'scheduled', 'failed')
RETURNING `+postColumns, formatTime(at), formatTime(s.clock()), id))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(err, "sqlite: schedule post %s", id)
	}
	if _, getErr := s.GetPost(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, eris.Wrapf(ErrNotSchedulable, "sqlite: schedule post %s", id)
}

// ClaimDuePosts claims due posts, and publishing posts past PublishLease, in
// a single UPDATE ... RETURNING, which SQLite executes under its database
// write lock.
func (s *SQLiteStore) ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `UPDATE posts
SET status = 'publishing', attempts = attempts + 1, updated_at = ?
WHERE id IN (
	SELECT id FROM posts
	WHERE (status = 'scheduled' AND scheduled_at <= ?)
		OR (status = 'publishing' AND updated_at <= ?)
	ORDER BY scheduled_at
	LIMIT ?
)
RETURNING `+postColumns, formatTime(s.clock()), formatTime(now), formatTime(now.Add(-PublishLease)), listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim due posts")
	}
	posts, err := collectSQLitePosts(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].ScheduledAt.Before(*posts[j].ScheduledAt)
	})
	return posts, nil
}

func (s *SQLiteStore) UpdatePostStatus(ctx context.Context, id string, update PostUpdate) error {
	res, err := s.db.ExecContext(ctx, `UPDATE posts
SET status = ?, external_id = ?, error = ?, published_at = COALESCE(?, published_at), updated_at = ?
WHERE id = ?`,
		string(update.Status), update.ExternalID, update.Error, nullTime(update.PublishedAt),
		formatTime(s.clock()), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update post %s", id)
	}
	return checkRowsAffected(res, "post", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	return t, eris.Wrapf(err, "parse time %q", s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanSQLiteProfile(row rowScanner) (*model.ProfileRecord, error) {
	var (
		rec                       model.ProfileRecord
		mode, created, updated    string
		profile, sources, usageJS string
	)
	err := row.Scan(&rec.ID, &rec.CompanyName, &rec.Website, &mode, &profile,
		&rec.Report, &sources, &usageJS, &rec.Cost, &created, &updated)
	if err != nil {
		return nil, err
	}
	rec.Mode = model.ExtractionMode(mode)
	if err := unmarshalProfile(&rec, []byte(profile), []byte(sources), []byte(usageJS)); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanSQLitePost(row rowScanner) (*model.Post, error) {
	var (
		p                          model.Post
		platform, status           string
		created, updated           string
		scheduledAt, publishedAtNS sql.NullString
	)
	err := row.Scan(&p.ID, &p.ProfileID, &platform, &p.Topic, &p.Content, &status,
		&scheduledAt, &publishedAtNS, &p.ExternalID, &p.Error, &p.Attempts, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.Platform = model.Platform(platform)
	p.Status = model.PostStatus(status)
	if p.ScheduledAt, err = parseNullTime(scheduledAt); err != nil {
		return nil, err
	}
	if p.PublishedAt, err = parseNullTime(publishedAtNS); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectSQLitePosts(rows *sql.Rows) ([]model.Post, error) {
	defer rows.Close() //nolint:errcheck
	out := []model.Post{}
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan post")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: read posts")
}
