package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-research/internal/db"
	"github.com/sells-group/brand-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	profileColumns = `id, company_name, website, mode, profile, report, sources, usage, cost, created_at, updated_at`
	postColumns    = `id, profile_id, platform, topic, content, status, scheduled_at, published_at, external_id, error, attempts, created_at, updated_at`

	upsertProfileSQL = `INSERT INTO profiles (id, company_name, website, mode, profile, report, sources, usage, cost, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (id) DO UPDATE SET
	company_name = EXCLUDED.company_name,
	website      = EXCLUDED.website,
	mode         = EXCLUDED.mode,
	profile      = EXCLUDED.profile,
	report       = EXCLUDED.report,
	sources      = EXCLUDED.sources,
	usage        = EXCLUDED.usage,
	cost         = EXCLUDED.cost,
	updated_at   = EXCLUDED.updated_at
RETURNING created_at, updated_at`
	getProfileSQL   = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	listProfilesSQL = `SELECT ` + profileColumns + ` FROM profiles ORDER BY updated_at DESC LIMIT $1 OFFSET $2`

	getPostSQL      = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	schedulePostSQL = `UPDATE posts SET status = 'scheduled', scheduled_at = $2, error = '', updated_at = $3
WHERE id = $1 AND status IN ('draft', 'scheduled', 'failed')
RETURNING ` + postColumns
	selectDuePostsSQL = `SELECT ` + postColumns + ` FROM posts
WHERE (status = 'scheduled' AND scheduled_at <= $1)
	OR (status = 'publishing' AND updated_at <= $3)
ORDER BY scheduled_at
LIMIT $2
FOR UPDATE SKIP LOCKED`
	markPublishingSQL = `UPDATE posts SET status = 'publishing', attempts = attempts + 1, updated_at = $2 WHERE id = ANY($1)`
	updatePostSQL     = `UPDATE posts SET status = $2, external_id = $3, error = $4, published_at = COALESCE($5, published_at), updated_at = $6 WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_profile":  upsertProfileSQL,
	"get_profile":     getProfileSQL,
	"get_post":        getPostSQL,
	"schedule_post":   schedulePostSQL,
	"select_due":      selectDuePostsSQL,
	"mark_publishing": markPublishingSQL,
	"update_post":     updatePostSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

func utcNow() time.Time { return time.Now().UTC() }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	website      TEXT NOT NULL DEFAULT '',
	mode         TEXT NOT NULL,
	profile      JSONB NOT NULL,
	report       TEXT NOT NULL DEFAULT '',
	sources      JSONB NOT NULL DEFAULT '[]',
	usage        JSONB NOT NULL DEFAULT '{}',
	cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile_id   TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	platform     TEXT NOT NULL,
	topic        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'draft',
	scheduled_at TIMESTAMPTZ,
	published_at TIMESTAMPTZ,
	external_id  TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	attempts     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_posts_profile_id ON posts(profile_id);
CREATE INDEX IF NOT EXISTS idx_posts_due ON posts(status, scheduled_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return utcNow()
}

// SaveProfile inserts or replaces the profile keyed by rec.ID. CreatedAt
// and UpdatedAt are filled from the database.
func (s *PostgresStore) SaveProfile(ctx context.Context, rec *model.ProfileRecord) error {
	profileJSON, sourcesJSON, usageJSON, err := marshalProfile(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile")
	}

	err = s.pool.QueryRow(ctx, upsertProfileSQL,
		rec.ID, rec.CompanyName, rec.Website, string(rec.Mode),
		profileJSON, rec.Report, sourcesJSON, usageJSON, rec.Cost, s.clock(),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: save profile %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*model.ProfileRecord, error) {
	rec, err := scanProfile(s.pool.QueryRow(ctx, getProfileSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get profile %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, limit, offset int) ([]model.ProfileRecord, error) {
	rows, err := s.pool.Query(ctx, listProfilesSQL, listLimit(limit), max(offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	out := []model.ProfileRecord{}
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list profiles")
}

var postCopyColumns = []string{
	"id", "profile_id", "platform", "topic", "content", "status",
	"scheduled_at", "attempts", "created_at", "updated_at",
}

// CreatePosts bulk-inserts drafts with COPY. IDs, status and timestamps
// are assigned in place.
func (s *PostgresStore) CreatePosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	prepareNewPosts(posts, s.clock(), uuid.NewString)

	rows := make([][]any, len(posts))
	for i, p := range posts {
		rows[i] = []any{
			p.ID, p.ProfileID, string(p.Platform), p.Topic, p.Content, string(p.Status),
			p.ScheduledAt, p.Attempts, p.CreatedAt, p.UpdatedAt,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "posts", postCopyColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: create posts")
	}
	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, getPostSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get post %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get post %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var (
		where []string
		args  []any
	)
	if filter.ProfileID != "" {
		args = append(args, filter.ProfileID)
		where = append(where, fmt.Sprintf("profile_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(filter.Limit), max(filter.Offset, 0))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list posts")
	}
	return collectPosts(rows)
}

// SchedulePost sets a draft, scheduled or failed post to scheduled at the
// given time.
func (s *PostgresStore) SchedulePost(ctx context.Context, id string, at time.Time) (*model.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, schedulePostSQL, id, at.UTC(), s.clock()))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: schedule post %s", id)
	}

	// Either missing or in a state that cannot be rescheduled.
	if _, getErr := s.GetPost(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, eris.Wrapf(ErrNotSchedulable, "postgres: schedule post %s", id)
}

// ClaimDuePosts locks up to limit scheduled posts due at or before now,
// plus publishing posts whose lease has expired, moves them to publishing
// and increments their attempt count. Concurrent workers skip rows already
// claimed.
func (s *PostgresStore) ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]model.Post, error) {
	var claimed []model.Post
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectDuePostsSQL, now.UTC(), listLimit(limit), now.UTC().Add(-PublishLease))
		if err != nil {
			return eris.Wrap(err, "postgres: select due posts")
		}
		posts, err := collectPosts(rows)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return nil
		}

		ids := make([]string, len(posts))
		for i := range posts {
			ids[i] = posts[i].ID
		}
		updated := s.clock()
		if _, err := tx.Exec(ctx, markPublishingSQL, ids, updated); err != nil {
			return eris.Wrap(err, "postgres: mark publishing")
		}
		for i := range posts {
			posts[i].Status = model.PostStatusPublishing
			posts[i].Attempts++
			posts[i].UpdatedAt = updated
		}
		claimed = posts
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim due posts")
	}
	if claimed == nil {
		claimed = []model.Post{}
	}
	return claimed, nil
}

func (s *PostgresStore) UpdatePostStatus(ctx context.Context, id string, update PostUpdate) error {
	tag, err := s.pool.Exec(ctx, updatePostSQL,
		id, string(update.Status), update.ExternalID, update.Error, update.PublishedAt, s.clock())
	if err != nil {
		return eris.Wrapf(err, "postgres: update post %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update post %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalProfile(rec *model.ProfileRecord) (profile, sources, usage []byte, err error) {
	if profile, err = json.Marshal(rec.Profile); err != nil {
		return nil, nil, nil, err
	}
	src := rec.Sources
	if src == nil {
		src = []string{}
	}
	if sources, err = json.Marshal(src); err != nil {
		return nil, nil, nil, err
	}
	if usage, err = json.Marshal(rec.Usage); err != nil {
		return nil, nil, nil, err
	}
	return profile, sources, usage, nil
}

func unmarshalProfile(rec *model.ProfileRecord, profile, sources, usage []byte) error {
	if err := json.Unmarshal(profile, &rec.Profile); err != nil {
		return eris.Wrap(err, "unmarshal profile")
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &rec.Sources); err != nil {
			return eris.Wrap(err, "unmarshal sources")
		}
	}
	if len(usage) > 0 {
		if err := json.Unmarshal(usage, &rec.Usage); err != nil {
			return eris.Wrap(err, "unmarshal usage")
		}
	}
	return nil
}

func scanProfile(row rowScanner) (*model.ProfileRecord, error) {
	var (
		rec                       model.ProfileRecord
		mode                      string
		profile, sources, usageJS []byte
	)
	err := row.Scan(&rec.ID, &rec.CompanyName, &rec.Website, &mode, &profile,
		&rec.Report, &sources, &usageJS, &rec.Cost, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Mode = model.ExtractionMode(mode)
	if err := unmarshalProfile(&rec, profile, sources, usageJS); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p                model.Post
		platform, status string
	)
	err := row.Scan(&p.ID, &p.ProfileID, &platform, &p.Topic, &p.Content, &status,
		&p.ScheduledAt, &p.PublishedAt, &p.ExternalID, &p.Error, &p.Attempts,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Platform = model.Platform(platform)
	p.Status = model.PostStatus(status)
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]model.Post, error) {
	defer rows.Close()
	out := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan post")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: read posts")
}
