package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client reads assignment snapshots with a Redis cache-aside layer over
// PostgreSQL. A cache miss falls back to the database and self-heals the
// cache so the next request is fast.
type Client struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewClient creates a catalog Client.
func NewClient(pool *pgxpool.Pool, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Client {
	return &Client{
		pool: pool,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "catalog").Logger(),
	}
}

// Get returns the current snapshot of an assignment.
func (c *Client) Get(ctx context.Context, assignmentID uuid.UUID) (*model.Assignment, error) {
	key := config.CacheKey.AssignmentSnapshotKey(assignmentID.String())

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		a := &model.Assignment{}
		if err := json.Unmarshal([]byte(cached), a); err == nil {
			return a, nil
		}
		// Corrupt cache entry: drop it and fall through to the database.
		c.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("assignment_id", assignmentID.String()).Msg("Snapshot cache read failed")
	}

	a, err := c.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(a); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("assignment_id", assignmentID.String()).Msg("Snapshot cache write failed")
		}
	}
	return a, nil
}

// Prewarm loads every assignment that is still open into Redis, so the first
// wave of attempt starts never stampedes PostgreSQL.
func (c *Client) Prewarm(ctx context.Context) error {
	rows, err := c.pool.Query(ctx,
		`SELECT id FROM assignments WHERE due_date > NOW() OR late_submission_allowed`)
	if err != nil {
		return fmt.Errorf("list open assignments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := c.Get(ctx, id); err != nil {
			c.log.Warn().Err(err).Str("assignment_id", id.String()).Msg("Prewarm skipped assignment")
		}
	}
	c.log.Info().Int("count", len(ids)).Msg("Assignment snapshots prewarmed")
	return nil
}

func (c *Client) load(ctx context.Context, assignmentID uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := c.pool.QueryRow(ctx,
		`SELECT id, title, due_date, duration_minutes, total_marks, late_submission_allowed
		 FROM assignments WHERE id = $1`, assignmentID,
	).Scan(&a.ID, &a.Title, &a.DueDate, &a.DurationMinutes, &a.TotalMarks, &a.LateSubmissionAllowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	rows, err := c.pool.Query(ctx,
		`SELECT id, question_text, question_type, options, required, order_num
		 FROM questions
		 WHERE assignment_id = $1
		 ORDER BY order_num ASC`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.QuestionType, &q.Options, &q.Required, &q.OrderNum); err != nil {
			return nil, err
		}
		a.Questions = append(a.Questions, q)
	}
	return a, rows.Err()
}
