package worker

import (
	"context"
	"encoding/json"

	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GradingQueue pushes submitted-attempt events onto the Redis hand-off queue
// consumed by the external grading pipeline. Fire-and-forget: a push failure
// is logged, never propagated — submission must not depend on grading being up.
type GradingQueue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewGradingQueue creates a new GradingQueue.
func NewGradingQueue(rdb *redis.Client, log zerolog.Logger) *GradingQueue {
	return &GradingQueue{
		rdb: rdb,
		log: log.With().Str("component", "grading_queue").Logger(),
	}
}

// Submitted enqueues the hand-off event for a newly submitted attempt.
func (q *GradingQueue) Submitted(ctx context.Context, event *model.SubmittedEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		q.log.Error().Err(err).Str("attempt_id", event.AttemptID.String()).Msg("Marshal error")
		return
	}

	if err := q.rdb.RPush(ctx, config.WorkerKey.GradingHandoffQueue, raw).Err(); err != nil {
		q.log.Error().Err(err).
			Str("attempt_id", event.AttemptID.String()).
			Msg("Grading hand-off push failed")
	}
}
