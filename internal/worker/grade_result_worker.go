package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GradeResultWorker consumes grade_results_queue and applies the external
// grader's scores, transitioning submitted attempts to graded.
type GradeResultWorker struct {
	store repository.AttemptStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewGradeResultWorker creates a new GradeResultWorker.
func NewGradeResultWorker(store repository.AttemptStore, rdb *redis.Client, log zerolog.Logger) *GradeResultWorker {
	return &GradeResultWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "grade_result_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *GradeResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *GradeResultWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.GradeResultsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload model.GradeResult
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.applyResult(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", payload.AttemptID.String()).
			Msg("Apply error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.GradeResultsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *GradeResultWorker) applyResult(ctx context.Context, p *model.GradeResult) error {
	attempt, err := w.store.MarkGraded(ctx, p.AttemptID, p.Score)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Attempt vanished (e.g., grader replayed a stale result for a
			// wiped environment). Drop rather than retry forever.
			w.log.Warn().Str("attempt_id", p.AttemptID.String()).Msg("Result for unknown attempt dropped")
			return nil
		}
		return err
	}

	if attempt.Status != model.AttemptStatusGraded {
		// Conditional update did not fire: the attempt was never submitted
		// (abandoned, or still in progress). Record and drop.
		w.log.Warn().
			Str("attempt_id", p.AttemptID.String()).
			Str("status", string(attempt.Status)).
			Msg("Result for non-submitted attempt dropped")
	}
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *GradeResultWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.GradeResultsQueue).Result()
		if err != nil {
			break
		}

		var payload model.GradeResult
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.applyResult(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain apply error")
			w.rdb.RPush(ctx, config.WorkerKey.GradeResultsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
