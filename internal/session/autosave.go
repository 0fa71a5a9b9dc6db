package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Authority is the session-authority surface the client runtime needs. The
// server's AttemptService satisfies it directly (via ServiceAuthority); a
// remote deployment would put an HTTP client behind the same interface.
type Authority interface {
	Checkpoint(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, elapsedDeltaSeconds int, seq uint64) (*model.Attempt, error)
	Submit(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, elapsedDeltaSeconds int, seq uint64) (*model.Attempt, error)
}

// ErrSchedulerClosed is returned by Submit after the scheduler has stopped.
var ErrSchedulerClosed = errors.New("autosave scheduler closed")

// AutosaveOptions tunes the scheduler. Zero values take defaults.
type AutosaveOptions struct {
	Interval    time.Duration // flush cadence, default 30s
	MaxRetries  int           // retries per flush before requeueing, default 5
	BaseBackoff time.Duration // first retry delay, doubled per retry, default 500ms
}

func (o AutosaveOptions) withDefaults() AutosaveOptions {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	return o
}

// AutosaveScheduler reconciles the draft with the session authority on a
// fixed interval and on demand (question navigation, tab hidden, explicit
// save). Flush failures are retried with backoff and never surfaced to the
// user; the draft keeps the data and the next tick tries again.
//
// Every flush carries a sequence number. A retry of the same flush reuses
// its sequence, and a flush that is abandoned after exhausting retries
// leaves the sequence unconsumed, so the authority counts each window of
// elapsed time at most once no matter how delivery fails.
type AutosaveScheduler struct {
	authority Authority
	attemptID uuid.UUID
	draft     *Draft
	timer     *TimerController
	opts      AutosaveOptions
	log       zerolog.Logger

	// onSaved, when set, observes every acknowledged attempt record
	// (navigator refresh, timer resync, "saved" indicator).
	onSaved func(*model.Attempt)

	flushMu sync.Mutex // serializes flushes; guards seq
	seq     uint64

	events chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewAutosaveScheduler creates a scheduler for one attempt. The sequence
// resumes from the attempt's stored checkpoint sequence so a reloaded
// session keeps advancing server time.
func NewAutosaveScheduler(authority Authority, attempt *model.Attempt, draft *Draft, timer *TimerController, opts AutosaveOptions, log zerolog.Logger) *AutosaveScheduler {
	return &AutosaveScheduler{
		authority: authority,
		attemptID: attempt.ID,
		draft:     draft,
		timer:     timer,
		opts:      opts.withDefaults(),
		log:       log.With().Str("component", "autosave").Str("attempt_id", attempt.ID.String()).Logger(),
		seq:       attempt.CheckpointSeq,
		events:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

// OnSaved registers the acknowledgement observer. Call before Run.
func (s *AutosaveScheduler) OnSaved(fn func(*model.Attempt)) {
	s.onSaved = fn
}

// Run drives the scheduler until ctx is cancelled, then performs one final
// flush so a clean shutdown loses nothing. Call in a goroutine.
func (s *AutosaveScheduler) Run(ctx context.Context) {
	defer s.once.Do(func() { close(s.closed) })

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background(), false)
			return
		case <-ticker.C:
			s.flush(ctx, true)
		case <-s.events:
			s.flush(ctx, true)
		}
	}
}

// Flush requests an immediate save without blocking the caller. Used on
// navigation away from an answered question, tab visibility loss, and the
// explicit save action.
func (s *AutosaveScheduler) Flush() {
	select {
	case s.events <- struct{}{}:
	default: // A flush is already requested; coalesce.
	}
}

// Submit performs the final checkpoint-and-submit. Unlike autosave, its
// failure is returned to the caller for a user-visible retry affordance;
// retrying is always safe because the submit is idempotent server-side.
func (s *AutosaveScheduler) Submit(ctx context.Context) (*model.Attempt, error) {
	select {
	case <-s.closed:
		return nil, ErrSchedulerClosed
	default:
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	delta := s.draft.TakeDelta()
	elapsed := s.elapsedDelta()
	seq := s.seq + 1

	attempt, err := s.authority.Submit(ctx, s.attemptID, delta, elapsed, seq)
	if err != nil {
		s.draft.Requeue(delta)
		return nil, err
	}

	s.acknowledge(seq, delta, elapsed, attempt)
	return attempt, nil
}

func (s *AutosaveScheduler) flush(ctx context.Context, retry bool) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	delta := s.draft.TakeDelta()
	elapsed := s.elapsedDelta()
	if len(delta) == 0 && elapsed == 0 {
		return
	}
	seq := s.seq + 1

	backoff := s.opts.BaseBackoff
	attempts := 1
	if retry {
		attempts += s.opts.MaxRetries
	}

	for i := 0; i < attempts; i++ {
		attempt, err := s.authority.Checkpoint(ctx, s.attemptID, delta, elapsed, seq)
		if err == nil {
			s.acknowledge(seq, delta, elapsed, attempt)
			return
		}

		s.log.Warn().Err(err).Uint64("seq", seq).Msg("Checkpoint failed")

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			i = attempts // stop retrying, keep the data
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	// Exhausted: hand the answers back and let the next tick retry. The
	// unacknowledged elapsed window stays open on the timer, and seq was
	// not consumed, so nothing is double counted later.
	s.draft.Requeue(delta)
}

func (s *AutosaveScheduler) elapsedDelta() int {
	if s.timer == nil {
		return 0
	}
	return s.timer.DeltaSinceMark()
}

func (s *AutosaveScheduler) acknowledge(seq uint64, delta map[uuid.UUID]model.AnswerInput, elapsed int, attempt *model.Attempt) {
	s.seq = seq
	s.draft.MarkSaved(delta)
	if s.timer != nil {
		s.timer.Acknowledge(elapsed)
	}
	if s.onSaved != nil {
		s.onSaved(attempt)
	}
}
