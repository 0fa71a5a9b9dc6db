package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type authorityCall struct {
	delta   map[uuid.UUID]model.AnswerInput
	elapsed int
	seq     uint64
	submit  bool
}

// fakeAuthority records every call and fails the first failures of them.
type fakeAuthority struct {
	calls    []authorityCall
	failures int
	attempt  *model.Attempt
}

func (f *fakeAuthority) record(delta map[uuid.UUID]model.AnswerInput, elapsed int, seq uint64, submit bool) (*model.Attempt, error) {
	f.calls = append(f.calls, authorityCall{delta: delta, elapsed: elapsed, seq: seq, submit: submit})
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("authority unreachable")
	}
	cp := f.attempt.Clone()
	cp.CheckpointSeq = seq
	if submit {
		cp.Status = model.AttemptStatusSubmitted
	}
	return cp, nil
}

func (f *fakeAuthority) Checkpoint(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, elapsedDeltaSeconds int, seq uint64) (*model.Attempt, error) {
	return f.record(delta, elapsedDeltaSeconds, seq, false)
}

func (f *fakeAuthority) Submit(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, elapsedDeltaSeconds int, seq uint64) (*model.Attempt, error) {
	return f.record(delta, elapsedDeltaSeconds, seq, true)
}

func newTestScheduler(failures int) (*AutosaveScheduler, *fakeAuthority, *Draft) {
	attempt := &model.Attempt{
		ID:      uuid.New(),
		Status:  model.AttemptStatusInProgress,
		Answers: map[uuid.UUID]model.Answer{},
	}
	authority := &fakeAuthority{failures: failures, attempt: attempt}
	draft := NewDraft()
	// No timer: elapsed deltas are not under test here and wall-clock time
	// would make these tests flaky.
	s := NewAutosaveScheduler(authority, attempt, draft, nil, AutosaveOptions{
		Interval:    time.Hour, // ticks never fire during a test
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	}, zerolog.Nop())
	return s, authority, draft
}

func TestFlushSkipsWhenNothingPending(t *testing.T) {
	s, authority, _ := newTestScheduler(0)

	s.flush(context.Background(), true)
	if len(authority.calls) != 0 {
		t.Fatalf("flush with empty draft made %d calls, want 0", len(authority.calls))
	}
}

func TestFlushRetryReusesSequence(t *testing.T) {
	s, authority, draft := newTestScheduler(1)
	qid := uuid.New()
	draft.Set(qid, input(`"A"`))

	s.flush(context.Background(), true)

	if len(authority.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (one failure, one retry)", len(authority.calls))
	}
	if authority.calls[0].seq != authority.calls[1].seq {
		t.Errorf("retry changed sequence: %d then %d", authority.calls[0].seq, authority.calls[1].seq)
	}
	if authority.calls[0].seq != 1 {
		t.Errorf("first flush seq = %d, want 1", authority.calls[0].seq)
	}
	if !draft.Answered(qid) || draft.PendingCount() != 0 {
		t.Error("acknowledged answer should be saved with nothing pending")
	}
}

func TestFlushExhaustedRequeuesAndNextFlushReusesSequence(t *testing.T) {
	s, authority, draft := newTestScheduler(3) // more failures than 1+MaxRetries
	qid := uuid.New()
	draft.Set(qid, input(`"A"`))

	s.flush(context.Background(), true)
	if draft.PendingCount() != 1 {
		t.Fatalf("failed flush should requeue, pending = %d", draft.PendingCount())
	}

	// The next flush (here the authority has recovered) repeats the same
	// sequence: the abandoned flush never consumed it.
	s.flush(context.Background(), true)

	last := authority.calls[len(authority.calls)-1]
	if last.seq != 1 {
		t.Errorf("recovered flush seq = %d, want 1", last.seq)
	}
	if string(last.delta[qid].Value) != `"A"` {
		t.Errorf("recovered flush lost the answer: %s", last.delta[qid].Value)
	}
	if draft.PendingCount() != 0 {
		t.Errorf("pending = %d after recovery, want 0", draft.PendingCount())
	}
}

func TestSequencesIncreaseAcrossFlushes(t *testing.T) {
	s, authority, draft := newTestScheduler(0)
	q1, q2 := uuid.New(), uuid.New()

	draft.Set(q1, input(`"A"`))
	s.flush(context.Background(), true)
	draft.Set(q2, input(`"B"`))
	s.flush(context.Background(), true)

	if len(authority.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(authority.calls))
	}
	if authority.calls[0].seq != 1 || authority.calls[1].seq != 2 {
		t.Errorf("sequences = %d, %d, want 1, 2", authority.calls[0].seq, authority.calls[1].seq)
	}
}

func TestSchedulerResumesSequenceFromAttempt(t *testing.T) {
	attempt := &model.Attempt{
		ID:            uuid.New(),
		Status:        model.AttemptStatusInProgress,
		CheckpointSeq: 7,
	}
	authority := &fakeAuthority{attempt: attempt}
	draft := NewDraft()
	s := NewAutosaveScheduler(authority, attempt, draft, nil, AutosaveOptions{}, zerolog.Nop())

	draft.Set(uuid.New(), input(`"A"`))
	s.flush(context.Background(), true)

	if authority.calls[0].seq != 8 {
		t.Errorf("resumed flush seq = %d, want 8", authority.calls[0].seq)
	}
}

func TestSubmitFailureIsRetriable(t *testing.T) {
	s, authority, draft := newTestScheduler(1)
	qid := uuid.New()
	draft.Set(qid, input(`"final"`))

	// Submit surfaces the failure so the UI can show a retry button; the
	// answers go back into the draft.
	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected submit error")
	}
	if draft.PendingCount() != 1 {
		t.Fatalf("failed submit should requeue, pending = %d", draft.PendingCount())
	}

	attempt, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("retried submit: %v", err)
	}
	if attempt.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want submitted", attempt.Status)
	}

	// Both submit calls carried the same sequence.
	if authority.calls[0].seq != authority.calls[1].seq {
		t.Errorf("submit retry changed sequence: %d then %d", authority.calls[0].seq, authority.calls[1].seq)
	}
}

func TestRunFinalFlushOnCancel(t *testing.T) {
	s, authority, draft := newTestScheduler(0)

	saved := make(chan *model.Attempt, 1)
	s.OnSaved(func(a *model.Attempt) { saved <- a })

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	draft.Set(uuid.New(), input(`"unsaved"`))
	cancel()

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("final flush never acknowledged")
	}
	<-s.closed

	if len(authority.calls) != 1 {
		t.Errorf("calls = %d, want 1 final flush", len(authority.calls))
	}
	if draft.PendingCount() != 0 {
		t.Errorf("pending = %d after shutdown flush, want 0", draft.PendingCount())
	}
}
