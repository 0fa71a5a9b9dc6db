package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/classforge/classforge-backend/internal/catalog"
	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type captureNotifier struct {
	events []*model.SubmittedEvent
}

func (n *captureNotifier) Submitted(ctx context.Context, event *model.SubmittedEvent) {
	n.events = append(n.events, event)
}

func testConfig() *config.Config {
	return &config.Config{
		MaxCheckpointInterval: 90 * time.Second,
		AutosaveInterval:      30 * time.Second,
	}
}

// testAssignment builds a 60-minute assignment with three questions, the
// first two required, due at the given instant.
func testAssignment(due time.Time, lateAllowed bool) *model.Assignment {
	return &model.Assignment{
		ID:                    uuid.New(),
		Title:                 "Algebra Midterm",
		DueDate:               due,
		DurationMinutes:       60,
		TotalMarks:            100,
		LateSubmissionAllowed: lateAllowed,
		Questions: []model.Question{
			{ID: uuid.New(), QuestionText: "Q1", QuestionType: model.QuestionTypeMultipleChoice, Required: true, OrderNum: 1},
			{ID: uuid.New(), QuestionText: "Q2", QuestionType: model.QuestionTypeTrueFalse, Required: true, OrderNum: 2},
			{ID: uuid.New(), QuestionText: "Q3", QuestionType: model.QuestionTypeFreeText, OrderNum: 3},
		},
	}
}

func newTestService(t *testing.T, assignments ...*model.Assignment) (*AttemptService, *repository.InMemAttemptStore, *captureNotifier) {
	t.Helper()
	store := repository.NewInMemAttemptStore()
	notifier := &captureNotifier{}
	svc := NewAttemptService(store, catalog.NewStatic(assignments...), notifier, testConfig(), zerolog.Nop())
	return svc, store, notifier
}

func answer(v string) model.AnswerInput {
	return model.AnswerInput{Value: json.RawMessage(v)}
}

func TestStartAttemptCreatesInProgress(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, err := svc.StartAttempt(ctx, 1, assignment.ID)
	if err != nil {
		t.Fatalf("StartAttempt returned error: %v", err)
	}
	if attempt.Status != model.AttemptStatusInProgress {
		t.Errorf("expected status in_progress, got %s", attempt.Status)
	}
	if attempt.ElapsedSeconds != 0 {
		t.Errorf("expected zero elapsed seconds, got %d", attempt.ElapsedSeconds)
	}
	if attempt.ID == uuid.Nil {
		t.Error("expected a non-nil attempt ID")
	}
}

func TestStartAttemptDuplicateResumes(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	first, err := svc.StartAttempt(ctx, 1, assignment.ID)
	if err != nil {
		t.Fatalf("first StartAttempt: %v", err)
	}

	qid := assignment.Questions[0].ID
	if _, err := svc.Checkpoint(ctx, 1, first.ID, map[uuid.UUID]model.AnswerInput{qid: answer(`"B"`)}, 10, 1); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	second, err := svc.StartAttempt(ctx, 1, assignment.ID)
	if err != nil {
		t.Fatalf("second StartAttempt: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate start created a new attempt: %s != %s", second.ID, first.ID)
	}
	if len(second.Answers) != 1 {
		t.Errorf("resume lost answers: got %d, want 1", len(second.Answers))
	}
	if second.ElapsedSeconds != 10 {
		t.Errorf("resume lost elapsed time: got %d, want 10", second.ElapsedSeconds)
	}
}

func TestStartAttemptUnknownAssignment(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.StartAttempt(context.Background(), 1, uuid.New())
	if !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestStartAttemptPastDueDate(t *testing.T) {
	ctx := context.Background()
	closed := testAssignment(time.Now().Add(-time.Hour), false)
	late := testAssignment(time.Now().Add(-time.Hour), true)
	svc, _, _ := newTestService(t, closed, late)

	if _, err := svc.StartAttempt(ctx, 1, closed.ID); !errors.Is(err, ErrAssignmentUnavailable) {
		t.Errorf("expected ErrAssignmentUnavailable for closed assignment, got %v", err)
	}
	if _, err := svc.StartAttempt(ctx, 1, late.ID); err != nil {
		t.Errorf("late-allowed assignment should still accept starts: %v", err)
	}
}

func TestStartAttemptResumeWinsOverDueDate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	assignment := testAssignment(now.Add(time.Minute), false)
	svc, _, _ := newTestService(t, assignment)

	first, err := svc.StartAttempt(ctx, 1, assignment.ID)
	if err != nil {
		t.Fatalf("StartAttempt before due: %v", err)
	}

	// Past the due date a fresh start is refused, but the existing active
	// attempt is still returned so the student can finish.
	svc.now = func() time.Time { return now.Add(2 * time.Minute) }

	resumed, err := svc.StartAttempt(ctx, 1, assignment.ID)
	if err != nil {
		t.Fatalf("resume after due date: %v", err)
	}
	if resumed.ID != first.ID {
		t.Errorf("expected resumed attempt %s, got %s", first.ID, resumed.ID)
	}

	if _, err := svc.StartAttempt(ctx, 2, assignment.ID); !errors.Is(err, ErrAssignmentUnavailable) {
		t.Errorf("fresh start past due should fail, got %v", err)
	}
}

func TestCheckpointMergesAnswersAndElapsed(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)
	q1, q2 := assignment.Questions[0].ID, assignment.Questions[1].ID

	updated, err := svc.Checkpoint(ctx, 1, attempt.ID, map[uuid.UUID]model.AnswerInput{q1: answer(`"A"`)}, 30, 1)
	if err != nil {
		t.Fatalf("first checkpoint: %v", err)
	}
	if updated.ElapsedSeconds != 30 {
		t.Errorf("elapsed = %d, want 30", updated.ElapsedSeconds)
	}

	updated, err = svc.Checkpoint(ctx, 1, attempt.ID, map[uuid.UUID]model.AnswerInput{q2: answer(`true`)}, 30, 2)
	if err != nil {
		t.Fatalf("second checkpoint: %v", err)
	}
	if updated.ElapsedSeconds != 60 {
		t.Errorf("elapsed = %d, want 60", updated.ElapsedSeconds)
	}
	if len(updated.Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(updated.Answers))
	}
	if updated.Answers[q1].QuestionType != model.QuestionTypeMultipleChoice {
		t.Errorf("question type not snapshotted onto answer: %s", updated.Answers[q1].QuestionType)
	}
}

func TestCheckpointRetrySameSequenceCountsElapsedOnce(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)
	qid := assignment.Questions[0].ID
	delta := map[uuid.UUID]model.AnswerInput{qid: answer(`"B"`)}

	// The client saw a timeout and replays the identical request. Same
	// sequence, so elapsed time advances exactly once; the answer merge is
	// idempotent by value.
	for i := 0; i < 3; i++ {
		if _, err := svc.Checkpoint(ctx, 1, attempt.ID, delta, 45, 1); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	final, err := svc.GetState(ctx, 1, attempt.ID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if final.Attempt.ElapsedSeconds != 45 {
		t.Errorf("elapsed = %d after replays, want 45", final.Attempt.ElapsedSeconds)
	}
	if string(final.Attempt.Answers[qid].Value) != `"B"` {
		t.Errorf("answer = %s, want \"B\"", final.Attempt.Answers[qid].Value)
	}
}

func TestCheckpointElapsedDeltaBounds(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)

	// A wildly inflated client delta is clamped to the checkpoint interval cap.
	updated, err := svc.Checkpoint(ctx, 1, attempt.ID, nil, 100000, 1)
	if err != nil {
		t.Fatalf("oversized delta: %v", err)
	}
	if updated.ElapsedSeconds != 90 {
		t.Errorf("elapsed = %d, want cap of 90", updated.ElapsedSeconds)
	}

	// A negative delta never rolls time back.
	updated, err = svc.Checkpoint(ctx, 1, attempt.ID, nil, -50, 2)
	if err != nil {
		t.Fatalf("negative delta: %v", err)
	}
	if updated.ElapsedSeconds != 90 {
		t.Errorf("elapsed = %d after negative delta, want 90", updated.ElapsedSeconds)
	}
}

func TestCheckpointRejectsForeignQuestion(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)

	_, err := svc.Checkpoint(ctx, 1, attempt.ID, map[uuid.UUID]model.AnswerInput{uuid.New(): answer(`"x"`)}, 10, 1)
	if !errors.Is(err, ErrInvalidQuestionReference) {
		t.Fatalf("expected ErrInvalidQuestionReference, got %v", err)
	}

	// The rejected delta must not have partially applied.
	state, _ := svc.GetState(ctx, 1, attempt.ID)
	if len(state.Attempt.Answers) != 0 || state.Attempt.ElapsedSeconds != 0 {
		t.Errorf("rejected checkpoint mutated the attempt: %+v", state.Attempt)
	}
}

func TestCheckpointAfterSubmitIsNoOp(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)
	q1 := assignment.Questions[0].ID

	submitted, err := svc.Submit(ctx, 1, attempt.ID, map[uuid.UUID]model.AnswerInput{q1: answer(`"A"`)}, 20, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.Status != model.AttemptStatusSubmitted {
		t.Fatalf("status = %s, want submitted", submitted.Status)
	}

	// A straggler autosave from a still-open tab returns the terminal record
	// untouched rather than an error.
	after, err := svc.Checkpoint(ctx, 1, attempt.ID, map[uuid.UUID]model.AnswerInput{q1: answer(`"Z"`)}, 30, 2)
	if err != nil {
		t.Fatalf("late checkpoint: %v", err)
	}
	if after.Status != model.AttemptStatusSubmitted {
		t.Errorf("late checkpoint changed status to %s", after.Status)
	}
	if string(after.Answers[q1].Value) != `"A"` {
		t.Errorf("late checkpoint overwrote submitted answer: %s", after.Answers[q1].Value)
	}
	if after.ElapsedSeconds != 20 {
		t.Errorf("late checkpoint advanced elapsed to %d", after.ElapsedSeconds)
	}
}

func TestSubmitIdempotentNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, notifier := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)
	q1 := assignment.Questions[0].ID
	delta := map[uuid.UUID]model.AnswerInput{q1: answer(`"A"`)}

	first, err := svc.Submit(ctx, 1, attempt.ID, delta, 15, 1)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(ctx, 1, attempt.ID, delta, 15, 1)
	if err != nil {
		t.Fatalf("retried submit: %v", err)
	}

	if second.ElapsedSeconds != first.ElapsedSeconds {
		t.Errorf("retried submit moved elapsed: %d != %d", second.ElapsedSeconds, first.ElapsedSeconds)
	}
	if !second.SubmittedAt.Equal(*first.SubmittedAt) {
		t.Errorf("retried submit moved submitted_at: %v != %v", second.SubmittedAt, first.SubmittedAt)
	}
	if len(notifier.events) != 1 {
		t.Errorf("grading notified %d times, want 1", len(notifier.events))
	}
	if len(notifier.events) == 1 && notifier.events[0].AttemptID != attempt.ID {
		t.Errorf("notification for wrong attempt: %s", notifier.events[0].AttemptID)
	}

	// A retry carrying a different delta is also ignored wholesale.
	q2 := assignment.Questions[1].ID
	third, err := svc.Submit(ctx, 1, attempt.ID, map[uuid.UUID]model.AnswerInput{q2: answer(`false`)}, 60, 2)
	if err != nil {
		t.Fatalf("submit with new delta: %v", err)
	}
	if len(third.Answers) != 1 || third.ElapsedSeconds != first.ElapsedSeconds {
		t.Errorf("post-terminal submit mutated the record: %+v", third)
	}
}

func TestAttemptOwnershipHidden(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)

	// Another student probing the attempt ID sees not-found, never forbidden.
	if _, err := svc.GetState(ctx, 2, attempt.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("GetState for foreign student: got %v, want ErrAttemptNotFound", err)
	}
	if _, err := svc.Submit(ctx, 2, attempt.ID, nil, 0, 1); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("Submit for foreign student: got %v, want ErrAttemptNotFound", err)
	}
}

func TestAbandonAllowsFreshStart(t *testing.T) {
	ctx := context.Background()
	assignment := testAssignment(time.Now().Add(time.Hour), false)
	svc, _, _ := newTestService(t, assignment)

	first, _ := svc.StartAttempt(ctx, 1, assignment.ID)

	abandoned, err := svc.Abandon(ctx, first.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if abandoned.Status != model.AttemptStatusAbandoned {
		t.Fatalf("status = %s, want abandoned", abandoned.Status)
	}

	fresh, err := svc.StartAttempt(ctx, 1, assignment.ID)
	if err != nil {
		t.Fatalf("start after abandon: %v", err)
	}
	if fresh.ID == first.ID {
		t.Error("start after abandon returned the abandoned attempt")
	}
}

func TestGetStateRemainingSeconds(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	// Due far away: remaining is bounded by assignment duration.
	assignment := testAssignment(now.Add(24*time.Hour), false)
	svc, _, _ := newTestService(t, assignment)
	attempt, _ := svc.StartAttempt(ctx, 1, assignment.ID)
	if _, err := svc.Checkpoint(ctx, 1, attempt.ID, nil, 60, 1); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	state, err := svc.GetState(ctx, 1, attempt.ID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	want := float64(assignment.DurationMinutes*60 - 60)
	if state.RemainingSeconds != want {
		t.Errorf("remaining = %f, want %f", state.RemainingSeconds, want)
	}

	// Due sooner than the duration allows: the wall wins.
	svc.now = func() time.Time { return assignment.DueDate.Add(-30 * time.Second) }
	state, _ = svc.GetState(ctx, 1, attempt.ID)
	if state.RemainingSeconds > 30 {
		t.Errorf("remaining = %f near due date, want <= 30", state.RemainingSeconds)
	}

	// Terminal attempts always report zero.
	svc.now = time.Now
	if _, err := svc.Submit(ctx, 1, attempt.ID, nil, 0, 2); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	state, _ = svc.GetState(ctx, 1, attempt.ID)
	if state.RemainingSeconds != 0 {
		t.Errorf("remaining = %f for submitted attempt, want 0", state.RemainingSeconds)
	}
}
