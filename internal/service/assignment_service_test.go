package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

func createAssignment(t *testing.T, f fixture) dto.AssignmentResponse {
	t.Helper()
	created, err := f.assignments.Create(context.Background(), teacher, dto.AssignmentCreateRequest{
		ClassID:   1,
		StudentID: 3,
		Title:     "Murajaah Juz Amma",
		DueDate:   time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	return created
}

func seedAssignmentIn(t *testing.T, f fixture, status workflow.AssignmentStatus, reopenCount int) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		SchoolID:    1,
		ClassID:     1,
		StudentID:   3,
		TeacherID:   2,
		Title:       "Surah Al-Mulk",
		Status:      status,
		ReopenCount: reopenCount,
		AssignedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&assignment).Error)
	return assignment
}

func TestAssignmentLifecycleScenario(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	created := createAssignment(t, f)
	require.Equal(t, string(workflow.AssignmentAssigned), created.Status)
	require.Equal(t, uint(2), created.TeacherID)

	// The student opening the assignment views it.
	viewed, err := f.assignments.Get(ctx, student, created.ID)
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentViewed), viewed.Status)
	require.NotNil(t, viewed.ViewedAt)

	// Reading it again is idempotent.
	again, err := f.assignments.Get(ctx, student, created.ID)
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentViewed), again.Status)

	submitted, err := f.assignments.Transition(ctx, student, created.ID, workflow.SubmitAssignment{Text: "Recited with <b>care</b>"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentSubmitted), submitted.Status)
	require.Equal(t, "Recited with care", submitted.SubmissionText)
	require.NotNil(t, submitted.SubmittedAt)

	reviewed, err := f.assignments.Transition(ctx, teacher, created.ID, workflow.ReviewAssignment{Feedback: "Watch the madd"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentReviewed), reviewed.Status)
	require.Equal(t, "Watch the madd", reviewed.Feedback)

	completed, err := f.assignments.Transition(ctx, teacher, created.ID, workflow.CompleteAssignment{})
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentCompleted), completed.Status)
	require.NotNil(t, completed.CompletedAt)

	reopened, err := f.assignments.Transition(ctx, teacher, created.ID, workflow.ReopenAssignment{Reason: "Repeat ayah 5"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentReopened), reopened.Status)
	require.Equal(t, 1, reopened.ReopenCount)
	require.Equal(t, "Repeat ayah 5", reopened.ReopenReason)

	resubmitted, err := f.assignments.Transition(ctx, student, created.ID, workflow.SubmitAssignment{Attachments: []string{"https://cdn.example.com/recitation.mp3"}})
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentSubmitted), resubmitted.Status)
	require.Equal(t, []string{"https://cdn.example.com/recitation.mp3"}, resubmitted.Attachments)

	history, err := f.assignments.History(ctx, parent, created.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(history))
	for _, entry := range history {
		actions = append(actions, entry.Action)
	}
	require.Equal(t, []string{"create", "view", "submit", "review", "complete", "reopen", "submit"}, actions)
	require.Equal(t, "completed", history[5].FromStatus)
	require.Equal(t, "reopened", history[5].ToStatus)

	require.Equal(t, []string{
		"assignment.assigned",
		"assignment.submitted",
		"assignment.reviewed",
		"assignment.completed",
		"assignment.reopened",
		"assignment.submitted",
	}, f.notifier.types())
}

func TestAssignmentAuthorizationIsNotATransitionError(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	assignment := seedAssignmentIn(t, f, workflow.AssignmentSubmitted, 0)

	// A student reviewing is an authorization failure even though the edge exists.
	_, err := f.assignments.Transition(ctx, student, assignment.ID, workflow.ReviewAssignment{})
	require.ErrorIs(t, err, policy.ErrForbidden)
	require.False(t, errors.Is(err, workflow.ErrInvalidTransition))

	var authErr *policy.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, policy.AssignmentReview, authErr.Operation)

	// A teacher of another class is denied too.
	_, err = f.assignments.Transition(ctx, otherTeacher, assignment.ID, workflow.ReviewAssignment{})
	require.ErrorIs(t, err, policy.ErrForbidden)

	// Another school never sees it.
	_, err = f.assignments.Get(ctx, foreignOwner, assignment.ID)
	require.ErrorIs(t, err, policy.ErrForbidden)

	// An authorized caller on the wrong edge gets the transition error.
	_, err = f.assignments.Transition(ctx, teacher, assignment.ID, workflow.CompleteAssignment{})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	require.False(t, errors.Is(err, policy.ErrForbidden))

	var transitionErr *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, "submitted", transitionErr.From)
	require.Equal(t, "complete", transitionErr.Action)

	stored, err := repository.NewAssignmentRepository(f.db).GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.AssignmentSubmitted, stored.Status)
}

func TestAssignmentConcurrentReviewHasSingleWinner(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	assignment := seedAssignmentIn(t, f, workflow.AssignmentSubmitted, 0)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.assignments.Transition(ctx, teacher, assignment.ID, workflow.ReviewAssignment{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, successes)
	for _, err := range failures {
		require.True(t, errors.Is(err, repository.ErrStaleState) || errors.Is(err, workflow.ErrInvalidTransition), "unexpected error: %v", err)
	}

	stored, err := repository.NewAssignmentRepository(f.db).GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.AssignmentReviewed, stored.Status)
}

func TestAssignmentStaleSnapshotLosesRace(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	assignment := seedAssignmentIn(t, f, workflow.AssignmentSubmitted, 0)

	_, err := f.assignments.Transition(ctx, teacher, assignment.ID, workflow.ReviewAssignment{})
	require.NoError(t, err)

	// Deciding from the pre-review snapshot must not overwrite the newer state.
	svc := f.assignments.(*assignmentService)
	err = svc.apply(ctx, teacher, assignment, workflow.ReviewAssignment{Feedback: "late"})
	require.ErrorIs(t, err, repository.ErrStaleState)

	stored, err := repository.NewAssignmentRepository(f.db).GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.AssignmentReviewed, stored.Status)
	require.Empty(t, stored.Feedback)
}

func TestAssignmentReopenLimit(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	assignment := seedAssignmentIn(t, f, workflow.AssignmentCompleted, 1)

	_, err := f.assignments.Transition(ctx, teacher, assignment.ID, workflow.ReopenAssignment{Reason: "again"})
	require.ErrorIs(t, err, workflow.ErrLimitExceeded)

	_, err = f.assignments.Transition(ctx, teacher, assignment.ID, workflow.ReopenAssignment{Reason: "   "})
	require.ErrorIs(t, err, workflow.ErrValidation)
}

func TestAssignmentSubmitNeedsContent(t *testing.T) {
	f := newFixture(t, 3)
	assignment := seedAssignmentIn(t, f, workflow.AssignmentViewed, 0)

	_, err := f.assignments.Transition(context.Background(), student, assignment.ID, workflow.SubmitAssignment{Text: "<script></script>"})
	require.ErrorIs(t, err, workflow.ErrValidation)
}

func TestAssignmentDeleteOnlyBeforeSubmission(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	submitted := seedAssignmentIn(t, f, workflow.AssignmentSubmitted, 0)
	err := f.assignments.Delete(ctx, teacher, submitted.ID)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	viewed := seedAssignmentIn(t, f, workflow.AssignmentViewed, 0)
	require.ErrorIs(t, f.assignments.Delete(ctx, student, viewed.ID), policy.ErrForbidden)
	require.NoError(t, f.assignments.Delete(ctx, teacher, viewed.ID))

	_, err = f.assignments.Get(ctx, owner, viewed.ID)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestAssignmentListScoping(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	seedAssignmentIn(t, f, workflow.AssignmentAssigned, 0)
	other := models.Assignment{SchoolID: 1, ClassID: 5, StudentID: 7, TeacherID: 6, Title: "Surah Yasin", Status: workflow.AssignmentAssigned, AssignedAt: time.Now().UTC()}
	require.NoError(t, f.db.Create(&other).Error)

	cases := []struct {
		name  string
		actor Actor
		query dto.AssignmentListQuery
		want  int
	}{
		{name: "owner sees school", actor: owner, want: 2},
		{name: "teacher sees own class", actor: teacher, want: 1},
		{name: "teacher cannot filter into another class", actor: teacher, query: dto.AssignmentListQuery{ClassID: uintPtr(5)}, want: 0},
		{name: "other teacher", actor: otherTeacher, want: 1},
		{name: "student sees own", actor: student, want: 1},
		{name: "classmate sees nothing", actor: classmate, want: 0},
		{name: "parent sees child", actor: parent, want: 1},
		{name: "parent cannot filter into a class", actor: parent, query: dto.AssignmentListQuery{StudentID: uintPtr(7)}, want: 0},
		{name: "foreign school", actor: foreignOwner, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := f.assignments.List(ctx, tc.actor, tc.query)
			require.NoError(t, err)
			require.Len(t, list.Items, tc.want)
			require.Equal(t, int64(tc.want), list.Total)
		})
	}
}

func TestAssignmentNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, 3)
	f.notifier.fail = true
	assignment := seedAssignmentIn(t, f, workflow.AssignmentSubmitted, 0)

	reviewed, err := f.assignments.Transition(context.Background(), teacher, assignment.ID, workflow.ReviewAssignment{})
	require.NoError(t, err)
	require.Equal(t, string(workflow.AssignmentReviewed), reviewed.Status)
}

func TestAssignmentCreateRejectsStudentOutsideClass(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.assignments.Create(context.Background(), teacher, dto.AssignmentCreateRequest{ClassID: 1, StudentID: 7, Title: "Surah Al-Kahf"})
	require.ErrorIs(t, err, workflow.ErrValidation)

	_, err = f.assignments.Create(context.Background(), otherTeacher, dto.AssignmentCreateRequest{ClassID: 1, StudentID: 3, Title: "Surah Al-Kahf"})
	require.ErrorIs(t, err, policy.ErrForbidden)

	_, err = f.assignments.Create(context.Background(), teacher, dto.AssignmentCreateRequest{ClassID: 42, StudentID: 3, Title: "Surah Al-Kahf"})
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestAssignmentUploadDisabledWithoutStorage(t *testing.T) {
	f := newFixture(t, 3)
	assignment := seedAssignmentIn(t, f, workflow.AssignmentViewed, 0)

	_, err := f.assignments.UploadAttachment(context.Background(), student, assignment.ID, nil)
	require.ErrorIs(t, err, ErrUploadsDisabled)
}

func TestAssignmentUploadFollowsSubmitEdge(t *testing.T) {
	f := newFixture(t, 3)
	storage := &memoryStorage{}
	assignments := NewAssignmentService(AssignmentServiceDeps{
		Repo:        repository.NewAssignmentRepository(f.db),
		Directory:   f.directory,
		Machine:     workflow.NewAssignmentMachine(3),
		Recorder:    f.recorder,
		Notifier:    f.notifier,
		Attachments: NewAttachmentStore(storage, 1, testLogger()),
		Validator:   validator.New(validator.WithRequiredStructEnabled()),
	}, testLogger())

	for _, status := range []workflow.AssignmentStatus{workflow.AssignmentViewed, workflow.AssignmentReopened} {
		assignment := seedAssignmentIn(t, f, status, 0)
		_, err := assignments.UploadAttachment(context.Background(), student, assignment.ID, fileHeader(t, "page.png", pngHeader))
		require.NoError(t, err, status)
	}

	for _, status := range []workflow.AssignmentStatus{workflow.AssignmentAssigned, workflow.AssignmentSubmitted, workflow.AssignmentCompleted} {
		assignment := seedAssignmentIn(t, f, status, 0)
		_, err := assignments.UploadAttachment(context.Background(), student, assignment.ID, fileHeader(t, "page.png", pngHeader))
		require.ErrorIs(t, err, workflow.ErrInvalidTransition, status)
	}

	require.Len(t, storage.names, 2)
}
