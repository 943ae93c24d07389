package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

func seedTarget(t *testing.T, repo TargetRepository) models.Target {
	t.Helper()
	studentID := uint(3)
	target := models.Target{
		SchoolID:  1,
		Scope:     workflow.ScopeIndividual,
		StudentID: &studentID,
		CreatedBy: 2,
		Title:     "Juz 30 by Ramadan",
		Status:    workflow.TargetActive,
	}
	require.NoError(t, repo.Create(context.Background(), &target))
	return target
}

func TestAddMilestoneCapsAtTwenty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)
	target := seedTarget(t, repo)
	ctx := context.Background()

	decide := func(target models.Target, orders []int) (int, error) {
		return workflow.NextMilestoneOrder(target.Status, orders)
	}

	for i := 1; i <= workflow.MaxMilestones; i++ {
		milestone, err := repo.AddMilestone(ctx, target.ID, "step", decide)
		require.NoError(t, err)
		require.Equal(t, i, milestone.OrderIndex)
	}

	_, err := repo.AddMilestone(ctx, target.ID, "one too many", decide)
	require.ErrorIs(t, err, workflow.ErrLimitExceeded)

	stored, err := repo.GetByID(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, stored.Milestones, workflow.MaxMilestones)
	require.Equal(t, 1, stored.Milestones[0].OrderIndex)
	require.Equal(t, workflow.MaxMilestones, stored.Milestones[workflow.MaxMilestones-1].OrderIndex)
}

func TestSetMilestoneCompletedHonoursGuard(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)
	target := seedTarget(t, repo)
	ctx := context.Background()

	milestone, err := repo.AddMilestone(ctx, target.ID, "An-Naba", func(target models.Target, orders []int) (int, error) {
		return workflow.NextMilestoneOrder(target.Status, orders)
	})
	require.NoError(t, err)

	guard := func(target models.Target) error { return workflow.ToggleMilestone(target.Status) }
	updated, err := repo.SetMilestoneCompleted(ctx, target.ID, milestone.ID, true, time.Now().UTC(), guard)
	require.NoError(t, err)
	require.True(t, updated.Completed)
	require.NotNil(t, updated.CompletedAt)

	require.NoError(t, repo.Transition(ctx, target.ID, workflow.TargetActive, map[string]interface{}{"status": string(workflow.TargetCompleted)}))

	_, err = repo.SetMilestoneCompleted(ctx, target.ID, milestone.ID, false, time.Now().UTC(), guard)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestTargetListAudience(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTargetRepository(db)
	ctx := context.Background()

	seedTarget(t, repo)
	classID := uint(4)
	classTarget := models.Target{SchoolID: 1, Scope: workflow.ScopeClass, ClassID: &classID, CreatedBy: 2, Title: "Class khatm", Status: workflow.TargetActive}
	require.NoError(t, repo.Create(ctx, &classTarget))
	schoolTarget := models.Target{SchoolID: 1, Scope: workflow.ScopeSchool, CreatedBy: 1, Title: "School khatm", Status: workflow.TargetActive}
	require.NoError(t, repo.Create(ctx, &schoolTarget))

	visible, err := repo.List(ctx, TargetFilter{SchoolID: 1, Restrict: true, StudentIDs: []uint{99}, ClassIDs: []uint{4}})
	require.NoError(t, err)
	require.Len(t, visible, 2)

	all, err := repo.List(ctx, TargetFilter{SchoolID: 1})
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, repo.Delete(ctx, classTarget.ID))
	_, err = repo.GetByID(ctx, classTarget.ID)
	require.Error(t, err)
}
