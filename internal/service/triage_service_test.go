package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func TestAutoAssignPicksHighestScore(t *testing.T) {
	f := newFixture(t)
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)

	result, err := f.triage.AutoAssign(context.Background(), ticket.ID, t0.Add(60*time.Minute))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.TechnicianID)
	assert.Equal(t, techAna, *result.TechnicianID)
	require.NotNil(t, result.Score)
	assert.Equal(t, 1920, *result.Score)
	assert.Contains(t, result.Rationale, "final score 1920")
	assert.Contains(t, result.Rationale, "[priority_score]")

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusAssigned, stored.Status)
	assert.True(t, stored.AssignedTo(techAna))
	require.NotNil(t, stored.ResponseCompliant)
	assert.True(t, *stored.ResponseCompliant)

	assert.Equal(t, 3, f.technician(t, techAna).Workload)
	assert.Equal(t, 5, f.technician(t, techLuis).Workload)

	assignments, err := f.store.History().Assignments(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, domain.AssignmentMethodPending, assignments[0].Method)
	assert.Equal(t, domain.AssignmentMethodAutomatic, assignments[1].Method)
	require.NotNil(t, assignments[1].Score)
	assert.Equal(t, 1920, *assignments[1].Score)

	changes, err := f.store.History().StateChanges(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.TicketStatusAssigned, changes[1].ToStatus)

	assert.Len(t, f.inbox(t, requesterID), 2)
	anaInbox := f.inbox(t, 100)
	require.Len(t, anaInbox, 1)
	assert.Equal(t, domain.NotificationTicketAssigned, anaInbox[0].Type)
	assert.Contains(t, f.publisher.channels, "notifications:100")

	assert.Equal(t, []string{"triage:ticket:1"}, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestAutoAssignHonorsCategoryCriterionWhenEnabled(t *testing.T) {
	f := newFixture(t, withTriageConfig(config.TriageConfig{HonorCategoryCriterion: true}))
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)

	result, err := f.triage.AutoAssign(context.Background(), ticket.ID, t0.Add(60*time.Minute))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, techLuis, *result.TechnicianID, "best_rated picks the higher rating")
	assert.Contains(t, result.Rationale, "[best_rated]")
}

func TestAutoAssignNoTechnicianLeavesTicketPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []int64{techAna, techLuis} {
		_, err := f.technicians.SetAvailability(ctx, admin, id, domain.AvailabilityUnavailable)
		require.NoError(t, err)
	}
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityHigh)

	result, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, apperrors.HasCode(result.Err, apperrors.CodePrecondition))
	assert.Equal(t, "no technician available", result.Error)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusPending, stored.Status)
	assert.Nil(t, stored.TechnicianID)
	assert.Equal(t, 2, f.technician(t, techAna).Workload)
	assert.Equal(t, 5, f.technician(t, techLuis).Workload)

	assignments, err := f.store.History().Assignments(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}

func TestAutoAssignPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown ticket", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.triage.AutoAssign(ctx, 999, t0)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, apperrors.HasCode(result.Err, apperrors.CodeNotFound))
	})

	t.Run("already assigned", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityLow)
		first, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
		require.NoError(t, err)
		require.True(t, first.Success)

		second, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
		require.NoError(t, err)
		assert.False(t, second.Success)
		assert.True(t, apperrors.HasCode(second.Err, apperrors.CodePrecondition))
		assert.Contains(t, second.Error, "ASSIGNED")
		assert.Equal(t, 3, f.technician(t, techAna).Workload, "workload only bumped once")
	})

	t.Run("category without SLA", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryNoSLA, domain.TicketPriorityLow)
		result, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
		require.NoError(t, err)
		assert.True(t, apperrors.HasCode(result.Err, apperrors.CodePrecondition))
		assert.Contains(t, result.Error, "SLA")
	})

	t.Run("category without specialties", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryNoSkills, domain.TicketPriorityLow)
		result, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
		require.NoError(t, err)
		assert.True(t, apperrors.HasCode(result.Err, apperrors.CodePrecondition))
		assert.Contains(t, result.Error, "specialties")
	})
}

func TestAutoAssignLocking(t *testing.T) {
	ctx := context.Background()

	t.Run("held lock rejects", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
		f.locker.err = persistence.ErrLockHeld

		result, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, apperrors.HasCode(result.Err, apperrors.CodePrecondition))
		assert.Equal(t, domain.TicketStatusPending, f.ticket(t, ticket.ID).Status)
	})

	t.Run("unreachable redis is tolerated", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
		f.locker.err = errRedisDown

		result, err := f.triage.AutoAssign(ctx, ticket.ID, t0)
		require.NoError(t, err)
		assert.True(t, result.Success, result.Error)
	})
}

func TestAutoAssignStoreTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
	svc := NewTriageService(TriageDependencies{Store: deadlineStore{f.store}})

	result, err := svc.AutoAssign(context.Background(), ticket.ID, t0)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, result.Success)
}

func TestBatchAutoAssignPartialSuccess(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		f := newFixture(t, withTriageConfig(config.TriageConfig{BatchConcurrency: concurrency}))
		good1 := f.openTicket(t, categoryHardware, domain.TicketPriorityHigh)
		bad := f.openTicket(t, categoryNoSLA, domain.TicketPriorityHigh)
		good2 := f.openTicket(t, categoryHardware, domain.TicketPriorityLow)

		results, err := f.triage.BatchAutoAssign(context.Background(), t0.Add(10*time.Minute))
		require.NoError(t, err)
		require.Len(t, results, 3)

		byTicket := map[int64]AssignmentResult{}
		for _, r := range results {
			byTicket[r.TicketID] = r
		}
		assert.True(t, byTicket[good1.ID].Success)
		assert.True(t, byTicket[good2.ID].Success)
		assert.False(t, byTicket[bad.ID].Success)
		assert.NotEmpty(t, byTicket[bad.ID].Error)

		assert.Equal(t, domain.TicketStatusPending, f.ticket(t, bad.ID).Status)
		total := f.technician(t, techAna).Workload + f.technician(t, techLuis).Workload
		assert.Equal(t, 2+5+2, total, "exactly two assignments landed")
	}
}

func TestBatchAutoAssignSequentialOrderIsOldestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.openTicket(t, categoryHardware, domain.TicketPriorityLow)
	f.clock = t0.Add(time.Minute)
	second := f.openTicket(t, categoryHardware, domain.TicketPriorityLow)

	results, err := f.triage.BatchAutoAssign(context.Background(), t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].TicketID)
	assert.Equal(t, second.ID, results[1].TicketID)
}

func TestBatchAutoAssignCoversEveryPage(t *testing.T) {
	f := newFixture(t)
	total := batchPageSize + 5
	for i := 0; i < total; i++ {
		f.openTicket(t, categoryNoSLA, domain.TicketPriorityLow)
	}

	results, err := f.triage.BatchAutoAssign(context.Background(), t0)
	require.NoError(t, err)
	require.Len(t, results, total)

	seen := make(map[int64]bool, total)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.True(t, apperrors.HasCode(r.Err, apperrors.CodePrecondition))
		seen[r.TicketID] = true
	}
	assert.Len(t, seen, total, "each pending ticket is attempted once")
}

func TestConcurrentAutoAssignAssignsOnce(t *testing.T) {
	f := newFixture(t)
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
	svc := NewTriageService(TriageDependencies{Store: f.store})
	before := f.technician(t, techAna).Workload + f.technician(t, techLuis).Workload

	const workers = 8
	results := make([]AssignmentResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.AutoAssign(context.Background(), ticket.ID, t0.Add(time.Minute))
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(r.Err, apperrors.CodePrecondition), r.Error)
	}
	assert.Equal(t, 1, succeeded)

	after := f.technician(t, techAna).Workload + f.technician(t, techLuis).Workload
	assert.Equal(t, before+1, after)

	assignments, err := f.store.History().Assignments(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 2, "placeholder plus one automatic record")
}

func TestAssignmentSurvivesDispatchFailure(t *testing.T) {
	f := newFixture(t)
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
	core, logs := observer.New(zap.WarnLevel)
	svc := NewTriageService(TriageDependencies{
		Store:      f.store,
		Dispatcher: failingDispatcher{},
		Logger:     zap.New(core),
	})

	result, err := svc.AutoAssign(context.Background(), ticket.ID, t0)
	require.NoError(t, err)
	assert.True(t, result.Success, result.Error)

	entries := logs.FilterMessage("assignment notifications not dispatched").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "event dispatch failed")
}

func TestManualAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("administrators only", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
		result, err := f.triage.ManualAssign(ctx, client, ticket.ID, techLuis, t0)
		require.NoError(t, err)
		assert.True(t, apperrors.HasCode(result.Err, apperrors.CodeForbidden))
	})

	t.Run("unknown technician", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
		result, err := f.triage.ManualAssign(ctx, admin, ticket.ID, 404, t0)
		require.NoError(t, err)
		assert.True(t, apperrors.HasCode(result.Err, apperrors.CodeNotFound))
		assert.Equal(t, domain.TicketStatusPending, f.ticket(t, ticket.ID).Status)
	})

	t.Run("assigns the chosen technician", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
		result, err := f.triage.ManualAssign(ctx, admin, ticket.ID, techLuis, t0.Add(5*time.Minute))
		require.NoError(t, err)
		require.True(t, result.Success, result.Error)
		assert.Nil(t, result.Score)

		assert.True(t, f.ticket(t, ticket.ID).AssignedTo(techLuis))
		assert.Equal(t, 6, f.technician(t, techLuis).Workload)

		assignments, err := f.store.History().Assignments(ctx, ticket.ID)
		require.NoError(t, err)
		last := assignments[len(assignments)-1]
		assert.Equal(t, domain.AssignmentMethodManual, last.Method)
		assert.Equal(t, adminUserID, last.AssignedBy)
	})
}

func TestCandidatesIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)

	_, err := f.triage.Candidates(context.Background(), client, ticket.ID, t0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	preview, err := f.triage.Candidates(context.Background(), admin, ticket.ID, t0.Add(60*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.CriterionPriorityScore, preview.Criterion)
	assert.Equal(t, 2, preview.PriorityWeight)
	assert.Equal(t, 60, preview.RemainingMinutes)
	require.Len(t, preview.Candidates, 2)
	assert.Equal(t, techAna, preview.Candidates[0].Technician.ID)
	assert.Equal(t, 1920, preview.Candidates[0].Score)
	assert.Equal(t, techLuis, preview.Candidates[1].Technician.ID)
	assert.Equal(t, 1890, preview.Candidates[1].Score)

	assert.Equal(t, domain.TicketStatusPending, f.ticket(t, ticket.ID).Status)
	assert.Equal(t, 2, f.technician(t, techAna).Workload)
}
