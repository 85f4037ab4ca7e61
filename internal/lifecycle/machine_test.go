package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk-service/internal/domain"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

var created = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTicket() *domain.Ticket {
	t := &domain.Ticket{ID: 42, Title: "VPN down", RequesterID: 100, CategoryID: 3, Priority: domain.TicketPriorityHigh}
	Open(t, created)
	return t
}

func policy() *domain.SLA {
	return &domain.SLA{ID: 1, ResponseMinutes: 30, ResolutionMinutes: 120, Active: true}
}

func evidence() []domain.EvidenceImage {
	return []domain.EvidenceImage{{FileName: "screen.png", StoragePath: "evidence/42/screen.png"}}
}

func userChange(to domain.TicketStatus, at time.Time) Request {
	return Request{To: to, ActorID: 7, Notes: "work log", Evidence: evidence(), At: at, TechnicianUserID: ptr(int64(900))}
}

func assign(at time.Time) Request {
	return Request{To: domain.TicketStatusAssigned, ActorID: 1, Notes: "auto", At: at, System: true, TechnicianID: ptr(int64(9)), TechnicianUserID: ptr(int64(900))}
}

func TestNextIsForwardOnly(t *testing.T) {
	for i, status := range domain.TicketStatuses {
		next := Next(status)
		if i == len(domain.TicketStatuses)-1 {
			assert.Empty(t, next, "closed is terminal")
			continue
		}
		require.Len(t, next, 1)
		assert.Equal(t, domain.TicketStatuses[i+1], next[0])
	}
}

func TestCanTransitionRejectsEverythingOffTable(t *testing.T) {
	for _, from := range domain.TicketStatuses {
		allowed := Next(from)
		for _, to := range domain.TicketStatuses {
			expected := len(allowed) == 1 && allowed[0] == to
			assert.Equal(t, expected, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestOpenAndCreated(t *testing.T) {
	ticket := newTicket()
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Nil(t, ticket.TechnicianID)
	assert.Equal(t, created, ticket.CreatedAt)

	outcome := Created(ticket, 100, created)
	assert.Nil(t, outcome.Record.FromStatus)
	assert.Equal(t, domain.TicketStatusPending, outcome.Record.ToStatus)
	require.Len(t, outcome.Notifications, 1)
	assert.Equal(t, domain.NotificationTicketCreated, outcome.Notifications[0].Type)
	assert.Contains(t, outcome.Notifications[0].Message, "pending assignment")
}

func TestSkippingAStageIsRejected(t *testing.T) {
	ticket := newTicket()
	before := *ticket

	_, err := Apply(ticket, policy(), userChange(domain.TicketStatusInProgress, created.Add(time.Minute)))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	assert.Equal(t, before, *ticket)
}

func TestEmptyNotesRejectedBeforeMutation(t *testing.T) {
	ticket := newTicket()
	_, err := Apply(ticket, policy(), assign(created.Add(time.Minute)))
	require.NoError(t, err)
	before := *ticket

	req := userChange(domain.TicketStatusInProgress, created.Add(2*time.Minute))
	req.Notes = "   "
	outcome, err := Apply(ticket, policy(), req)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, before, *ticket)
}

func TestMissingEvidenceRejected(t *testing.T) {
	ticket := newTicket()
	_, err := Apply(ticket, policy(), assign(created.Add(time.Minute)))
	require.NoError(t, err)

	req := userChange(domain.TicketStatusInProgress, created.Add(2*time.Minute))
	req.Evidence = nil
	_, err = Apply(ticket, policy(), req)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
}

func TestAssignRequiresTechnician(t *testing.T) {
	ticket := newTicket()
	req := assign(created)
	req.TechnicianID = nil
	_, err := Apply(ticket, policy(), req)
	require.Error(t, err)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
}

func TestFullLifecycleStampsSLA(t *testing.T) {
	ticket := newTicket()

	outcome, err := Apply(ticket, policy(), assign(created.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, outcome.From)
	require.NotNil(t, ticket.TechnicianID)
	assert.Equal(t, int64(9), *ticket.TechnicianID)
	require.NotNil(t, ticket.FirstResponseAt)
	assert.True(t, *ticket.ResponseCompliant)
	require.Len(t, outcome.Notifications, 2)
	assert.Equal(t, int64(100), outcome.Notifications[0].RecipientID)
	assert.Equal(t, int64(900), outcome.Notifications[1].RecipientID)
	assert.Contains(t, outcome.Notifications[1].Message, "#42")

	_, err = Apply(ticket, policy(), userChange(domain.TicketStatusInProgress, created.Add(20*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, created.Add(10*time.Minute), *ticket.FirstResponseAt, "first response is write-once")

	_, err = Apply(ticket, policy(), userChange(domain.TicketStatusResolved, created.Add(150*time.Minute)))
	require.NoError(t, err)
	require.NotNil(t, ticket.ResolutionCompliant)
	assert.False(t, *ticket.ResolutionCompliant)

	outcome, err = Apply(ticket, policy(), userChange(domain.TicketStatusClosed, created.Add(3*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, created.Add(150*time.Minute), *ticket.ResolvedAt)
	assert.Equal(t, created.Add(3*time.Hour), *ticket.ClosedAt)
	assert.Equal(t, domain.TicketStatusResolved, *outcome.Record.FromStatus)

	_, err = Apply(ticket, policy(), userChange(domain.TicketStatusClosed, created.Add(4*time.Hour)))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "closed is terminal")
}

func TestCloseWithoutResolutionStampsResolution(t *testing.T) {
	// Simulates a ticket whose status reached RESOLVED without a resolution stamp
	// (e.g. SLA data was missing at that time).
	ticket := newTicket()
	_, err := Apply(ticket, policy(), assign(created.Add(time.Minute)))
	require.NoError(t, err)
	_, err = Apply(ticket, policy(), userChange(domain.TicketStatusInProgress, created.Add(2*time.Minute)))
	require.NoError(t, err)
	outcome, err := Apply(ticket, nil, userChange(domain.TicketStatusResolved, created.Add(3*time.Minute)))
	require.NoError(t, err)
	assert.True(t, outcome.SLASkipped)
	require.Nil(t, ticket.ResolvedAt)

	_, err = Apply(ticket, policy(), userChange(domain.TicketStatusClosed, created.Add(30*time.Minute)))
	require.NoError(t, err)
	require.NotNil(t, ticket.ResolvedAt)
	require.NotNil(t, ticket.ResolutionCompliant)
	assert.True(t, *ticket.ResolutionCompliant)
	assert.Equal(t, created.Add(30*time.Minute), *ticket.ClosedAt)
}

func TestMissingSLAStillTransitions(t *testing.T) {
	ticket := newTicket()
	outcome, err := Apply(ticket, nil, assign(created.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, outcome.SLASkipped)
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	assert.Nil(t, ticket.ResponseCompliant)
}

func TestNotificationsWithoutTechnician(t *testing.T) {
	ticket := newTicket()
	intents := Notifications(ticket, domain.TicketStatusResolved, nil)
	require.Len(t, intents, 1)
	assert.Equal(t, domain.NotificationStatusChanged, intents[0].Type)
	assert.Contains(t, intents[0].Message, "please verify")

	_, ok := TechnicianMessage(ticket, domain.TicketStatusPending)
	assert.False(t, ok)
}
