package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk-service/internal/domain"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func TestDeliverStoresThenPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticketID := int64(5)

	err := f.notifications.Deliver(ctx, domain.NotificationIntent{RecipientID: 42, TicketID: &ticketID, Type: domain.NotificationStatusChanged, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications:42"}, f.publisher.channels)

	inbox := f.inbox(t, 42)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationStatusPending, inbox[0].Status)
}

func TestDeliverFanOutFailureIsDependencyError(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("redis down")

	err := f.notifications.Deliver(context.Background(), domain.NotificationIntent{RecipientID: 42, Type: domain.NotificationTicketCreated, Message: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDependency))
	assert.Len(t, f.inbox(t, 42), 1, "inbox write survives a failed fan-out")
}

func TestFanOutFailureDoesNotFailTheOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("redis down")

	ticket := f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Len(t, f.inbox(t, requesterID), 1)
}

func TestInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openTicket(t, categoryHardware, domain.TicketPriorityMedium)
	f.openTicket(t, categoryHardware, domain.TicketPriorityHigh)

	count, err := f.notifications.PendingCount(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	list, err := f.notifications.ListForUser(ctx, client, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	stranger := domain.Principal{UserID: 99, Role: domain.RoleClient}
	err = f.notifications.MarkRead(ctx, stranger, list[0].ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	require.NoError(t, f.notifications.MarkRead(ctx, client, list[0].ID))
	count, err = f.notifications.PendingCount(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pending, err := f.notifications.ListForUser(ctx, client, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	empty, err := f.notifications.ListForUser(ctx, stranger, false, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
