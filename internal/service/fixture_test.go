package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/repository"
)

const (
	categoryHardware  int64 = 1
	categoryNoSLA     int64 = 2
	categoryNoSkills  int64 = 3
	categoryInactive  int64 = 4
	specialtyHardware int64 = 10
	specialtyNetwork  int64 = 20

	techAna   int64 = 11
	techLuis  int64 = 12
	techOff   int64 = 13
	techOther int64 = 14

	requesterID int64 = 7
	adminUserID int64 = 1
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	admin  = domain.Principal{UserID: adminUserID, Role: domain.RoleAdministrator}
	client = domain.Principal{UserID: requesterID, Role: domain.RoleClient}
)

func technicianPrincipal(userID, technicianID int64) domain.Principal {
	return domain.Principal{UserID: userID, Role: domain.RoleTechnician, TechnicianID: &technicianID}
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channel)
	return nil
}

type stubLocker struct {
	mu       sync.Mutex
	err      error
	acquired []string
	released int
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, key)
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

// deadlineStore fails every transaction as if the database timed out.
type deadlineStore struct {
	repository.Store
}

func (deadlineStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	return context.DeadlineExceeded
}

// failingDispatcher rejects every event.
type failingDispatcher struct{}

func (failingDispatcher) Publish(ctx context.Context, event events.Event) error {
	return errors.New("event bus closed")
}

func (failingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type fixture struct {
	store         *repository.MemoryStore
	publisher     *recordingPublisher
	locker        *stubLocker
	triage        *TriageService
	tickets       *TicketService
	technicians   *TechnicianService
	notifications *NotificationService
	clock         time.Time
}

type fixtureOption func(*TriageDependencies, *TicketDependencies)

func withAutoTriage() fixtureOption {
	return func(_ *TriageDependencies, td *TicketDependencies) { td.AutoTriage = true }
}

func withTriageConfig(cfg config.TriageConfig) fixtureOption {
	return func(d *TriageDependencies, _ *TicketDependencies) { d.Config = cfg }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	standard := &domain.SLA{ID: 1, Name: "Standard", ResponseMinutes: 60, ResolutionMinutes: 120, Active: true}
	store.PutCategory(domain.Category{ID: categoryHardware, Name: "Hardware", SLAID: 1, SLA: standard, SpecialtyIDs: []int64{specialtyHardware}, Criterion: domain.CriterionBestRated, Active: true})
	store.PutCategory(domain.Category{ID: categoryNoSLA, Name: "Unbound", SpecialtyIDs: []int64{specialtyHardware}, Active: true})
	store.PutCategory(domain.Category{ID: categoryNoSkills, Name: "Generic", SLAID: 1, SLA: standard, Active: true})
	store.PutCategory(domain.Category{ID: categoryInactive, Name: "Retired", SLAID: 1, SLA: standard, SpecialtyIDs: []int64{specialtyHardware}})

	store.PutTechnician(domain.Technician{ID: techAna, UserID: 100, Name: "Ana", Workload: 2, Availability: domain.AvailabilityAvailable, AverageRating: 4.1, SpecialtyIDs: []int64{specialtyHardware}})
	store.PutTechnician(domain.Technician{ID: techLuis, UserID: 101, Name: "Luis", Workload: 5, Availability: domain.AvailabilityAvailable, AverageRating: 4.9, SpecialtyIDs: []int64{specialtyHardware}})
	store.PutTechnician(domain.Technician{ID: techOff, UserID: 102, Name: "Off", Workload: 0, Availability: domain.AvailabilityUnavailable, SpecialtyIDs: []int64{specialtyHardware}})
	store.PutTechnician(domain.Technician{ID: techOther, UserID: 103, Name: "Net", Workload: 0, Availability: domain.AvailabilityAvailable, SpecialtyIDs: []int64{specialtyNetwork}})

	f := &fixture{store: store, publisher: &recordingPublisher{}, locker: &stubLocker{}, clock: t0}
	dispatcher := events.NewInMemoryDispatcher(nil)

	triageDeps := TriageDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Locker:     f.locker,
		Config:     config.TriageConfig{BatchConcurrency: 1},
	}
	ticketDeps := TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Now:        func() time.Time { return f.clock },
	}
	for _, opt := range opts {
		opt(&triageDeps, &ticketDeps)
	}

	f.triage = NewTriageService(triageDeps)
	ticketDeps.Triage = f.triage
	f.tickets = NewTicketService(ticketDeps)
	f.technicians = NewTechnicianService(store, nil, 0)
	f.notifications = NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Store:      store,
		Publisher:  f.publisher,
		Config:     config.NotificationConfig{RedisChannelPrefix: "notifications"},
	})
	f.notifications.RegisterHandlers()
	return f
}

func (f *fixture) openTicket(t *testing.T, categoryID int64, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), client, TicketCreateInput{
		CategoryID:  categoryID,
		Title:       "Printer jammed",
		Description: "third floor printer",
		Priority:    priority,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) ticket(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().Get(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) technician(t *testing.T, id int64) *domain.Technician {
	t.Helper()
	tech, err := f.store.Technicians().Get(context.Background(), id)
	require.NoError(t, err)
	return tech
}

func (f *fixture) inbox(t *testing.T, userID int64) []domain.Notification {
	t.Helper()
	list, err := f.store.Notifications().ListForUser(context.Background(), userID, false, 0, 0)
	require.NoError(t, err)
	return list
}

var errRedisDown = errors.New("dial tcp: connection refused")

func evidence() []domain.EvidenceImage {
	return []domain.EvidenceImage{{FileName: "photo.jpg", StoragePath: "evidence/photo.jpg"}}
}
