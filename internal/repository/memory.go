package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// MemoryStore is a process-local Store used when no database is configured
// and in tests. Transactions are serialized and rolled back by restoring a
// snapshot.
type MemoryStore struct {
	mu     *sync.Mutex
	state  *memState
	locked bool
	now    func() time.Time
}

type memState struct {
	seq           int64
	tickets       map[int64]domain.Ticket
	technicians   map[int64]domain.Technician
	categories    map[int64]domain.Category
	stateChanges  []domain.StateChange
	assignments   []domain.Assignment
	notifications []domain.Notification
	ratings       []domain.Rating
}

func (s *memState) clone() *memState {
	out := &memState{
		seq:           s.seq,
		tickets:       make(map[int64]domain.Ticket, len(s.tickets)),
		technicians:   make(map[int64]domain.Technician, len(s.technicians)),
		categories:    make(map[int64]domain.Category, len(s.categories)),
		stateChanges:  append([]domain.StateChange(nil), s.stateChanges...),
		assignments:   append([]domain.Assignment(nil), s.assignments...),
		notifications: append([]domain.Notification(nil), s.notifications...),
		ratings:       append([]domain.Rating(nil), s.ratings...),
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	for k, v := range s.technicians {
		out.technicians[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	return out
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		state: &memState{
			tickets:     map[int64]domain.Ticket{},
			technicians: map[int64]domain.Technician{},
			categories:  map[int64]domain.Category{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// PutCategory inserts or replaces a category. A zero ID is assigned.
func (m *MemoryStore) PutCategory(c domain.Category) domain.Category {
	unlock := m.lock()
	defer unlock()
	if c.ID == 0 {
		c.ID = m.state.nextID()
	}
	m.state.categories[c.ID] = c
	return c
}

// PutTechnician inserts or replaces a technician. A zero ID is assigned.
func (m *MemoryStore) PutTechnician(t domain.Technician) domain.Technician {
	unlock := m.lock()
	defer unlock()
	if t.ID == 0 {
		t.ID = m.state.nextID()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	m.state.technicians[t.ID] = t
	return t
}

func (m *MemoryStore) lock() func() {
	if m.locked {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) Tickets() TicketRepository { return memTickets{m} }
func (m *MemoryStore) Technicians() TechnicianRepository { return memTechnicians{m} }
func (m *MemoryStore) Categories() CategoryRepository { return memCategories{m} }
func (m *MemoryStore) History() HistoryRepository { return memHistory{m} }
func (m *MemoryStore) Notifications() NotificationRepository { return memNotifications{m} }
func (m *MemoryStore) Ratings() RatingRepository { return memRatings{m} }

// WithTx holds the store lock for the whole of fn and restores the previous
// state when fn fails.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if m.locked {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	tx := &MemoryStore{mu: m.mu, state: m.state, locked: true, now: m.now}
	if err := fn(tx); err != nil {
		*m.state = *snapshot
		return err
	}
	return nil
}

type memTickets struct{ m *MemoryStore }

func (r memTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	unlock := r.m.lock()
	defer unlock()
	ticket.ID = r.m.state.nextID()
	ticket.UpdatedAt = ticket.CreatedAt
	ticket.Version = 1
	r.m.state.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	unlock := r.m.lock()
	defer unlock()
	current, ok := r.m.state.tickets[ticket.ID]
	if !ok || current.Version != ticket.Version {
		return ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = r.m.now()
	r.m.state.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTickets) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	unlock := r.m.lock()
	defer unlock()
	ticket, ok := r.m.state.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

func (r memTickets) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.Get(ctx, id)
}

func (r memTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	unlock := r.m.lock()
	defer unlock()

	var result []domain.Ticket
	for _, t := range r.m.state.tickets {
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.TechnicianID != nil && !t.AssignedTo(*filter.TechnicianID) {
			continue
		}
		if filter.CategoryID != nil && t.CategoryID != *filter.CategoryID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if term != "" && !strings.Contains(strings.ToLower(t.Title), term) && !strings.Contains(strings.ToLower(t.Description), term) {
				continue
			}
		}
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		if filter.OldestFirst {
			if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
				return result[i].CreatedAt.Before(result[j].CreatedAt)
			}
			return result[i].ID < result[j].ID
		}
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

type memTechnicians struct{ m *MemoryStore }

func (r memTechnicians) Get(ctx context.Context, id int64) (*domain.Technician, error) {
	unlock := r.m.lock()
	defer unlock()
	tech, ok := r.m.state.technicians[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tech, nil
}

func (r memTechnicians) GetForUpdate(ctx context.Context, id int64) (*domain.Technician, error) {
	return r.Get(ctx, id)
}

func (r memTechnicians) GetByUserID(ctx context.Context, userID int64) (*domain.Technician, error) {
	unlock := r.m.lock()
	defer unlock()
	for _, tech := range r.m.state.technicians {
		if tech.UserID == userID {
			return &tech, nil
		}
	}
	return nil, ErrNotFound
}

func (r memTechnicians) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	unlock := r.m.lock()
	defer unlock()
	var result []domain.Technician
	for _, tech := range r.m.state.technicians {
		if filter.Availability != nil && tech.Availability != *filter.Availability {
			continue
		}
		if len(filter.SpecialtyIDs) > 0 && !tech.HasAnySpecialty(filter.SpecialtyIDs) {
			continue
		}
		result = append(result, tech)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r memTechnicians) Update(ctx context.Context, technician *domain.Technician) error {
	unlock := r.m.lock()
	defer unlock()
	current, ok := r.m.state.technicians[technician.ID]
	if !ok || current.Version != technician.Version {
		return ErrVersionConflict
	}
	current.Workload = technician.Workload
	current.Availability = technician.Availability
	current.AverageRating = technician.AverageRating
	current.Version++
	current.UpdatedAt = r.m.now()
	r.m.state.technicians[technician.ID] = current
	technician.Version = current.Version
	technician.UpdatedAt = current.UpdatedAt
	return nil
}

type memCategories struct{ m *MemoryStore }

func (r memCategories) Get(ctx context.Context, id int64) (*domain.Category, error) {
	unlock := r.m.lock()
	defer unlock()
	category, ok := r.m.state.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	if category.SLA != nil && !category.SLA.Active {
		category.SLA = nil
	}
	return &category, nil
}

type memHistory struct{ m *MemoryStore }

func (r memHistory) AppendStateChange(ctx context.Context, change *domain.StateChange) error {
	unlock := r.m.lock()
	defer unlock()
	change.ID = r.m.state.nextID()
	for i := range change.Evidence {
		change.Evidence[i].ID = r.m.state.nextID()
		change.Evidence[i].StateChangeID = change.ID
	}
	stored := *change
	stored.Evidence = append([]domain.EvidenceImage(nil), change.Evidence...)
	r.m.state.stateChanges = append(r.m.state.stateChanges, stored)
	return nil
}

func (r memHistory) AppendAssignment(ctx context.Context, assignment *domain.Assignment) error {
	unlock := r.m.lock()
	defer unlock()
	assignment.ID = r.m.state.nextID()
	r.m.state.assignments = append(r.m.state.assignments, *assignment)
	return nil
}

func (r memHistory) StateChanges(ctx context.Context, ticketID int64) ([]domain.StateChange, error) {
	unlock := r.m.lock()
	defer unlock()
	var result []domain.StateChange
	for _, change := range r.m.state.stateChanges {
		if change.TicketID == ticketID {
			result = append(result, change)
		}
	}
	return result, nil
}

func (r memHistory) Assignments(ctx context.Context, ticketID int64) ([]domain.Assignment, error) {
	unlock := r.m.lock()
	defer unlock()
	var result []domain.Assignment
	for _, assignment := range r.m.state.assignments {
		if assignment.TicketID == ticketID {
			result = append(result, assignment)
		}
	}
	return result, nil
}

type memNotifications struct{ m *MemoryStore }

func (r memNotifications) Create(ctx context.Context, n *domain.Notification) error {
	unlock := r.m.lock()
	defer unlock()
	n.ID = r.m.state.nextID()
	n.CreatedAt = r.m.now()
	if n.Status == "" {
		n.Status = domain.NotificationStatusPending
	}
	r.m.state.notifications = append(r.m.state.notifications, *n)
	return nil
}

func (r memNotifications) ListForUser(ctx context.Context, userID int64, onlyPending bool, limit, offset int) ([]domain.Notification, error) {
	unlock := r.m.lock()
	defer unlock()
	var result []domain.Notification
	for i := len(r.m.state.notifications) - 1; i >= 0; i-- {
		n := r.m.state.notifications[i]
		if n.RecipientID != userID {
			continue
		}
		if onlyPending && n.Status != domain.NotificationStatusPending {
			continue
		}
		result = append(result, n)
	}
	return page(result, limit, offset), nil
}

func (r memNotifications) CountPending(ctx context.Context, userID int64) (int, error) {
	unlock := r.m.lock()
	defer unlock()
	count := 0
	for _, n := range r.m.state.notifications {
		if n.RecipientID == userID && n.Status == domain.NotificationStatusPending {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) MarkRead(ctx context.Context, id, userID int64, at time.Time) error {
	unlock := r.m.lock()
	defer unlock()
	for i := range r.m.state.notifications {
		n := &r.m.state.notifications[i]
		if n.ID != id || n.RecipientID != userID {
			continue
		}
		n.Status = domain.NotificationStatusRead
		if n.ReadAt == nil {
			readAt := at
			n.ReadAt = &readAt
		}
		return nil
	}
	return ErrNotFound
}

type memRatings struct{ m *MemoryStore }

func (r memRatings) Create(ctx context.Context, rating *domain.Rating) error {
	unlock := r.m.lock()
	defer unlock()
	for _, existing := range r.m.state.ratings {
		if existing.TicketID == rating.TicketID {
			return ErrAlreadyRated
		}
	}
	rating.ID = r.m.state.nextID()
	r.m.state.ratings = append(r.m.state.ratings, *rating)
	return nil
}

func (r memRatings) GetByTicket(ctx context.Context, ticketID int64) (*domain.Rating, error) {
	unlock := r.m.lock()
	defer unlock()
	for _, rating := range r.m.state.ratings {
		if rating.TicketID == ticketID {
			return &rating, nil
		}
	}
	return nil, ErrNotFound
}

func (r memRatings) TechnicianAverage(ctx context.Context, technicianID int64) (float64, error) {
	unlock := r.m.lock()
	defer unlock()
	sum, count := 0, 0
	for _, rating := range r.m.state.ratings {
		if rating.TechnicianID == technicianID {
			sum += rating.Score
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}
