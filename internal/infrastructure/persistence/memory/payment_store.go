// Package memory provides in-memory implementations of the persistence ports.
// They back unit tests and local dry runs; state lives only in the process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MemberStore is an in-memory payment.MemberRepository
type MemberStore struct {
	mu      sync.RWMutex
	members map[uuid.UUID]payment.Member
}

// NewMemberStore creates a store seeded with members
func NewMemberStore(members ...payment.Member) *MemberStore {
	s := &MemberStore{members: make(map[uuid.UUID]payment.Member)}
	for _, m := range members {
		s.members[m.ID] = m
	}
	return s
}

// Add inserts or replaces a member
func (s *MemberStore) Add(m payment.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemberStore) FindByID(_ context.Context, id uuid.UUID) (*payment.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (s *MemberStore) ExistsByID(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[id]
	return ok, nil
}

func (s *MemberStore) lookup(id uuid.UUID) *payment.Member {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil
	}
	return &m
}

// PaymentStore is an in-memory payment.PaymentRepository.
// CreateHook, when set, runs before each insert and can fail it.
type PaymentStore struct {
	mu         sync.RWMutex
	payments   map[uuid.UUID]payment.Payment
	order      []uuid.UUID
	members    *MemberStore
	CreateHook func(p *payment.Payment) error
}

// NewPaymentStore creates an empty store that loads members from members
func NewPaymentStore(members *MemberStore) *PaymentStore {
	return &PaymentStore{payments: make(map[uuid.UUID]payment.Payment), members: members}
}

func (s *PaymentStore) FindByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Member = s.members.lookup(p.MemberID)
	return &p, nil
}

func (s *PaymentStore) FindAll(_ context.Context, filter payment.PaymentFilter) ([]payment.Payment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := filter.Filter.Normalize()

	var matched []payment.Payment
	for _, id := range s.order {
		p, ok := s.payments[id]
		if !ok {
			continue
		}
		if filter.MemberID != nil && p.MemberID != *filter.MemberID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Method != nil && p.Method != *filter.Method {
			continue
		}
		if filter.FromDate != nil && p.PaymentDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && p.PaymentDate.After(*filter.ToDate) {
			continue
		}
		matched = append(matched, p)
	}
	sortNewestFirst(matched, func(p payment.Payment) time.Time { return p.CreatedAt })

	return page(matched, f), int64(len(matched)), nil
}

func (s *PaymentStore) FindByMemberID(ctx context.Context, memberID uuid.UUID) ([]payment.Payment, error) {
	f := shared.DefaultFilter()
	f.PageSize = 100
	items, _, err := s.FindAll(ctx, payment.PaymentFilter{Filter: f, MemberID: &memberID})
	return items, err
}

func (s *PaymentStore) FindByStatusBetween(_ context.Context, status payment.Status, start, end time.Time) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payment.Payment
	for _, id := range s.order {
		p, ok := s.payments[id]
		if !ok || p.Status != status {
			continue
		}
		if p.PaymentDate.Before(start) || !p.PaymentDate.Before(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PaymentStore) AggregateByStatus(_ context.Context) ([]payment.StatusAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg := make(map[payment.Status]*payment.StatusAggregate)
	for _, p := range s.payments {
		a, ok := agg[p.Status]
		if !ok {
			a = &payment.StatusAggregate{Status: p.Status, Total: decimal.Zero}
			agg[p.Status] = a
		}
		a.Count++
		a.Total = a.Total.Add(p.Amount)
	}
	out := make([]payment.StatusAggregate, 0, len(agg))
	for _, a := range agg {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (s *PaymentStore) AggregateByMethod(_ context.Context, status payment.Status) ([]payment.MethodAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg := make(map[payment.Method]*payment.MethodAggregate)
	for _, p := range s.payments {
		if p.Status != status {
			continue
		}
		a, ok := agg[p.Method]
		if !ok {
			a = &payment.MethodAggregate{Method: p.Method, Total: decimal.Zero}
			agg[p.Method] = a
		}
		a.Count++
		a.Total = a.Total.Add(p.Amount)
	}
	out := make([]payment.MethodAggregate, 0, len(agg))
	for _, a := range agg {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, nil
}

func (s *PaymentStore) Create(_ context.Context, p *payment.Payment) error {
	if s.CreateHook != nil {
		if err := s.CreateHook(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; exists {
		return shared.ErrAlreadyExists
	}
	stored := *p
	stored.Member = nil
	s.payments[p.ID] = stored
	s.order = append(s.order, p.ID)
	return nil
}

func (s *PaymentStore) Save(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; !exists {
		return shared.ErrNotFound
	}
	stored := *p
	stored.Member = nil
	s.payments[p.ID] = stored
	return nil
}

func (s *PaymentStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[id]; !exists {
		return shared.ErrNotFound
	}
	delete(s.payments, id)
	return nil
}

// All returns every stored payment in insertion order
func (s *PaymentStore) All() []payment.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payment.Payment, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.payments[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

var _ payment.MemberRepository = (*MemberStore)(nil)
var _ payment.PaymentRepository = (*PaymentStore)(nil)
