package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
)

// RecurringStore is an in-memory payment.RecurringPaymentRepository
type RecurringStore struct {
	mu       sync.RWMutex
	rows     map[uuid.UUID]payment.RecurringPayment
	order    []uuid.UUID
	members  *MemberStore
	FindErr  error
	ClaimErr error
}

// NewRecurringStore creates an empty store that loads members from members
func NewRecurringStore(members *MemberStore) *RecurringStore {
	return &RecurringStore{rows: make(map[uuid.UUID]payment.RecurringPayment), members: members}
}

func (s *RecurringStore) FindByID(_ context.Context, id uuid.UUID) (*payment.RecurringPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	rp.Member = s.members.lookup(rp.MemberID)
	return &rp, nil
}

func (s *RecurringStore) FindAll(_ context.Context, filter payment.RecurringPaymentFilter) ([]payment.RecurringPayment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := filter.Filter.Normalize()
	var matched []payment.RecurringPayment
	for _, id := range s.order {
		rp := s.rows[id]
		if filter.MemberID != nil && rp.MemberID != *filter.MemberID {
			continue
		}
		if filter.Status != nil && rp.Status != *filter.Status {
			continue
		}
		matched = append(matched, rp)
	}
	return page(matched, f), int64(len(matched)), nil
}

func (s *RecurringStore) FindDue(_ context.Context, now time.Time) ([]payment.RecurringPayment, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []payment.RecurringPayment
	for _, id := range s.order {
		rp := s.rows[id]
		if rp.IsDue(now) {
			rp.Member = s.members.lookup(rp.MemberID)
			due = append(due, rp)
		}
	}
	return due, nil
}

func (s *RecurringStore) Create(_ context.Context, rp *payment.RecurringPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[rp.ID]; exists {
		return shared.ErrAlreadyExists
	}
	stored := *rp
	stored.Member = nil
	s.rows[rp.ID] = stored
	s.order = append(s.order, rp.ID)
	return nil
}

func (s *RecurringStore) SaveWithLock(_ context.Context, rp *payment.RecurringPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[rp.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != rp.Version {
		return shared.ErrConcurrencyConflict
	}
	rp.IncrementVersion()
	stored := *rp
	stored.Member = nil
	s.rows[rp.ID] = stored
	return nil
}

func (s *RecurringStore) ClaimDue(_ context.Context, rp *payment.RecurringPayment) (bool, error) {
	if s.ClaimErr != nil {
		return false, s.ClaimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[rp.ID]
	if !ok || current.Status != payment.RecurringStatusActive ||
		!current.NextPaymentDate.Equal(rp.NextPaymentDate) || current.Version != rp.Version {
		return false, nil
	}
	current.IncrementVersion()
	s.rows[rp.ID] = current
	rp.Version = current.Version
	return true, nil
}

// Get returns the stored row without member loading
func (s *RecurringStore) Get(id uuid.UUID) payment.RecurringPayment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[id]
}

// InstallmentStore is an in-memory payment.InstallmentPlanRepository
type InstallmentStore struct {
	mu      sync.RWMutex
	rows    map[uuid.UUID]payment.InstallmentPlan
	order   []uuid.UUID
	members *MemberStore
	FindErr error
}

// NewInstallmentStore creates an empty store that loads members from members
func NewInstallmentStore(members *MemberStore) *InstallmentStore {
	return &InstallmentStore{rows: make(map[uuid.UUID]payment.InstallmentPlan), members: members}
}

func (s *InstallmentStore) FindByID(_ context.Context, id uuid.UUID) (*payment.InstallmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ip, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	ip.Member = s.members.lookup(ip.MemberID)
	return &ip, nil
}

func (s *InstallmentStore) FindAll(_ context.Context, filter payment.InstallmentPlanFilter) ([]payment.InstallmentPlan, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := filter.Filter.Normalize()
	var matched []payment.InstallmentPlan
	for _, id := range s.order {
		ip := s.rows[id]
		if filter.MemberID != nil && ip.MemberID != *filter.MemberID {
			continue
		}
		if filter.Status != nil && ip.Status != *filter.Status {
			continue
		}
		matched = append(matched, ip)
	}
	return page(matched, f), int64(len(matched)), nil
}

func (s *InstallmentStore) FindDue(_ context.Context, now time.Time) ([]payment.InstallmentPlan, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []payment.InstallmentPlan
	for _, id := range s.order {
		ip := s.rows[id]
		if ip.IsDue(now) {
			ip.Member = s.members.lookup(ip.MemberID)
			due = append(due, ip)
		}
	}
	return due, nil
}

func (s *InstallmentStore) Create(_ context.Context, ip *payment.InstallmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[ip.ID]; exists {
		return shared.ErrAlreadyExists
	}
	stored := *ip
	stored.Member = nil
	s.rows[ip.ID] = stored
	s.order = append(s.order, ip.ID)
	return nil
}

func (s *InstallmentStore) SaveWithLock(_ context.Context, ip *payment.InstallmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[ip.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != ip.Version {
		return shared.ErrConcurrencyConflict
	}
	ip.IncrementVersion()
	stored := *ip
	stored.Member = nil
	s.rows[ip.ID] = stored
	return nil
}

func (s *InstallmentStore) ClaimDue(_ context.Context, ip *payment.InstallmentPlan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[ip.ID]
	if !ok || current.Status != payment.InstallmentStatusActive || current.Version != ip.Version ||
		current.NextDueDate == nil || ip.NextDueDate == nil || !current.NextDueDate.Equal(*ip.NextDueDate) {
		return false, nil
	}
	current.IncrementVersion()
	s.rows[ip.ID] = current
	ip.Version = current.Version
	return true, nil
}

// Get returns the stored row without member loading
func (s *InstallmentStore) Get(id uuid.UUID) payment.InstallmentPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[id]
}

func page[T any](items []T, f shared.Filter) []T {
	start := f.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + f.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// sortNewestFirst orders by timestamp descending, keeping insertion order for ties
func sortNewestFirst[T any](items []T, ts func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool { return ts(items[i]).After(ts(items[j])) })
}

var _ payment.RecurringPaymentRepository = (*RecurringStore)(nil)
var _ payment.InstallmentPlanRepository = (*InstallmentStore)(nil)
