package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
)

// AuditStore is an in-memory audit.Repository.
// AppendErr, when set, fails every append.
type AuditStore struct {
	mu        sync.RWMutex
	entries   []audit.Entry
	AppendErr error
}

// NewAuditStore creates an empty audit store
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(_ context.Context, e *audit.Entry) error {
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *AuditStore) newestFirst(match func(audit.Entry) bool, limit int) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if match(s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	sortNewestFirst(out, func(e audit.Entry) time.Time { return e.Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *AuditStore) FindByPaymentID(_ context.Context, paymentID uuid.UUID) ([]audit.Entry, error) {
	return s.newestFirst(func(e audit.Entry) bool {
		return e.PaymentID != nil && *e.PaymentID == paymentID
	}, 0), nil
}

func (s *AuditStore) FindByMemberID(_ context.Context, memberID uuid.UUID, limit int) ([]audit.Entry, error) {
	return s.newestFirst(func(e audit.Entry) bool {
		return e.MemberID != nil && *e.MemberID == memberID
	}, limit), nil
}

func (s *AuditStore) FindByUserID(_ context.Context, userID uuid.UUID, limit int) ([]audit.Entry, error) {
	return s.newestFirst(func(e audit.Entry) bool {
		return e.UserID != nil && *e.UserID == userID
	}, limit), nil
}

func (s *AuditStore) FindBetween(_ context.Context, start, end time.Time) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *AuditStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

// Len returns the number of stored entries
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ComplianceStore is an in-memory audit.ComplianceRepository.
// CreateErr, when set, fails every insert.
type ComplianceStore struct {
	mu        sync.RWMutex
	checks    []audit.ComplianceCheck
	CreateErr error
}

// NewComplianceStore creates an empty compliance store
func NewComplianceStore() *ComplianceStore {
	return &ComplianceStore{}
}

func (s *ComplianceStore) Create(_ context.Context, c *audit.ComplianceCheck) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, *c)
	return nil
}

func (s *ComplianceStore) FindBetween(_ context.Context, start, end time.Time) ([]audit.ComplianceCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.ComplianceCheck
	for _, c := range s.checks {
		if !c.Timestamp.Before(start) && !c.Timestamp.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ audit.Repository = (*AuditStore)(nil)
var _ audit.ComplianceRepository = (*ComplianceStore)(nil)
