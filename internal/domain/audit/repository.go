package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the append-only audit log store.
// There is deliberately no update or single-row delete.
type Repository interface {
	// Append inserts one entry
	Append(ctx context.Context, e *Entry) error

	// FindByPaymentID returns every entry for a payment, newest first
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]Entry, error)

	// FindByMemberID returns up to limit entries for a member, newest first
	FindByMemberID(ctx context.Context, memberID uuid.UUID, limit int) ([]Entry, error)

	// FindByUserID returns up to limit entries performed by a user, newest first
	FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]Entry, error)

	// FindBetween returns entries with start <= timestamp <= end, oldest first
	FindBetween(ctx context.Context, start, end time.Time) ([]Entry, error)

	// DeleteBefore purges entries older than cutoff and returns how many were removed
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ComplianceRepository stores compliance checks
type ComplianceRepository interface {
	// Create inserts a check
	Create(ctx context.Context, c *ComplianceCheck) error

	// FindBetween returns checks with start <= timestamp <= end, oldest first
	FindBetween(ctx context.Context, start, end time.Time) ([]ComplianceCheck, error)
}
