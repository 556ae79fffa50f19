package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendEntry(t *testing.T, repo *GormAuditRepository, action audit.Action, md audit.Metadata, at time.Time, correlate func(e *audit.Entry)) *audit.Entry {
	t.Helper()
	e, err := audit.NewEntry(action, string(action)+" entry", md, audit.Actor{})
	require.NoError(t, err)
	e.Timestamp = at
	if correlate != nil {
		correlate(e)
	}
	require.NoError(t, repo.Append(context.Background(), e))
	return e
}

func TestGormAuditRepository_Trails(t *testing.T) {
	repo := NewGormAuditRepository(setupTestDB(t))
	ctx := context.Background()
	memberID := uuid.New()
	paymentID := uuid.New()
	userID := uuid.New()

	for i := 0; i < 4; i++ {
		appendEntry(t, repo, audit.ActionPaymentAccessed, audit.PaymentAccessedMetadata{AccessType: "view"},
			baseTime.Add(time.Duration(i)*time.Minute), func(e *audit.Entry) {
				e.WithMember(memberID).WithPayment(paymentID)
				e.UserID = &userID
			})
	}
	appendEntry(t, repo, audit.ActionPaymentAccessed, nil, baseTime, func(e *audit.Entry) { e.WithMember(uuid.New()) })

	byPayment, err := repo.FindByPaymentID(ctx, paymentID)
	require.NoError(t, err)
	require.Len(t, byPayment, 4)
	for i := 1; i < len(byPayment); i++ {
		assert.True(t, byPayment[i-1].Timestamp.After(byPayment[i].Timestamp), "newest first")
	}
	assert.Equal(t, audit.PaymentAccessedMetadata{AccessType: "view"}, byPayment[0].Metadata)

	byMember, err := repo.FindByMemberID(ctx, memberID, 2)
	require.NoError(t, err)
	require.Len(t, byMember, 2)
	assert.True(t, byMember[0].Timestamp.Equal(baseTime.Add(3*time.Minute)))

	byUser, err := repo.FindByUserID(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, byUser, 4)
}

func TestGormAuditRepository_SparseEntry(t *testing.T) {
	repo := NewGormAuditRepository(setupTestDB(t))
	memberID := uuid.New()

	appendEntry(t, repo, audit.ActionPaymentAttemptFailed, audit.PaymentAttemptFailedMetadata{
		Amount:       "49.99",
		ErrorMessage: "card declined",
		Source:       "RECURRING",
		Terminal:     true,
	}, baseTime, func(e *audit.Entry) { e.WithMember(memberID) })

	trail, err := repo.FindByMemberID(context.Background(), memberID, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Nil(t, trail[0].UserID)
	assert.Nil(t, trail[0].PaymentID)
	assert.Empty(t, trail[0].IPAddress)
	md, ok := trail[0].Metadata.(audit.PaymentAttemptFailedMetadata)
	require.True(t, ok)
	assert.Equal(t, "card declined", md.ErrorMessage)
	assert.True(t, md.Terminal)
}

func TestGormAuditRepository_FindBetweenAndPurge(t *testing.T) {
	repo := NewGormAuditRepository(setupTestDB(t))
	ctx := context.Background()

	old := appendEntry(t, repo, audit.ActionPaymentCreated, nil, baseTime.AddDate(0, 0, -10), nil)
	atCutoff := appendEntry(t, repo, audit.ActionPaymentUpdated, nil, baseTime.AddDate(0, 0, -5), nil)
	recent := appendEntry(t, repo, audit.ActionPaymentDeleted, nil, baseTime, nil)

	between, err := repo.FindBetween(ctx, atCutoff.Timestamp, recent.Timestamp)
	require.NoError(t, err)
	require.Len(t, between, 2, "both bounds are inclusive")
	assert.Equal(t, atCutoff.ID, between[0].ID, "oldest first")
	assert.Equal(t, recent.ID, between[1].ID)

	deleted, err := repo.DeleteBefore(ctx, atCutoff.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.FindBetween(ctx, old.Timestamp, recent.Timestamp)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, atCutoff.ID, remaining[0].ID, "an entry exactly at the cutoff is kept")
}

func TestGormComplianceRepository(t *testing.T) {
	repo := NewGormComplianceRepository(setupTestDB(t))
	ctx := context.Background()
	paymentID := uuid.New()

	for i, status := range []audit.CheckStatus{audit.CheckStatusPassed, audit.CheckStatusFailed, audit.CheckStatusPending} {
		c, err := audit.NewComplianceCheck(paymentID, "PCI_DSS", status, "check")
		require.NoError(t, err)
		c.Timestamp = baseTime.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, c))
	}

	checks, err := repo.FindBetween(ctx, baseTime, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, audit.CheckStatusPassed, checks[0].Status)
	assert.Equal(t, audit.CheckStatusFailed, checks[1].Status)
	assert.Equal(t, paymentID, checks[0].PaymentID)
}
