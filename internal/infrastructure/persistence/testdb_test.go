package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/gym/backend/internal/domain/shared"
	"github.com/gym/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

// setupTestDB opens an in-memory SQLite database with the payment schema.
// A single connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.MemberModel{},
		&models.PaymentModel{},
		&models.RecurringPaymentModel{},
		&models.InstallmentPlanModel{},
		&models.AuditLogModel{},
		&models.ComplianceCheckModel{},
	)
	require.NoError(t, err)
	return db
}

// newMockDB creates a postgres-dialect gorm DB over sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func seedMember(t *testing.T, db *gorm.DB, first, last string) *payment.Member {
	t.Helper()
	m := &payment.Member{
		BaseEntity: shared.NewBaseEntity(),
		FirstName:  first,
		LastName:   last,
		Email:      first + "@example.com",
	}
	require.NoError(t, NewGormMemberRepository(db).Create(context.Background(), m))
	return m
}
