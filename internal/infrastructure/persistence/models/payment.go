package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// MemberModel is the read side of the members table
type MemberModel struct {
	BaseModel
	FirstName string `gorm:"type:varchar(100);not null"`
	LastName  string `gorm:"type:varchar(100);not null"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Phone     string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (MemberModel) TableName() string {
	return "members"
}

// ToDomain converts the persistence model to a domain Member
func (m *MemberModel) ToDomain() *payment.Member {
	return &payment.Member{
		BaseEntity: m.BaseModel.ToDomain(),
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Email:      m.Email,
		Phone:      m.Phone,
	}
}

// MemberModelFromDomain creates a persistence model from a domain Member
func MemberModelFromDomain(mb *payment.Member) *MemberModel {
	m := &MemberModel{
		FirstName: mb.FirstName,
		LastName:  mb.LastName,
		Email:     mb.Email,
		Phone:     mb.Phone,
	}
	m.FromDomainBaseEntity(mb.BaseEntity)
	return m
}

func memberToDomain(m *MemberModel) *payment.Member {
	if m == nil || m.ID == uuid.Nil {
		return nil
	}
	return m.ToDomain()
}

// PaymentModel is the persistence model for ledger entries
type PaymentModel struct {
	BaseModel
	MemberID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	Member               *MemberModel    `gorm:"foreignKey:MemberID"`
	Amount               decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Method               string          `gorm:"type:varchar(50);not null"`
	Status               string          `gorm:"type:varchar(20);not null;index"`
	Currency             string          `gorm:"type:varchar(3);not null;default:'USD'"`
	TaxAmount            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	ProcessingFee        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	LateFees             decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Description          string          `gorm:"type:text"`
	Reference            string          `gorm:"type:varchar(100);index"`
	GatewayTransactionID string          `gorm:"type:varchar(100)"`
	GatewayResponse      string          `gorm:"type:text"`
	PaymentDate          time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *payment.Payment {
	return &payment.Payment{
		BaseEntity:           m.BaseModel.ToDomain(),
		MemberID:             m.MemberID,
		Amount:               m.Amount,
		Method:               payment.Method(m.Method),
		Status:               payment.Status(m.Status),
		Currency:             payment.Currency(m.Currency),
		TaxAmount:            m.TaxAmount,
		ProcessingFee:        m.ProcessingFee,
		LateFees:             m.LateFees,
		Description:          m.Description,
		Reference:            m.Reference,
		GatewayTransactionID: m.GatewayTransactionID,
		GatewayResponse:      m.GatewayResponse,
		PaymentDate:          m.PaymentDate,
		Member:               memberToDomain(m.Member),
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment.
// The member association is never written through a payment.
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{
		MemberID:             p.MemberID,
		Amount:               p.Amount,
		Method:               p.Method.String(),
		Status:               p.Status.String(),
		Currency:             p.Currency.String(),
		TaxAmount:            p.TaxAmount,
		ProcessingFee:        p.ProcessingFee,
		LateFees:             p.LateFees,
		Description:          p.Description,
		Reference:            p.Reference,
		GatewayTransactionID: p.GatewayTransactionID,
		GatewayResponse:      p.GatewayResponse,
		PaymentDate:          p.PaymentDate,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// RecurringPaymentModel is the persistence model for billing schedules
type RecurringPaymentModel struct {
	VersionedModel
	MemberID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Member            *MemberModel    `gorm:"foreignKey:MemberID"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Frequency         string          `gorm:"type:varchar(20);not null"`
	StartDate         time.Time       `gorm:"not null"`
	EndDate           *time.Time
	Status            string     `gorm:"type:varchar(20);not null;index:idx_recurring_due,priority:1"`
	NextPaymentDate   time.Time  `gorm:"not null;index:idx_recurring_due,priority:2"`
	LastProcessedDate *time.Time
	AttemptCount      int    `gorm:"not null;default:0"`
	MaxAttempts       int    `gorm:"not null"`
	RetryDelayDays    int    `gorm:"not null"`
	AutoRetry         bool   `gorm:"not null"`
	LastError         string `gorm:"type:text"`
	Description       string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RecurringPaymentModel) TableName() string {
	return "recurring_payments"
}

// ToDomain converts the persistence model to a domain RecurringPayment
func (m *RecurringPaymentModel) ToDomain() *payment.RecurringPayment {
	return &payment.RecurringPayment{
		VersionedEntity:   m.ToDomainVersioned(),
		MemberID:          m.MemberID,
		Amount:            m.Amount,
		Frequency:         payment.Frequency(m.Frequency),
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		Status:            payment.RecurringStatus(m.Status),
		NextPaymentDate:   m.NextPaymentDate,
		LastProcessedDate: m.LastProcessedDate,
		AttemptCount:      m.AttemptCount,
		MaxAttempts:       m.MaxAttempts,
		RetryDelayDays:    m.RetryDelayDays,
		AutoRetry:         m.AutoRetry,
		LastError:         m.LastError,
		Description:       m.Description,
		Member:            memberToDomain(m.Member),
	}
}

// RecurringPaymentModelFromDomain creates a persistence model from a domain RecurringPayment
func RecurringPaymentModelFromDomain(rp *payment.RecurringPayment) *RecurringPaymentModel {
	m := &RecurringPaymentModel{
		MemberID:          rp.MemberID,
		Amount:            rp.Amount,
		Frequency:         rp.Frequency.String(),
		StartDate:         rp.StartDate,
		EndDate:           rp.EndDate,
		Status:            rp.Status.String(),
		NextPaymentDate:   rp.NextPaymentDate,
		LastProcessedDate: rp.LastProcessedDate,
		AttemptCount:      rp.AttemptCount,
		MaxAttempts:       rp.MaxAttempts,
		RetryDelayDays:    rp.RetryDelayDays,
		AutoRetry:         rp.AutoRetry,
		LastError:         rp.LastError,
		Description:       rp.Description,
	}
	m.FromDomainVersioned(rp.VersionedEntity)
	return m
}

// InstallmentPlanModel is the persistence model for installment plans
type InstallmentPlanModel struct {
	VersionedModel
	MemberID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	Member               *MemberModel    `gorm:"foreignKey:MemberID"`
	TotalAmount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NumberOfInstallments int             `gorm:"not null"`
	InstallmentAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	StartDate            time.Time       `gorm:"not null"`
	DueDayOfMonth        *int
	CurrentInstallment   int        `gorm:"not null;default:1"`
	NextDueDate          *time.Time `gorm:"index:idx_installment_due,priority:2"`
	Status               string     `gorm:"type:varchar(20);not null;index:idx_installment_due,priority:1"`
	LastProcessedDate    *time.Time
	LastError            string `gorm:"type:text"`
	Description          string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InstallmentPlanModel) TableName() string {
	return "installment_plans"
}

// ToDomain converts the persistence model to a domain InstallmentPlan
func (m *InstallmentPlanModel) ToDomain() *payment.InstallmentPlan {
	return &payment.InstallmentPlan{
		VersionedEntity:      m.ToDomainVersioned(),
		MemberID:             m.MemberID,
		TotalAmount:          m.TotalAmount,
		NumberOfInstallments: m.NumberOfInstallments,
		InstallmentAmount:    m.InstallmentAmount,
		StartDate:            m.StartDate,
		DueDayOfMonth:        m.DueDayOfMonth,
		CurrentInstallment:   m.CurrentInstallment,
		NextDueDate:          m.NextDueDate,
		Status:               payment.InstallmentStatus(m.Status),
		LastProcessedDate:    m.LastProcessedDate,
		LastError:            m.LastError,
		Description:          m.Description,
		Member:               memberToDomain(m.Member),
	}
}

// InstallmentPlanModelFromDomain creates a persistence model from a domain InstallmentPlan
func InstallmentPlanModelFromDomain(ip *payment.InstallmentPlan) *InstallmentPlanModel {
	m := &InstallmentPlanModel{
		MemberID:             ip.MemberID,
		TotalAmount:          ip.TotalAmount,
		NumberOfInstallments: ip.NumberOfInstallments,
		InstallmentAmount:    ip.InstallmentAmount,
		StartDate:            ip.StartDate,
		DueDayOfMonth:        ip.DueDayOfMonth,
		CurrentInstallment:   ip.CurrentInstallment,
		NextDueDate:          ip.NextDueDate,
		Status:               ip.Status.String(),
		LastProcessedDate:    ip.LastProcessedDate,
		LastError:            ip.LastError,
		Description:          ip.Description,
	}
	m.FromDomainVersioned(ip.VersionedEntity)
	return m
}
