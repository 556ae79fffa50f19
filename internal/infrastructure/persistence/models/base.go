package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/shared"
)

// BaseModel provides the persistence fields shared by every table.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// VersionedModel adds the optimistic lock column to BaseModel
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// ToDomainVersioned converts VersionedModel to domain VersionedEntity
func (m *VersionedModel) ToDomainVersioned() shared.VersionedEntity {
	return shared.VersionedEntity{
		BaseEntity: m.BaseModel.ToDomain(),
		Version:    m.Version,
	}
}

// FromDomainVersioned populates VersionedModel from domain VersionedEntity
func (m *VersionedModel) FromDomainVersioned(e shared.VersionedEntity) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.Version = e.Version
}
