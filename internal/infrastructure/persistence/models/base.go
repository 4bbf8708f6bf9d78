package models

import (
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
)

// EntityColumns are the identity and audit columns of a mutable row.
// Append-only tables such as stored_documents declare their own.
type EntityColumns struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (c EntityColumns) entity() shared.Entity {
	return shared.Entity{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func entityColumns(e shared.Entity) EntityColumns {
	return EntityColumns{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}
