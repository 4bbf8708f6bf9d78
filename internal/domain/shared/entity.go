package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the identity and audit timestamps of a mutable aggregate such as a project.
// Versioned documents are immutable rows and do not embed it.
type Entity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity assigns a fresh ID and stamps both timestamps with the same instant.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// IsNew reports whether the entity has not been given an identity yet.
func (e *Entity) IsNew() bool {
	return e.ID == uuid.Nil
}

func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
