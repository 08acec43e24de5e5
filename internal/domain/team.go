package domain

import (
	"time"

	"github.com/google/uuid"
)

// Team represents a teams row. Owner is fixed at creation.
type Team struct {
	ID        string    `json:"team_id"`
	Name      string    `json:"team_name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedBy reports whether the team belongs to userID.
func (t *Team) OwnedBy(userID uuid.UUID) bool { return t.OwnerID == userID }
