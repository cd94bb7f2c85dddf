package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a single-table representation of all account roles, selected by
// the Role discriminator. OrganisationID is only meaningful for organisers.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID             string    `bun:"id,pk"`
	Email          string    `bun:"email,unique,notnull"`
	FullName       string    `bun:"full_name,notnull"`
	Phone          *string   `bun:"phone,nullzero"`
	Role           UserRole  `bun:"role,notnull"`
	OrganisationID *string   `bun:"organisation_id,nullzero"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}
